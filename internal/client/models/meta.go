package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncStatus tells the view layer whether a cached entity is confirmed by
// the server.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// TemporaryIDPrefix marks ids generated on the device before the first sync.
const TemporaryIDPrefix = "tmp_"

// EntityID is an entity identifier. The server may send it as a JSON number
// or string; it is always kept as a string locally.
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = EntityID(n.String())
	return nil
}

func (id EntityID) String() string { return string(id) }

// Meta carries the fields every synced entity shares. Domain entities embed it.
type Meta struct {
	ID        EntityID  `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// IsDeleted is the tombstone marker of domains that sync deletions as
	// soft deletes (reflections, start-day entries).
	IsDeleted bool `json:"is_deleted,omitempty"`

	// IsSynced mirrors SyncStatus == synced for domains whose server model
	// carries the flag.
	IsSynced bool `json:"is_synced,omitempty"`

	SyncStatus SyncStatus `json:"sync_status,omitempty"`
}

// Metadata gives generic code access to the embedded Meta.
func (m *Meta) Metadata() *Meta { return m }

// MarkStatus sets SyncStatus and keeps IsSynced consistent with it.
func (m *Meta) MarkStatus(s SyncStatus) {
	m.SyncStatus = s
	m.IsSynced = s == SyncStatusSynced
}

// Record is implemented by pointers to entities embedding Meta.
type Record interface {
	Metadata() *Meta
}

// NewTemporaryID returns a time-ordered id for an entity created offline.
func NewTemporaryID() string {
	return TemporaryIDPrefix + uuid.Must(uuid.NewV7()).String()
}

// IsTemporaryID reports whether id was generated locally and has not been
// replaced by a server id yet.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

// ServerManagedFields are never sent in create/update payloads.
var ServerManagedFields = []string{"id", "created_at", "updated_at", "is_deleted", "is_synced", "sync_status"}

// StripServerFields removes ServerManagedFields from a JSON object.
func StripServerFields(payload []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	for _, f := range ServerManagedFields {
		delete(fields, f)
	}
	return json.Marshal(fields)
}
