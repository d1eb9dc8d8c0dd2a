package models

import (
	"encoding/json"
	"time"
)

// OpType is the kind of a queued mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
	// OpComplete covers domain actions carrying only an id, e.g. completing a habit.
	OpComplete OpType = "complete"
)

// SyncOperation is one pending mutation in a domain's sync queue.
type SyncOperation struct {
	// Seq is assigned by the queue and strictly increases per domain.
	Seq  int64  `json:"seq"`
	Type OpType `json:"type"`

	// ID targets an existing entity. Empty for create.
	ID string `json:"id,omitempty"`

	// LocalID is the temporary id a create assigned to the new entity.
	LocalID string `json:"local_id,omitempty"`

	// Action names the endpoint of an OpComplete operation.
	Action string `json:"action,omitempty"`

	// Data is the payload with server-managed fields removed. Empty for delete.
	Data json.RawMessage `json:"data,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Target returns the entity id the operation affects.
func (o SyncOperation) Target() string {
	if o.Type == OpCreate {
		return o.LocalID
	}
	return o.ID
}
