package domains

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// FieldKind selects how a typed-in value is converted to JSON.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindBool
	KindList
	// KindDay is a calendar day sent as "YYYY-MM-DD".
	KindDay
	// KindDate is a calendar day sent as a timestamp at midnight UTC.
	KindDate
	KindTime
)

// Field describes one prompt of the add/edit dialogs.
type Field struct {
	Key   string
	Label string
	Kind  FieldKind
	// OnCreate limits the field to the add dialog.
	OnCreate bool
	// Default fills an empty answer on create.
	Default func(now time.Time) string
}

func today(now time.Time) string { return now.Format(models.DateLayout) }

func rightNow(now time.Time) string { return now.Format(time.RFC3339) }

var fieldsByDomain = map[string][]Field{
	Tasks: {
		{Key: "title", Label: "Title"},
		{Key: "description", Label: "Description"},
		{Key: "priority", Label: "Priority (0-3)", Kind: KindInt},
		{Key: "due_date", Label: "Due date (YYYY-MM-DD)", Kind: KindDate},
		{Key: "project_id", Label: "Project id"},
	},
	Habits: {
		{Key: "name", Label: "Name"},
		{Key: "description", Label: "Description"},
		{Key: "frequency", Label: "Frequency (daily/weekly)", Default: func(time.Time) string { return string(models.FrequencyDaily) }},
		{Key: "target_count", Label: "Target count", Kind: KindInt},
	},
	Projects: {
		{Key: "name", Label: "Name"},
		{Key: "description", Label: "Description"},
		{Key: "color", Label: "Color"},
		{Key: "is_archived", Label: "Archived (y/n)", Kind: KindBool},
	},
	Moods: {
		{Key: "mood", Label: "Mood (1-5)", Kind: KindInt},
		{Key: "emotions", Label: "Emotions (comma separated)", Kind: KindList},
		{Key: "note", Label: "Note"},
		{Key: "checked_in_at", Label: "Checked in at (RFC 3339)", Kind: KindTime, OnCreate: true, Default: rightNow},
	},
	Reflections: {
		{Key: "date", Label: "Date (YYYY-MM-DD)", Kind: KindDay, OnCreate: true, Default: today},
		{Key: "highlights", Label: "Highlights"},
		{Key: "challenges", Label: "Challenges"},
		{Key: "gratitude", Label: "Gratitude"},
		{Key: "rating", Label: "Rating (0-10)", Kind: KindInt},
	},
	StartDay: {
		{Key: "date", Label: "Date (YYYY-MM-DD)", Kind: KindDay, OnCreate: true, Default: today},
		{Key: "intention", Label: "Intention"},
		{Key: "priorities", Label: "Priorities (comma separated)", Kind: KindList},
		{Key: "energy_level", Label: "Energy level (0-5)", Kind: KindInt},
	},
}

// Payload converts prompt answers to a JSON body. Empty answers are left
// out, so an edit only carries the fields the user typed. On create,
// defaults fill the gaps.
func Payload(fields []Field, answers map[string]string, create bool, now time.Time) (json.RawMessage, error) {
	out := map[string]any{}
	for _, f := range fields {
		if f.OnCreate && !create {
			continue
		}
		raw := strings.TrimSpace(answers[f.Key])
		if raw == "" && create && f.Default != nil {
			raw = f.Default(now)
		}
		if raw == "" {
			continue
		}
		v, err := f.convert(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", common.ErrValidation, f.Label, err)
		}
		out[f.Key] = v
	}
	return json.Marshal(out)
}

func (f Field) convert(raw string) (any, error) {
	switch f.Kind {
	case KindInt:
		return strconv.Atoi(raw)
	case KindBool:
		switch strings.ToLower(raw) {
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("expected y or n, got %q", raw)
	case KindList:
		var items []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	case KindDay:
		if _, err := time.Parse(models.DateLayout, raw); err != nil {
			return nil, err
		}
		return raw, nil
	case KindDate:
		return time.Parse(models.DateLayout, raw)
	case KindTime:
		return time.Parse(time.RFC3339, raw)
	}
	return raw, nil
}
