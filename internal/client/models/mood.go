package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// MoodCheckin is a point-in-time mood rating on a 1..5 scale.
type MoodCheckin struct {
	Meta
	Mood        int       `json:"mood"`
	Emotions    []string  `json:"emotions,omitempty"`
	Note        string    `json:"note,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

type MoodCheckinCreate struct {
	Mood        int       `json:"mood"`
	Emotions    []string  `json:"emotions,omitempty"`
	Note        string    `json:"note,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

func (c MoodCheckinCreate) Validate() error {
	if c.Mood < 1 || c.Mood > 5 {
		return fmt.Errorf("%w: mood must be between 1 and 5", common.ErrValidation)
	}
	return nil
}

type MoodCheckinUpdate struct {
	Mood     *int      `json:"mood,omitempty"`
	Emotions *[]string `json:"emotions,omitempty"`
	Note     *string   `json:"note,omitempty"`
}
