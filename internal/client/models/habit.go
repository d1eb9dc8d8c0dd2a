package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Habit is a recurring practice with completion counters.
type Habit struct {
	Meta
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Frequency       Frequency  `json:"frequency"`
	TargetCount     int        `json:"target_count"`
	CompletedCount  int        `json:"completed_count"`
	CurrentStreak   int        `json:"current_streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
}

type HabitCreate struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   Frequency `json:"frequency"`
	TargetCount int       `json:"target_count"`
}

func (c HabitCreate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: habit name is required", common.ErrValidation)
	}
	switch c.Frequency {
	case FrequencyDaily, FrequencyWeekly, "":
	default:
		return fmt.Errorf("%w: unknown habit frequency %q", common.ErrValidation, c.Frequency)
	}
	if c.TargetCount < 0 {
		return fmt.Errorf("%w: habit target must not be negative", common.ErrValidation)
	}
	return nil
}

type HabitUpdate struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Frequency   *Frequency `json:"frequency,omitempty"`
	TargetCount *int       `json:"target_count,omitempty"`
}

// Complete records one completion. The streak grows when the previous
// completion was on the previous day and restarts after a gap; a second
// completion on the same day only bumps the counter.
func (h *Habit) Complete(now time.Time) {
	h.CompletedCount++

	switch {
	case h.LastCompletedAt == nil:
		h.CurrentStreak = 1
	case sameDay(*h.LastCompletedAt, now):
	case sameDay(h.LastCompletedAt.AddDate(0, 0, 1), now):
		h.CurrentStreak++
	default:
		h.CurrentStreak = 1
	}
	h.LastCompletedAt = &now
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
