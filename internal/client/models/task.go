package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// Task is a planned to-do item, optionally attached to a Project.
type Task struct {
	Meta
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    int        `json:"priority"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type TaskCreate struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    int        `json:"priority"`
}

func (c TaskCreate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: task title is required", common.ErrValidation)
	}
	if c.Priority < 0 || c.Priority > 3 {
		return fmt.Errorf("%w: task priority must be 0..3", common.ErrValidation)
	}
	return nil
}

type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	IsCompleted *bool      `json:"is_completed,omitempty"`
}

// Complete marks the task done.
func (t *Task) Complete(now time.Time) {
	t.IsCompleted = true
	t.CompletedAt = &now
}
