package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// Project groups tasks.
type Project struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	IsArchived  bool   `json:"is_archived"`
}

type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

func (c ProjectCreate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: project name is required", common.ErrValidation)
	}
	return nil
}

type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}
