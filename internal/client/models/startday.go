package models

import (
	"fmt"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// StartDayEntry is the morning planning entry.
type StartDayEntry struct {
	Meta
	Date        string   `json:"date"`
	Intention   string   `json:"intention"`
	Priorities  []string `json:"priorities,omitempty"`
	EnergyLevel int      `json:"energy_level"`
}

type StartDayEntryCreate struct {
	Date        string   `json:"date"`
	Intention   string   `json:"intention"`
	Priorities  []string `json:"priorities,omitempty"`
	EnergyLevel int      `json:"energy_level"`
}

func (c StartDayEntryCreate) Validate() error {
	if err := validateDate(c.Date); err != nil {
		return err
	}
	if c.EnergyLevel < 0 || c.EnergyLevel > 5 {
		return fmt.Errorf("%w: energy level must be between 0 and 5", common.ErrValidation)
	}
	return nil
}

type StartDayEntryUpdate struct {
	Intention   *string   `json:"intention,omitempty"`
	Priorities  *[]string `json:"priorities,omitempty"`
	EnergyLevel *int      `json:"energy_level,omitempty"`
}
