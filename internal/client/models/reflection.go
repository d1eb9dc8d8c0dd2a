package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/common"
)

// DateLayout is the calendar-day format used by daily journal entries.
const DateLayout = "2006-01-02"

// EveningReflection is the end-of-day journal entry.
type EveningReflection struct {
	Meta
	Date       string `json:"date"`
	Highlights string `json:"highlights,omitempty"`
	Challenges string `json:"challenges,omitempty"`
	Gratitude  string `json:"gratitude,omitempty"`
	Rating     int    `json:"rating"`
}

type EveningReflectionCreate struct {
	Date       string `json:"date"`
	Highlights string `json:"highlights,omitempty"`
	Challenges string `json:"challenges,omitempty"`
	Gratitude  string `json:"gratitude,omitempty"`
	Rating     int    `json:"rating"`
}

func (c EveningReflectionCreate) Validate() error {
	if err := validateDate(c.Date); err != nil {
		return err
	}
	if c.Rating < 0 || c.Rating > 10 {
		return fmt.Errorf("%w: rating must be between 0 and 10", common.ErrValidation)
	}
	return nil
}

type EveningReflectionUpdate struct {
	Highlights *string `json:"highlights,omitempty"`
	Challenges *string `json:"challenges,omitempty"`
	Gratitude  *string `json:"gratitude,omitempty"`
	Rating     *int    `json:"rating,omitempty"`
}

func validateDate(d string) error {
	if _, err := time.Parse(DateLayout, d); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", common.ErrValidation)
	}
	return nil
}
