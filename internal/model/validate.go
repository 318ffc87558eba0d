package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidateEvent checks the fields every write-endpoint element must carry.
// Validation rules:
// - title, description, date, time, location, category non-empty
// - date is YYYY-MM-DD, time is HH:MM
// - maxAttendees >= 1
func ValidateEvent(e Event) error {
	required := []struct {
		name  string
		value string
	}{
		{"title", e.Title},
		{"description", e.Description},
		{"date", e.Date},
		{"time", e.Time},
		{"location", e.Location},
		{"category", e.Category},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("missing required field: %s", f.name)
		}
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04", e.Time); err != nil {
		return fmt.Errorf("invalid time format, use HH:MM")
	}
	if e.MaxAttendees < 1 {
		return fmt.Errorf("maxAttendees must be a positive number")
	}
	return nil
}
