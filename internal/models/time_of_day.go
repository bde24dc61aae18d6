package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM between 00:00 and 24:00")

// TimeOfDay is a local wall-clock time expressed in minutes after midnight.
// 24:00 is allowed so a session can run up to the end of the day.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return TimeOfDay(minutesPerDay), nil
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, ErrInvalidTimeOfDay
	}
	return NewTimeOfDay(parsed.Hour(), parsed.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= minutesPerDay
}

func (t TimeOfDay) Minutes() int {
	return int(t)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant this time of day falls on for the calendar day of date.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	year, month, day := date.Date()
	return time.Date(year, month, day, 0, int(t), 0, 0, loc)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidTimeOfDay
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
