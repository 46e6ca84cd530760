package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a clock time within a day, stored as minutes since midnight.
// Appointment and block times are wall-clock local to the branch, so a plain
// minute offset avoids timezone arithmetic entirely.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Interval is a half-open [Start, Start+Minutes) range within one day.
type Interval struct {
	Start   TimeOfDay
	Minutes int
}

func NewInterval(start TimeOfDay, minutes int) Interval {
	return Interval{Start: start, Minutes: minutes}
}

func (i Interval) End() TimeOfDay {
	return i.Start + TimeOfDay(i.Minutes)
}

// Overlaps reports whether two half-open intervals intersect:
// a.Start < b.End && a.End > b.Start.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End() && i.End() > o.Start
}

func (i Interval) String() string {
	return fmt.Sprintf("%s-%s", i.Start, i.End())
}
