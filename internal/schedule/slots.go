package schedule

import (
	"github.com/google/uuid"
)

const (
	// DefaultDurationMinutes is assumed when no treatment type pins a duration.
	DefaultDurationMinutes = 60

	// StepStaff is the candidate granularity for staff-driven booking flows.
	StepStaff = 60
	// StepWalkIn is the finer granularity used for walk-in registration.
	StepWalkIn = 30
)

type OccupancyKind string

const (
	OccupancyAppointment OccupancyKind = "appointment"
	OccupancyBlock       OccupancyKind = "block"
)

// Occupancy is a taken interval within a branch day: an active appointment or
// a staff-declared block. Label is the human-readable cause shown on
// unavailable slots (patient name, block reason).
type Occupancy struct {
	ID       uuid.UUID
	Kind     OccupancyKind
	Interval Interval
	Label    string
}

// Slot is one candidate start time offered to the caller. Unavailable slots
// stay in the sequence, disabled, so the caller can render fully-booked
// context.
type Slot struct {
	Start     TimeOfDay `json:"start_time"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// Candidates generates start times from open to close at the given step, while
// the whole requested duration still fits before closing. Empty when no
// candidate fits.
func Candidates(open, close TimeOfDay, stepMinutes, durationMinutes int) []TimeOfDay {
	if stepMinutes <= 0 || durationMinutes <= 0 || open >= close {
		return nil
	}
	last := close - TimeOfDay(durationMinutes)
	var out []TimeOfDay
	for t := open; t <= last; t += TimeOfDay(stepMinutes) {
		out = append(out, t)
	}
	return out
}

// Partition marks each candidate available or unavailable against the taken
// intervals. Candidates keep their ascending order.
func Partition(candidates []TimeOfDay, durationMinutes int, taken []Occupancy) []Slot {
	slots := make([]Slot, 0, len(candidates))
	for _, start := range candidates {
		iv := NewInterval(start, durationMinutes)
		if conflict := FindConflict(iv, taken); conflict != nil {
			slots = append(slots, Slot{Start: start, Available: false, Reason: conflict.Label()})
			continue
		}
		slots = append(slots, Slot{Start: start, Available: true})
	}
	return slots
}

// FindConflict returns the first occupancy overlapping the interval, as a
// ConflictError, or nil when the interval is free. Write paths use this same
// check inside their transactions so the read and write views can never
// disagree on what counts as a conflict.
func FindConflict(iv Interval, taken []Occupancy) *ConflictError {
	for _, occ := range taken {
		if iv.Overlaps(occ.Interval) {
			return &ConflictError{With: occ}
		}
	}
	return nil
}
