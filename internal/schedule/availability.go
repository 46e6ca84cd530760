package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Day is the effective bookable state of a branch on one date, after the
// daily status override and the weekday operating hours have been resolved.
type Day struct {
	Open        bool // false means nothing is bookable at all
	FullyBooked bool // candidates exist but are all declared taken
	Status      string
	Reason      string
	OpenAt      TimeOfDay
	CloseAt     TimeOfDay
}

// DayResolver resolves the operating window and status override for a branch
// date. Implemented by the clinic service.
type DayResolver interface {
	ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (Day, error)
}

// OccupancySource lists taken intervals for a branch date. Appointments and
// blocks each provide one.
type OccupancySource interface {
	Occupancies(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Occupancy, error)
}

// DaySlots is the slot listing for one branch date, with the effective day
// status so callers can render "closed" or "fully booked" context.
type DaySlots struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Slots  []Slot `json:"slots"`
}

// Availability computes bookable slots for a branch day. Listings are
// best-effort reads: a slot shown available here may still lose the race at
// write time, where the transactional conflict check is authoritative.
type Availability struct {
	days    DayResolver
	sources []OccupancySource
}

func NewAvailability(days DayResolver, sources ...OccupancySource) *Availability {
	return &Availability{days: days, sources: sources}
}

// AvailableSlots implements the listing contract: closed days yield an empty
// sequence (not an error), fully booked days yield every candidate disabled,
// and open days partition candidates against appointments and blocks.
func (a *Availability) AvailableSlots(ctx context.Context, branchID uuid.UUID, date time.Time, durationMinutes, stepMinutes int) (DaySlots, error) {
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}
	if stepMinutes <= 0 {
		stepMinutes = StepStaff
	}

	day, err := a.days.ResolveDay(ctx, branchID, date)
	if err != nil {
		return DaySlots{}, fmt.Errorf("resolve day: %w", err)
	}

	if !day.Open {
		reason := day.Reason
		if reason == "" {
			reason = "branch closed"
		}
		return DaySlots{Status: day.Status, Reason: reason, Slots: []Slot{}}, nil
	}

	candidates := Candidates(day.OpenAt, day.CloseAt, stepMinutes, durationMinutes)

	if day.FullyBooked {
		slots := make([]Slot, 0, len(candidates))
		for _, start := range candidates {
			slots = append(slots, Slot{Start: start, Available: false, Reason: "Fully booked"})
		}
		return DaySlots{Status: day.Status, Reason: day.Reason, Slots: slots}, nil
	}

	var taken []Occupancy
	for _, src := range a.sources {
		occ, err := src.Occupancies(ctx, branchID, date)
		if err != nil {
			return DaySlots{}, fmt.Errorf("load occupancies: %w", err)
		}
		taken = append(taken, occ...)
	}

	return DaySlots{
		Status: day.Status,
		Reason: day.Reason,
		Slots:  Partition(candidates, durationMinutes, taken),
	}, nil
}
