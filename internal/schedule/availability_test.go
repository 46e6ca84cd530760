package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDayResolver struct {
	day Day
	err error
}

func (s stubDayResolver) ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (Day, error) {
	return s.day, s.err
}

type stubOccupancySource struct {
	occ []Occupancy
	err error
}

func (s stubOccupancySource) Occupancies(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Occupancy, error) {
	return s.occ, s.err
}

func TestAvailableSlotsClosedDay(t *testing.T) {
	avail := NewAvailability(stubDayResolver{day: Day{Open: false, Status: "closed", Reason: "public holiday"}})

	got, err := avail.AvailableSlots(context.Background(), uuid.New(), time.Now(), 60, StepStaff)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Status)
	assert.Equal(t, "public holiday", got.Reason)
	assert.Empty(t, got.Slots)
}

func TestAvailableSlotsFullyBooked(t *testing.T) {
	day := Day{
		Open:        true,
		FullyBooked: true,
		Status:      "fully_booked",
		OpenAt:      TimeOfDay(9 * 60),
		CloseAt:     TimeOfDay(17 * 60),
	}
	// Sources must not matter once the day is declared fully booked.
	avail := NewAvailability(stubDayResolver{day: day}, stubOccupancySource{occ: []Occupancy{{
		Interval: NewInterval(TimeOfDay(10*60), 60),
	}}})

	got, err := avail.AvailableSlots(context.Background(), uuid.New(), time.Now(), 60, StepStaff)
	require.NoError(t, err)
	require.Len(t, got.Slots, 8)
	for _, slot := range got.Slots {
		assert.False(t, slot.Available)
		assert.Equal(t, "Fully booked", slot.Reason)
	}
}

func TestAvailableSlotsMergesSources(t *testing.T) {
	day := Day{
		Open:    true,
		Status:  "open",
		OpenAt:  TimeOfDay(9 * 60),
		CloseAt: TimeOfDay(12 * 60),
	}
	appointments := stubOccupancySource{occ: []Occupancy{{
		Kind:     OccupancyAppointment,
		Interval: NewInterval(TimeOfDay(9*60), 60),
		Label:    "Jane Doe",
	}}}
	blocks := stubOccupancySource{occ: []Occupancy{{
		Kind:     OccupancyBlock,
		Interval: NewInterval(TimeOfDay(11*60), 60),
		Label:    "Staff meeting",
	}}}

	avail := NewAvailability(stubDayResolver{day: day}, appointments, blocks)

	got, err := avail.AvailableSlots(context.Background(), uuid.New(), time.Now(), 60, StepStaff)
	require.NoError(t, err)
	require.Len(t, got.Slots, 3)

	assert.False(t, got.Slots[0].Available)
	assert.Equal(t, "Booked - Jane Doe", got.Slots[0].Reason)
	assert.True(t, got.Slots[1].Available)
	assert.False(t, got.Slots[2].Available)
	assert.Equal(t, "Staff meeting", got.Slots[2].Reason)
}

func TestAvailableSlotsDefaultsDurationAndStep(t *testing.T) {
	day := Day{Open: true, Status: "open", OpenAt: TimeOfDay(9 * 60), CloseAt: TimeOfDay(11 * 60)}
	avail := NewAvailability(stubDayResolver{day: day})

	got, err := avail.AvailableSlots(context.Background(), uuid.New(), time.Now(), 0, 0)
	require.NoError(t, err)
	require.Len(t, got.Slots, 2)
	assert.Equal(t, TimeOfDay(9*60), got.Slots[0].Start)
	assert.Equal(t, TimeOfDay(10*60), got.Slots[1].Start)
}
