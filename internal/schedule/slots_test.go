package schedule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+30), tod)
	assert.Equal(t, "09:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("9am")
	assert.Error(t, err)
}

func TestIntervalOverlaps(t *testing.T) {
	base := NewInterval(mustTime(t, "10:00"), 60)

	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", NewInterval(mustTime(t, "10:00"), 60), true},
		{"contained", NewInterval(mustTime(t, "10:15"), 15), true},
		{"straddles start", NewInterval(mustTime(t, "09:30"), 60), true},
		{"straddles end", NewInterval(mustTime(t, "10:30"), 60), true},
		{"touches end", NewInterval(mustTime(t, "11:00"), 60), false},
		{"touches start", NewInterval(mustTime(t, "09:00"), 60), false},
		{"disjoint", NewInterval(mustTime(t, "13:00"), 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestCandidates(t *testing.T) {
	open := mustTime(t, "09:00")
	close := mustTime(t, "17:00")

	got := Candidates(open, close, StepStaff, 60)
	require.Len(t, got, 8)
	assert.Equal(t, mustTime(t, "09:00"), got[0])
	assert.Equal(t, mustTime(t, "16:00"), got[7])

	// A 90-minute treatment cannot start at 16:00.
	got = Candidates(open, close, StepStaff, 90)
	require.NotEmpty(t, got)
	assert.Equal(t, mustTime(t, "15:00"), got[len(got)-1])

	// Walk-in grid is twice as dense.
	got = Candidates(open, close, StepWalkIn, 60)
	assert.Len(t, got, 15)
}

func TestCandidatesNothingFits(t *testing.T) {
	open := mustTime(t, "09:00")

	assert.Empty(t, Candidates(open, mustTime(t, "09:30"), StepStaff, 60))
	assert.Empty(t, Candidates(open, open, StepStaff, 60))
	assert.Empty(t, Candidates(mustTime(t, "17:00"), open, StepStaff, 60))
	assert.Empty(t, Candidates(open, mustTime(t, "17:00"), 0, 60))
}

func TestPartition(t *testing.T) {
	open := mustTime(t, "09:00")
	close := mustTime(t, "13:00")
	candidates := Candidates(open, close, StepStaff, 60)
	require.Len(t, candidates, 4)

	taken := []Occupancy{
		{
			ID:       uuid.New(),
			Kind:     OccupancyAppointment,
			Interval: NewInterval(mustTime(t, "10:00"), 60),
			Label:    "Jane Doe",
		},
		{
			ID:       uuid.New(),
			Kind:     OccupancyBlock,
			Interval: NewInterval(mustTime(t, "12:00"), 30),
			Label:    "Equipment maintenance",
		},
	}

	slots := Partition(candidates, 60, taken)
	require.Len(t, slots, 4)

	assert.True(t, slots[0].Available)
	assert.Empty(t, slots[0].Reason)

	assert.False(t, slots[1].Available)
	assert.Equal(t, "Booked - Jane Doe", slots[1].Reason)

	assert.True(t, slots[2].Available)

	// 12:00-13:00 overlaps the half-hour block.
	assert.False(t, slots[3].Available)
	assert.Equal(t, "Equipment maintenance", slots[3].Reason)
}

func TestFindConflict(t *testing.T) {
	occ := Occupancy{
		ID:       uuid.New(),
		Kind:     OccupancyAppointment,
		Interval: NewInterval(mustTime(t, "10:00"), 60),
		Label:    "John Smith",
	}

	conflict := FindConflict(NewInterval(mustTime(t, "10:30"), 60), []Occupancy{occ})
	require.NotNil(t, conflict)
	assert.Equal(t, occ.ID, conflict.With.ID)
	assert.Equal(t, "Booked - John Smith", conflict.Label())

	assert.Nil(t, FindConflict(NewInterval(mustTime(t, "11:00"), 60), []Occupancy{occ}))
	assert.Nil(t, FindConflict(NewInterval(mustTime(t, "09:00"), 30), nil))
}
