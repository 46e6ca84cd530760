package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type Branch struct {
	ID        uuid.UUID
	Name      string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OperatingHours is one weekday row of a branch's hours table. A missing row
// for a weekday means the branch is closed that day.
type OperatingHours struct {
	BranchID uuid.UUID
	Weekday  time.Weekday
	IsOpen   bool
	Open     schedule.TimeOfDay
	Close    schedule.TimeOfDay
}

type DayStatus string

const (
	DayOpen        DayStatus = "open"
	DayBusy        DayStatus = "busy"
	DayFullyBooked DayStatus = "fully_booked"
	DayClosed      DayStatus = "closed"
)

func (s DayStatus) Valid() bool {
	switch s {
	case DayOpen, DayBusy, DayFullyBooked, DayClosed:
		return true
	}
	return false
}

// DailyStatus is the per-branch, per-date override. At most one row per
// (branch, date); absence means "open" under normal operating hours.
type DailyStatus struct {
	BranchID  uuid.UUID
	Date      time.Time
	Status    DayStatus
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TreatmentType struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	Name            string
	Price           float64
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type BlockKind string

const (
	BlockMaintenance BlockKind = "maintenance"
	BlockPersonal    BlockKind = "personal"
	BlockOther       BlockKind = "other"
)

func (k BlockKind) Valid() bool {
	switch k {
	case BlockMaintenance, BlockPersonal, BlockOther:
		return true
	}
	return false
}

// BlockedSlot is a staff-declared unavailable interval independent of
// bookings. Half-open: a slot at T is blocked when start <= T < end.
type BlockedSlot struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	Date      time.Time
	Start     schedule.TimeOfDay
	Minutes   int
	Reason    string
	Kind      BlockKind
	CreatedAt time.Time
}

func (b BlockedSlot) Interval() schedule.Interval {
	return schedule.NewInterval(b.Start, b.Minutes)
}

func (b BlockedSlot) Occupancy() schedule.Occupancy {
	label := b.Reason
	if label == "" {
		label = string(b.Kind)
	}
	return schedule.Occupancy{
		ID:       b.ID,
		Kind:     schedule.OccupancyBlock,
		Interval: b.Interval(),
		Label:    label,
	}
}

// DateOnly truncates to the calendar date in UTC. All per-day keys (daily
// status, blocks, appointment dates) are stored this way.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
