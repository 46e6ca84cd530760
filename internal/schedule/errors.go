package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictError is returned when a requested interval overlaps an existing
// appointment or block. It carries the conflicting entity so callers can tell
// the user what is in the way.
type ConflictError struct {
	With Occupancy
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict: %s overlaps %s %s", e.With.Interval, e.With.Kind, e.With.ID)
}

// Label is the human-readable cause: "Booked - Jane Doe" for an appointment,
// the block reason otherwise.
func (e *ConflictError) Label() string {
	if e.With.Kind == OccupancyAppointment {
		return "Booked - " + e.With.Label
	}
	return e.With.Label
}

// ClosedBranchError is returned when a slot is requested on a day the branch
// does not operate, either by weekday hours or by a daily status override.
type ClosedBranchError struct {
	BranchID uuid.UUID
	Date     time.Time
	Reason   string
}

func (e *ClosedBranchError) Error() string {
	return fmt.Sprintf("branch %s closed on %s: %s", e.BranchID, e.Date.Format("2006-01-02"), e.Reason)
}
