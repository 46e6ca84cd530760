package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusReferred  Status = "referred"
)

// transitions is the closed transition table. Referred is reached only when a
// referral is created from a pending appointment; completed, cancelled and
// referred are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled, StatusReferred},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled, StatusReferred:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Occupies reports whether an appointment in this status holds its interval
// against other bookings.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

// WalkIn is the inline patient snapshot captured when a patient has no
// registered account. Name and phone are mandatory.
type WalkIn struct {
	Name      string
	Phone     string
	Email     *string
	Birthdate *time.Time
	Address   *string
}

// PatientRef is the tagged patient variant: exactly one of RegisteredID or
// WalkIn is set.
type PatientRef struct {
	RegisteredID *uuid.UUID
	WalkIn       *WalkIn
}

func Registered(id uuid.UUID) PatientRef {
	return PatientRef{RegisteredID: &id}
}

func WalkInPatient(w WalkIn) PatientRef {
	return PatientRef{WalkIn: &w}
}

func (p PatientRef) IsWalkIn() bool {
	return p.WalkIn != nil
}

type Appointment struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	Patient         PatientRef
	PatientName     string // resolved display name: walk-in snapshot or registered account
	Date            time.Time
	Start           schedule.TimeOfDay
	DurationMinutes int
	TreatmentTypeID *uuid.UUID
	Status          Status
	Notes           string
	ReferralID      *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Appointment) Interval() schedule.Interval {
	return schedule.NewInterval(a.Start, a.DurationMinutes)
}

func (a *Appointment) Occupancy() schedule.Occupancy {
	return schedule.Occupancy{
		ID:       a.ID,
		Kind:     schedule.OccupancyAppointment,
		Interval: a.Interval(),
		Label:    a.PatientName,
	}
}

// NewAppointment is the input for Create.
type NewAppointment struct {
	BranchID        uuid.UUID
	Patient         PatientRef
	Date            time.Time
	Start           schedule.TimeOfDay
	TreatmentTypeID *uuid.UUID
	Notes           string
	ReferralID      *uuid.UUID
}

// Patch holds the editable fields of a pending appointment. Nil means leave
// unchanged.
type Patch struct {
	WalkInName      *string
	Date            *time.Time
	Start           *schedule.TimeOfDay
	TreatmentTypeID *uuid.UUID
	Notes           *string
}

// ReferralLink is the projection of a linked referral needed by the lifecycle
// side effects: the copy-over rule and the accepted/completed transitions.
type ReferralLink struct {
	ID                  uuid.UUID
	Status              string
	FromBranchID        uuid.UUID
	TreatmentTypeID     *uuid.UUID
	SourceAppointmentID *uuid.UUID
}
