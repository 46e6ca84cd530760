package referral

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	// StatusPending means sent but not yet consented to by the patient.
	StatusPending Status = "pending"
	// StatusPatientApproved means the patient consented; the destination
	// branch may now act.
	StatusPatientApproved Status = "patient_approved"
	StatusAccepted        Status = "accepted"
	StatusRejected        Status = "rejected"
	// StatusCompleted is reached only through the resulting appointment's
	// completion, never by a direct referral action.
	StatusCompleted Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusPatientApproved, StatusRejected},
	StatusPatientApproved: {StatusAccepted, StatusRejected},
	StatusAccepted:        {StatusCompleted},
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// MinReasonLength is enforced on referral reasons and rejection reasons.
const MinReasonLength = 10

type Referral struct {
	ID                     uuid.UUID
	PatientID              uuid.UUID
	FromBranchID           uuid.UUID
	ToBranchID             uuid.UUID
	TreatmentTypeID        *uuid.UUID
	SourceAppointmentID    *uuid.UUID
	Priority               Priority
	Reason                 string
	Status                 Status
	PatientApprovedAt      *time.Time
	PatientResponseNotes   *string
	RejectionReason        *string
	ResultingAppointmentID *uuid.UUID
	CompletedAt            *time.Time
	CompletedBy            *uuid.UUID
	CompletionNotes        *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewReferral is the input for Create. SourceAppointmentID, when set, marks
// an existing appointment as referred in the same transaction.
type NewReferral struct {
	PatientID           uuid.UUID
	FromBranchID        uuid.UUID
	ToBranchID          uuid.UUID
	TreatmentTypeID     *uuid.UUID
	SourceAppointmentID *uuid.UUID
	Priority            Priority
	Reason              string
}
