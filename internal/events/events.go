// Package events appends scheduling state changes to an append-only log and
// serves them back as a change feed for polling clients.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentCreated   = "APPOINTMENT_CREATED"
	AppointmentApproved  = "APPOINTMENT_APPROVED"
	AppointmentCompleted = "APPOINTMENT_COMPLETED"
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
	AppointmentReferred  = "APPOINTMENT_REFERRED"

	ReferralCreated         = "REFERRAL_CREATED"
	ReferralPatientApproved = "REFERRAL_PATIENT_APPROVED"
	ReferralPatientDeclined = "REFERRAL_PATIENT_DECLINED"
	ReferralAccepted        = "REFERRAL_ACCEPTED"
	ReferralRejected        = "REFERRAL_REJECTED"
	ReferralCompleted       = "REFERRAL_COMPLETED"

	DailyStatusSet     = "DAILY_STATUS_SET"
	DailyStatusRemoved = "DAILY_STATUS_REMOVED"
)

type Event struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	EntityID  *uuid.UUID      `json:"entity_id,omitempty"`
	BranchID  *uuid.UUID      `json:"branch_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recorder appends events. Appends are best-effort: callers log failures and
// never fail the triggering operation.
type Recorder interface {
	Append(ctx context.Context, ev Event) error
}

// Feed serves the change-feed query backing GET /events.
type Feed interface {
	ChangesSince(ctx context.Context, since time.Time, branchID *uuid.UUID, limit int) ([]Event, error)
}
