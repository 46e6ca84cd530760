package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
)

var ErrReferralNotFound = errors.New("referral not found")

var ErrValidation = errors.New("validation failed")

// InvalidTransitionError names the current and requested states when a
// protocol step is attempted out of order.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.Current, e.Requested)
}

// Repository contains all DB interactions needed by the workflow service.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	// ListActionable returns only patient-approved referrals: the destination
	// branch must never see referrals the patient has not consented to.
	ListActionable(ctx context.Context, toBranchID uuid.UUID) ([]Referral, error)
	ListOutgoing(ctx context.Context, fromBranchID uuid.UUID) ([]Referral, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Referral, error)
}

// Tx embeds the appointment transaction surface so accepting a referral can
// create the resulting appointment atomically with the status change.
type Tx interface {
	appointment.Tx

	GetReferralForUpdate(ctx context.Context, id uuid.UUID) (*Referral, error)
	InsertReferral(ctx context.Context, r *Referral) error
	UpdateReferral(ctx context.Context, r *Referral) error
}
