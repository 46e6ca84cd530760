package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrReferralNotFound    = errors.New("referral not found")
)

// Repository contains all DB interactions needed by the lifecycle service.
// Multi-step writes run through WithTx so every check-then-reserve sequence
// commits or rolls back as one unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListOccupying returns the non-terminal appointments holding intervals
	// for a branch day, ordered by start time.
	ListOccupying(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error)
}

// Tx is the per-transaction surface. The service composes business rules out
// of these calls; the implementation only ships SQL.
type Tx interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Insert(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error

	// Conflict check inputs, read under lock so a concurrent insert cannot
	// slip between check and reserve.
	ListOccupyingForUpdate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error)
	ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]clinic.BlockedSlot, error)

	// Referral side effects of approve/complete.
	GetReferralLink(ctx context.Context, id uuid.UUID) (*ReferralLink, error)
	UpdateReferralStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	CompleteReferral(ctx context.Context, id, staffID uuid.UUID, note string, at time.Time) error
}
