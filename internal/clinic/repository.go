package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBranchNotFound    = errors.New("branch not found")
	ErrHoursNotFound     = errors.New("operating hours not found")
	ErrStatusNotFound    = errors.New("daily status not found")
	ErrTreatmentNotFound = errors.New("treatment type not found")
	ErrBlockNotFound     = errors.New("blocked slot not found")
)

// Repository contains all DB interactions needed by the clinic service.
type Repository interface {
	GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error)
	ListBranches(ctx context.Context) ([]Branch, error)

	GetHours(ctx context.Context, branchID uuid.UUID, weekday time.Weekday) (*OperatingHours, error)

	GetDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) (*DailyStatus, error)
	UpsertDailyStatus(ctx context.Context, st DailyStatus) (*DailyStatus, error)
	DeleteDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) error
	ListDailyStatusesFrom(ctx context.Context, branchID uuid.UUID, from time.Time) ([]DailyStatus, error)

	GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentType, error)
	ListTreatments(ctx context.Context, branchID uuid.UUID) ([]TreatmentType, error)

	InsertBlock(ctx context.Context, b BlockedSlot) (*BlockedSlot, error)
	DeleteBlock(ctx context.Context, branchID, id uuid.UUID) error
	ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]BlockedSlot, error)

	// Sweeper
	DeleteDailyStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteBlocksBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
