package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

var ErrValidation = errors.New("validation failed")

type Service struct {
	repo     Repository
	recorder events.Recorder
}

func NewService(repo Repository, recorder events.Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

func (s *Service) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	return s.repo.GetBranch(ctx, id)
}

func (s *Service) ListBranches(ctx context.Context) ([]Branch, error) {
	return s.repo.ListBranches(ctx)
}

// ResolveDay computes the effective bookable state for a branch date: the
// daily status override first, then the weekday operating hours. A missing
// hours row means closed.
func (s *Service) ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (schedule.Day, error) {
	if _, err := s.repo.GetBranch(ctx, branchID); err != nil {
		return schedule.Day{}, err
	}
	date = DateOnly(date)

	var override *DailyStatus
	st, err := s.repo.GetDailyStatus(ctx, branchID, date)
	switch {
	case err == nil:
		override = st
	case errors.Is(err, ErrStatusNotFound):
		// no override, normal hours apply
	default:
		return schedule.Day{}, fmt.Errorf("load daily status: %w", err)
	}

	if override != nil && override.Status == DayClosed {
		reason := override.Reason
		if reason == "" {
			reason = "branch closed"
		}
		return schedule.Day{Status: string(DayClosed), Reason: reason}, nil
	}

	hours, err := s.repo.GetHours(ctx, branchID, date.Weekday())
	if err != nil {
		if errors.Is(err, ErrHoursNotFound) {
			return schedule.Day{Status: string(DayClosed), Reason: "branch closed"}, nil
		}
		return schedule.Day{}, fmt.Errorf("load operating hours: %w", err)
	}
	if !hours.IsOpen {
		return schedule.Day{Status: string(DayClosed), Reason: "branch closed"}, nil
	}

	day := schedule.Day{
		Open:    true,
		Status:  string(DayOpen),
		OpenAt:  hours.Open,
		CloseAt: hours.Close,
	}
	if override != nil {
		day.Status = string(override.Status)
		day.Reason = override.Reason
		// busy is advisory display metadata, only fully_booked gates slots
		day.FullyBooked = override.Status == DayFullyBooked
	}
	return day, nil
}

// SetDailyStatus upserts the (branch, date) override. Setting the same date
// again overwrites, so staff can adjust today's status repeatedly.
func (s *Service) SetDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time, status DayStatus, reason string) (*DailyStatus, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown daily status %q", ErrValidation, status)
	}
	if _, err := s.repo.GetBranch(ctx, branchID); err != nil {
		return nil, err
	}
	st, err := s.repo.UpsertDailyStatus(ctx, DailyStatus{
		BranchID: branchID,
		Date:     DateOnly(date),
		Status:   status,
		Reason:   reason,
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, events.DailyStatusSet, branchID, map[string]any{
		"date":   st.Date.Format("2006-01-02"),
		"status": string(st.Status),
		"reason": st.Reason,
	})
	return st, nil
}

func (s *Service) RemoveDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) error {
	day := DateOnly(date)
	if err := s.repo.DeleteDailyStatus(ctx, branchID, day); err != nil {
		return err
	}
	s.logEvent(ctx, events.DailyStatusRemoved, branchID, map[string]any{
		"date": day.Format("2006-01-02"),
	})
	return nil
}

// ListUpcomingStatuses lists overrides from the given day forward, so staff
// can review and remove future rows.
func (s *Service) ListUpcomingStatuses(ctx context.Context, branchID uuid.UUID, from time.Time) ([]DailyStatus, error) {
	return s.repo.ListDailyStatusesFrom(ctx, branchID, DateOnly(from))
}

func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	return s.repo.GetTreatment(ctx, id)
}

// ActiveTreatment loads a treatment type and rejects inactive ones, used by
// booking paths where a retired treatment must not be selectable.
func (s *Service) ActiveTreatment(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	t, err := s.repo.GetTreatment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: treatment %q is inactive", ErrValidation, t.Name)
	}
	return t, nil
}

func (s *Service) ListTreatments(ctx context.Context, branchID uuid.UUID) ([]TreatmentType, error) {
	return s.repo.ListTreatments(ctx, branchID)
}

func (s *Service) AddBlock(ctx context.Context, b BlockedSlot) (*BlockedSlot, error) {
	if !b.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown block kind %q", ErrValidation, b.Kind)
	}
	if b.Minutes <= 0 {
		return nil, fmt.Errorf("%w: block end must be after start", ErrValidation)
	}
	if !b.Start.Valid() || !b.Interval().End().Valid() {
		return nil, fmt.Errorf("%w: block must fall within one day", ErrValidation)
	}
	if _, err := s.repo.GetBranch(ctx, b.BranchID); err != nil {
		return nil, err
	}
	b.Date = DateOnly(b.Date)
	return s.repo.InsertBlock(ctx, b)
}

func (s *Service) RemoveBlock(ctx context.Context, branchID, id uuid.UUID) error {
	return s.repo.DeleteBlock(ctx, branchID, id)
}

func (s *Service) ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]BlockedSlot, error) {
	return s.repo.ListBlocks(ctx, branchID, DateOnly(date))
}

// Occupancies makes the clinic service a schedule.OccupancySource over
// blocked slots.
func (s *Service) Occupancies(ctx context.Context, branchID uuid.UUID, date time.Time) ([]schedule.Occupancy, error) {
	blocks, err := s.repo.ListBlocks(ctx, branchID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	occ := make([]schedule.Occupancy, 0, len(blocks))
	for _, b := range blocks {
		occ = append(occ, b.Occupancy())
	}
	return occ, nil
}

// Sweep removes daily status rows and blocks dated before the cutoff day.
// Run periodically by the status-sweeper worker.
func (s *Service) Sweep(ctx context.Context, now time.Time) (statuses, blocks int64, err error) {
	cutoff := DateOnly(now)
	statuses, err = s.repo.DeleteDailyStatusesBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep daily statuses: %w", err)
	}
	blocks, err = s.repo.DeleteBlocksBefore(ctx, cutoff)
	if err != nil {
		return statuses, 0, fmt.Errorf("sweep blocks: %w", err)
	}
	return statuses, blocks, nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, branchID uuid.UUID, payload map[string]any) {
	if s.recorder == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	ev := events.Event{
		EventType: eventType,
		BranchID:  &branchID,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := s.recorder.Append(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for branch %s: %v", eventType, branchID, err)
	}
}
