package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func scanDailyStatus(row pgx.Row) (*DailyStatus, error) {
	var st DailyStatus
	var reason *string
	err := row.Scan(&st.BranchID, &st.Date, &st.Status, &reason, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusNotFound
		}
		return nil, err
	}
	if reason != nil {
		st.Reason = *reason
	}
	return &st, nil
}

func scanTreatment(row pgx.Row) (*TreatmentType, error) {
	var t TreatmentType
	err := row.Scan(&t.ID, &t.BranchID, &t.Name, &t.Price, &t.DurationMinutes, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTreatmentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanBlock(row pgx.Row) (*BlockedSlot, error) {
	var b BlockedSlot
	var startMinute, endMinute int
	err := row.Scan(&b.ID, &b.BranchID, &b.Date, &startMinute, &endMinute, &b.Reason, &b.Kind, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b.Start = schedule.TimeOfDay(startMinute)
	b.Minutes = endMinute - startMinute
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM branches
		WHERE id = $1
	`, id)
	return scanBranch(row)
}

func (r *PgRepository) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM branches
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetHours(ctx context.Context, branchID uuid.UUID, weekday time.Weekday) (*OperatingHours, error) {
	var h OperatingHours
	var wd, openMinute, closeMinute int

	err := r.pool.QueryRow(ctx, `
		SELECT branch_id, weekday, is_open, open_minute, close_minute
		FROM branch_hours
		WHERE branch_id = $1 AND weekday = $2
	`, branchID, int(weekday)).Scan(&h.BranchID, &wd, &h.IsOpen, &openMinute, &closeMinute)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHoursNotFound
		}
		return nil, err
	}

	h.Weekday = time.Weekday(wd)
	h.Open = schedule.TimeOfDay(openMinute)
	h.Close = schedule.TimeOfDay(closeMinute)
	return &h, nil
}

func (r *PgRepository) GetDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) (*DailyStatus, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT branch_id, date, status, reason, created_at, updated_at
		FROM clinic_daily_status
		WHERE branch_id = $1 AND date = $2
	`, branchID, date)
	return scanDailyStatus(row)
}

func (r *PgRepository) UpsertDailyStatus(ctx context.Context, st DailyStatus) (*DailyStatus, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clinic_daily_status (branch_id, date, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (branch_id, date) DO UPDATE
		SET status = EXCLUDED.status,
		    reason = EXCLUDED.reason,
		    updated_at = now()
		RETURNING branch_id, date, status, reason, created_at, updated_at
	`, st.BranchID, st.Date, st.Status, st.Reason)
	return scanDailyStatus(row)
}

func (r *PgRepository) DeleteDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM clinic_daily_status
		WHERE branch_id = $1 AND date = $2
	`, branchID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusNotFound
	}
	return nil
}

func (r *PgRepository) ListDailyStatusesFrom(ctx context.Context, branchID uuid.UUID, from time.Time) ([]DailyStatus, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT branch_id, date, status, reason, created_at, updated_at
		FROM clinic_daily_status
		WHERE branch_id = $1 AND date >= $2
		ORDER BY date
	`, branchID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyStatus
	for rows.Next() {
		st, err := scanDailyStatus(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *st)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetTreatment(ctx context.Context, id uuid.UUID) (*TreatmentType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, branch_id, name, price, duration_minutes, active, created_at, updated_at
		FROM treatment_types
		WHERE id = $1
	`, id)
	return scanTreatment(row)
}

func (r *PgRepository) ListTreatments(ctx context.Context, branchID uuid.UUID) ([]TreatmentType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, branch_id, name, price, duration_minutes, active, created_at, updated_at
		FROM treatment_types
		WHERE branch_id = $1 AND active
		ORDER BY name
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TreatmentType
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertBlock(ctx context.Context, b BlockedSlot) (*BlockedSlot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_time_slots (id, branch_id, date, start_minute, end_minute, reason, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, branch_id, date, start_minute, end_minute, reason, kind, created_at
	`, id, b.BranchID, b.Date, int(b.Start), int(b.Interval().End()), b.Reason, b.Kind)
	return scanBlock(row)
}

func (r *PgRepository) DeleteBlock(ctx context.Context, branchID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_time_slots
		WHERE id = $1 AND branch_id = $2
	`, id, branchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]BlockedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, branch_id, date, start_minute, end_minute, reason, kind, created_at
		FROM blocked_time_slots
		WHERE branch_id = $1 AND date = $2
		ORDER BY start_minute
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedSlot
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) DeleteDailyStatusesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM clinic_daily_status
		WHERE date < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) DeleteBlocksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM blocked_time_slots
		WHERE date < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
