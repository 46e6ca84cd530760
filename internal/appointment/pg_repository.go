package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

// apptColumns is the shared select list; patient_name resolves to the walk-in
// snapshot or the registered patient's account name.
const apptColumns = `
	a.id, a.branch_id, a.patient_id,
	a.walkin_name, a.walkin_phone, a.walkin_email, a.walkin_birthdate, a.walkin_address,
	a.appointment_date, a.start_minute, a.duration_minutes,
	a.treatment_type_id, a.status, a.notes, a.referral_id,
	a.created_at, a.updated_at,
	COALESCE(a.walkin_name, p.name, '') AS patient_name`

const apptFrom = `
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *uuid.UUID
	var walkinName, walkinPhone, walkinEmail, walkinAddress *string
	var walkinBirthdate *time.Time
	var startMinute int

	err := row.Scan(
		&a.ID, &a.BranchID, &patientID,
		&walkinName, &walkinPhone, &walkinEmail, &walkinBirthdate, &walkinAddress,
		&a.Date, &startMinute, &a.DurationMinutes,
		&a.TreatmentTypeID, &a.Status, &a.Notes, &a.ReferralID,
		&a.CreatedAt, &a.UpdatedAt,
		&a.PatientName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = schedule.TimeOfDay(startMinute)
	if patientID != nil {
		a.Patient = PatientRef{RegisteredID: patientID}
	} else {
		w := WalkIn{
			Email:     walkinEmail,
			Birthdate: walkinBirthdate,
			Address:   walkinAddress,
		}
		if walkinName != nil {
			w.Name = *walkinName
		}
		if walkinPhone != nil {
			w.Phone = *walkinPhone
		}
		a.Patient = PatientRef{WalkIn: &w}
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Repository methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListOccupying(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.branch_id = $1
		  AND a.appointment_date = $2
		  AND a.status IN ('pending', 'approved')
		ORDER BY a.start_minute
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.branch_id = $1
		  AND a.appointment_date = $2
		ORDER BY a.start_minute, a.created_at
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx ships the per-transaction SQL.
type pgTx struct {
	tx pgx.Tx
}

// NewPgTx exposes the transaction surface over an already-open pgx.Tx, so the
// referral repository can compose appointment writes into its own
// transactions.
func NewPgTx(tx pgx.Tx) Tx {
	return &pgTx{tx: tx}
}

func (t *pgTx) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (t *pgTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.id = $1
		FOR UPDATE OF a
	`, id)
	return scanAppointment(row)
}

func (t *pgTx) Insert(ctx context.Context, a *Appointment) error {
	var walkinName, walkinPhone, walkinEmail, walkinAddress *string
	var walkinBirthdate *time.Time
	if a.Patient.WalkIn != nil {
		w := a.Patient.WalkIn
		walkinName = &w.Name
		walkinPhone = &w.Phone
		walkinEmail = w.Email
		walkinBirthdate = w.Birthdate
		walkinAddress = w.Address
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments (
			id, branch_id, patient_id,
			walkin_name, walkin_phone, walkin_email, walkin_birthdate, walkin_address,
			appointment_date, start_minute, duration_minutes,
			treatment_type_id, status, notes, referral_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
	`,
		a.ID, a.BranchID, a.Patient.RegisteredID,
		walkinName, walkinPhone, walkinEmail, walkinBirthdate, walkinAddress,
		a.Date, int(a.Start), a.DurationMinutes,
		a.TreatmentTypeID, a.Status, a.Notes, a.ReferralID,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, a *Appointment) error {
	var walkinName *string
	if a.Patient.WalkIn != nil {
		walkinName = &a.Patient.WalkIn.Name
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
		    start_minute = $3,
		    duration_minutes = $4,
		    treatment_type_id = $5,
		    status = $6,
		    notes = $7,
		    walkin_name = COALESCE($8, walkin_name),
		    updated_at = now()
		WHERE id = $1
	`, a.ID, a.Date, int(a.Start), a.DurationMinutes, a.TreatmentTypeID, a.Status, a.Notes, walkinName)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) ListOccupyingForUpdate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := t.tx.Query(ctx, `SELECT`+apptColumns+apptFrom+`
		WHERE a.branch_id = $1
		  AND a.appointment_date = $2
		  AND a.status IN ('pending', 'approved')
		ORDER BY a.start_minute
		FOR UPDATE OF a
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (t *pgTx) ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]clinic.BlockedSlot, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, branch_id, date, start_minute, end_minute, reason, kind, created_at
		FROM blocked_time_slots
		WHERE branch_id = $1 AND date = $2
		ORDER BY start_minute
	`, branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []clinic.BlockedSlot
	for rows.Next() {
		var b clinic.BlockedSlot
		var startMinute, endMinute int
		if err := rows.Scan(&b.ID, &b.BranchID, &b.Date, &startMinute, &endMinute, &b.Reason, &b.Kind, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Start = schedule.TimeOfDay(startMinute)
		b.Minutes = endMinute - startMinute
		result = append(result, b)
	}
	return result, rows.Err()
}

func (t *pgTx) GetReferralLink(ctx context.Context, id uuid.UUID) (*ReferralLink, error) {
	var link ReferralLink
	err := t.tx.QueryRow(ctx, `
		SELECT id, status, from_branch_id, treatment_type_id, source_appointment_id
		FROM referrals
		WHERE id = $1
	`, id).Scan(&link.ID, &link.Status, &link.FromBranchID, &link.TreatmentTypeID, &link.SourceAppointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (t *pgTx) UpdateReferralStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE referrals
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update referral status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) CompleteReferral(ctx context.Context, id, staffID uuid.UUID, note string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE referrals
		SET status = 'completed',
		    completed_at = $2,
		    completed_by = $3,
		    completion_notes = $4,
		    updated_at = now()
		WHERE id = $1
	`, id, at, staffID, note)
	if err != nil {
		return fmt.Errorf("complete referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReferralNotFound
	}
	return nil
}
