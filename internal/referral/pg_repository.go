package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const referralColumns = `
	id, patient_id, from_branch_id, to_branch_id,
	treatment_type_id, source_appointment_id,
	priority, reason, status,
	patient_approved_at, patient_response_notes, rejection_reason,
	resulting_appointment_id,
	completed_at, completed_by, completion_notes,
	created_at, updated_at`

func scanReferral(row pgx.Row) (*Referral, error) {
	var r Referral
	err := row.Scan(
		&r.ID, &r.PatientID, &r.FromBranchID, &r.ToBranchID,
		&r.TreatmentTypeID, &r.SourceAppointmentID,
		&r.Priority, &r.Reason, &r.Status,
		&r.PatientApprovedAt, &r.PatientResponseNotes, &r.RejectionReason,
		&r.ResultingAppointmentID,
		&r.CompletedAt, &r.CompletedBy, &r.CompletionNotes,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectReferrals(rows pgx.Rows) ([]Referral, error) {
	defer rows.Close()
	var result []Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+referralColumns+`
		FROM referrals
		WHERE id = $1
	`, id)
	return scanReferral(row)
}

func (r *PgRepository) ListActionable(ctx context.Context, toBranchID uuid.UUID) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+referralColumns+`
		FROM referrals
		WHERE to_branch_id = $1 AND status = 'patient_approved'
		ORDER BY
			CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
			created_at
	`, toBranchID)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (r *PgRepository) ListOutgoing(ctx context.Context, fromBranchID uuid.UUID) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+referralColumns+`
		FROM referrals
		WHERE from_branch_id = $1
		ORDER BY created_at DESC
	`, fromBranchID)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (r *PgRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+referralColumns+`
		FROM referrals
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	wrapped := &pgTx{Tx: appointment.NewPgTx(tx), tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	appointment.Tx
	tx pgx.Tx
}

func (t *pgTx) GetReferralForUpdate(ctx context.Context, id uuid.UUID) (*Referral, error) {
	row := t.tx.QueryRow(ctx, `SELECT`+referralColumns+`
		FROM referrals
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanReferral(row)
}

func (t *pgTx) InsertReferral(ctx context.Context, r *Referral) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO referrals (
			id, patient_id, from_branch_id, to_branch_id,
			treatment_type_id, source_appointment_id,
			priority, reason, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	`,
		r.ID, r.PatientID, r.FromBranchID, r.ToBranchID,
		r.TreatmentTypeID, r.SourceAppointmentID,
		r.Priority, r.Reason, r.Status,
	)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateReferral(ctx context.Context, r *Referral) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE referrals
		SET status = $2,
		    patient_approved_at = $3,
		    patient_response_notes = $4,
		    rejection_reason = $5,
		    resulting_appointment_id = $6,
		    updated_at = now()
		WHERE id = $1
	`, r.ID, r.Status, r.PatientApprovedAt, r.PatientResponseNotes, r.RejectionReason, r.ResultingAppointmentID)
	if err != nil {
		return fmt.Errorf("update referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReferralNotFound
	}
	return nil
}
