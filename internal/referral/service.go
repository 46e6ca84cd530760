package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/metrics"
	"github.com/Mintos48/dental-clinic-scheduling/internal/notify"
	redisclient "github.com/Mintos48/dental-clinic-scheduling/internal/redis"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// ClinicDirectory is the slice of the clinic service the workflow needs.
type ClinicDirectory interface {
	ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (schedule.Day, error)
	ActiveTreatment(ctx context.Context, id uuid.UUID) (*clinic.TreatmentType, error)
}

// Service owns the two-step consent protocol: the patient and the destination
// branch must each agree before any appointment is created at the
// destination.
type Service struct {
	repo     Repository
	clinics  ClinicDirectory
	locker   redisclient.Locker
	recorder events.Recorder
	notifier notify.Dispatcher
	metrics  *metrics.SchedulingMetrics
}

func NewService(repo Repository, clinics ClinicDirectory, locker redisclient.Locker, recorder events.Recorder, notifier notify.Dispatcher, m *metrics.SchedulingMetrics) *Service {
	return &Service{
		repo:     repo,
		clinics:  clinics,
		locker:   locker,
		recorder: recorder,
		notifier: notifier,
		metrics:  m,
	}
}

// Create sends a referral from one branch to another. When the referral
// originates from an existing appointment, that appointment transitions to
// referred in the same transaction.
func (s *Service) Create(ctx context.Context, in NewReferral) (*Referral, error) {
	if len(strings.TrimSpace(in.Reason)) < MinReasonLength {
		return nil, fmt.Errorf("%w: referral reason must be at least %d characters", ErrValidation, MinReasonLength)
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}
	if in.FromBranchID == in.ToBranchID {
		return nil, fmt.Errorf("%w: referral must target a different branch", ErrValidation)
	}
	if in.TreatmentTypeID != nil {
		t, err := s.clinics.ActiveTreatment(ctx, *in.TreatmentTypeID)
		if err != nil {
			return nil, err
		}
		if t.BranchID != in.ToBranchID {
			return nil, fmt.Errorf("%w: treatment %q is not offered at the destination branch", ErrValidation, t.Name)
		}
	}

	ref := &Referral{
		ID:                  uuid.New(),
		PatientID:           in.PatientID,
		FromBranchID:        in.FromBranchID,
		ToBranchID:          in.ToBranchID,
		TreatmentTypeID:     in.TreatmentTypeID,
		SourceAppointmentID: in.SourceAppointmentID,
		Priority:            in.Priority,
		Reason:              strings.TrimSpace(in.Reason),
		Status:              StatusPending,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context, tx Tx) error {
		if in.SourceAppointmentID != nil {
			src, err := tx.GetForUpdate(txCtx, *in.SourceAppointmentID)
			if err != nil {
				return fmt.Errorf("load source appointment: %w", err)
			}
			if src.BranchID != in.FromBranchID {
				return fmt.Errorf("%w: source appointment belongs to another branch", ErrValidation)
			}
			if src.Patient.RegisteredID == nil || *src.Patient.RegisteredID != in.PatientID {
				return fmt.Errorf("%w: source appointment belongs to another patient", ErrValidation)
			}
			if !src.Status.CanTransition(appointment.StatusReferred) {
				return &appointment.InvalidTransitionError{Current: src.Status, Requested: appointment.StatusReferred}
			}
			src.Status = appointment.StatusReferred
			if err := tx.Update(txCtx, src); err != nil {
				return fmt.Errorf("mark appointment referred: %w", err)
			}
		}
		return tx.InsertReferral(txCtx, ref)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReferral("created")
	s.logEvent(ctx, events.ReferralCreated, ref, map[string]any{
		"to_branch": in.ToBranchID.String(),
		"priority":  string(in.Priority),
	})
	if in.SourceAppointmentID != nil {
		s.logEvent(ctx, events.AppointmentReferred, ref, map[string]any{
			"appointment_id": in.SourceAppointmentID.String(),
		})
	}

	created, err := s.repo.GetByID(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("reload referral: %w", err)
	}
	return created, nil
}

// RecordPatientResponse registers the patient's consent decision. Approval
// stamps patient_approved_at once and makes the referral visible to the
// destination branch; a decline rejects the referral outright.
func (s *Service) RecordPatientResponse(ctx context.Context, id uuid.UUID, approved bool, notes string) (*Referral, error) {
	var updated *Referral

	err := s.repo.WithTx(ctx, func(txCtx context.Context, tx Tx) error {
		ref, err := tx.GetReferralForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		target := StatusPatientApproved
		if !approved {
			target = StatusRejected
		}
		if ref.Status != StatusPending {
			return &InvalidTransitionError{Current: ref.Status, Requested: target}
		}

		ref.Status = target
		if trimmed := strings.TrimSpace(notes); trimmed != "" {
			ref.PatientResponseNotes = &trimmed
		}
		if approved {
			now := time.Now()
			ref.PatientApprovedAt = &now
		} else {
			reason := "declined by patient"
			ref.RejectionReason = &reason
		}

		if err := tx.UpdateReferral(txCtx, ref); err != nil {
			return err
		}
		updated = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	if approved {
		s.metrics.ObserveReferral("patient_approved")
		s.logEvent(ctx, events.ReferralPatientApproved, updated, nil)
	} else {
		s.metrics.ObserveReferral("patient_declined")
		s.logEvent(ctx, events.ReferralPatientDeclined, updated, nil)
	}
	return updated, nil
}

// Accept books the referred patient into the destination branch. The status
// change and the resulting appointment commit together: a slot conflict rolls
// everything back and leaves the referral patient-approved and retryable.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, date time.Time, start schedule.TimeOfDay, notes string, staffID uuid.UUID) (*appointment.Appointment, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status != StatusPatientApproved {
		return nil, &InvalidTransitionError{Current: ref.Status, Requested: StatusAccepted}
	}

	date = clinic.DateOnly(date)
	day, err := s.clinics.ResolveDay(ctx, ref.ToBranchID, date)
	if err != nil {
		return nil, fmt.Errorf("resolve day: %w", err)
	}
	if !day.Open || day.FullyBooked {
		reason := day.Reason
		if reason == "" {
			reason = "branch closed"
		}
		return nil, &schedule.ClosedBranchError{BranchID: ref.ToBranchID, Date: date, Reason: reason}
	}

	duration := schedule.DefaultDurationMinutes
	if ref.TreatmentTypeID != nil {
		t, err := s.clinics.ActiveTreatment(ctx, *ref.TreatmentTypeID)
		if err != nil {
			return nil, err
		}
		if t.DurationMinutes > 0 {
			duration = t.DurationMinutes
		}
	}

	iv := schedule.NewInterval(start, duration)
	if start < day.OpenAt || iv.End() > day.CloseAt {
		return nil, fmt.Errorf("%w: slot %s is outside operating hours %s-%s", ErrValidation, iv, day.OpenAt, day.CloseAt)
	}

	var created *appointment.Appointment
	err = s.locker.WithBranchDayLock(ctx, ref.ToBranchID, date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			locked, err := tx.GetReferralForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			if locked.Status != StatusPatientApproved {
				return &InvalidTransitionError{Current: locked.Status, Requested: StatusAccepted}
			}

			taken, err := occupanciesForUpdate(txCtx, tx, locked.ToBranchID, date)
			if err != nil {
				return err
			}
			if conflict := schedule.FindConflict(iv, taken); conflict != nil {
				return conflict
			}

			appt := &appointment.Appointment{
				ID:              uuid.New(),
				BranchID:        locked.ToBranchID,
				Patient:         appointment.Registered(locked.PatientID),
				Date:            date,
				Start:           start,
				DurationMinutes: duration,
				TreatmentTypeID: locked.TreatmentTypeID,
				Status:          appointment.StatusPending,
				Notes:           strings.TrimSpace(notes),
				ReferralID:      &locked.ID,
			}
			if err := tx.Insert(txCtx, appt); err != nil {
				return err
			}

			locked.Status = StatusAccepted
			locked.ResultingAppointmentID = &appt.ID
			if err := tx.UpdateReferral(txCtx, locked); err != nil {
				return err
			}

			created = appt
			return nil
		})
	})
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict("accept_referral")
		}
		return nil, err
	}

	s.metrics.ObserveReferral("accepted")
	s.logEvent(ctx, events.ReferralAccepted, ref, map[string]any{
		"appointment_id": created.ID.String(),
		"staff_id":       staffID.String(),
	})
	notify.BestEffort(ctx, "referral accepted", func(nCtx context.Context) error {
		return s.notifier.ReferralDecided(nCtx, ref.ID, ref.FromBranchID, true)
	})

	return created, nil
}

// Reject declines a patient-approved referral with a reason the referring
// branch can see. No appointment is created.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Referral, error) {
	trimmed := strings.TrimSpace(reason)
	if len(trimmed) < MinReasonLength {
		return nil, fmt.Errorf("%w: rejection reason must be at least %d characters", ErrValidation, MinReasonLength)
	}

	var updated *Referral
	err := s.repo.WithTx(ctx, func(txCtx context.Context, tx Tx) error {
		ref, err := tx.GetReferralForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if ref.Status != StatusPatientApproved {
			return &InvalidTransitionError{Current: ref.Status, Requested: StatusRejected}
		}
		ref.Status = StatusRejected
		ref.RejectionReason = &trimmed
		if err := tx.UpdateReferral(txCtx, ref); err != nil {
			return err
		}
		updated = ref
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReferral("rejected")
	s.logEvent(ctx, events.ReferralRejected, updated, map[string]any{"reason": trimmed})
	notify.BestEffort(ctx, "referral rejected", func(nCtx context.Context) error {
		return s.notifier.ReferralDecided(nCtx, updated.ID, updated.FromBranchID, false)
	})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActionable is the destination branch's queue: patient-approved
// referrals only, highest priority first.
func (s *Service) ListActionable(ctx context.Context, toBranchID uuid.UUID) ([]Referral, error) {
	return s.repo.ListActionable(ctx, toBranchID)
}

func (s *Service) ListOutgoing(ctx context.Context, fromBranchID uuid.UUID) ([]Referral, error) {
	return s.repo.ListOutgoing(ctx, fromBranchID)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Referral, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

func occupanciesForUpdate(ctx context.Context, tx Tx, branchID uuid.UUID, date time.Time) ([]schedule.Occupancy, error) {
	appts, err := tx.ListOccupyingForUpdate(ctx, branchID, date)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	blocks, err := tx.ListBlocks(ctx, branchID, date)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	taken := make([]schedule.Occupancy, 0, len(appts)+len(blocks))
	for i := range appts {
		taken = append(taken, appts[i].Occupancy())
	}
	for _, b := range blocks {
		taken = append(taken, b.Occupancy())
	}
	return taken, nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, ref *Referral, payload map[string]any) {
	if s.recorder == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	id := ref.ID
	branchID := ref.ToBranchID
	ev := events.Event{
		EventType: eventType,
		EntityID:  &id,
		BranchID:  &branchID,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := s.recorder.Append(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for referral %s: %v", eventType, ref.ID, err)
	}
}
