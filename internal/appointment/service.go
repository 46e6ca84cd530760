package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/metrics"
	"github.com/Mintos48/dental-clinic-scheduling/internal/notify"
	redisclient "github.com/Mintos48/dental-clinic-scheduling/internal/redis"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// Referral statuses touched by lifecycle side effects. The referral package
// owns the full state machine; only these two values matter here.
const (
	referralStatusPatientApproved = "patient_approved"
	referralStatusAccepted        = "accepted"
)

// ClinicDirectory is the slice of the clinic service the lifecycle needs.
type ClinicDirectory interface {
	ResolveDay(ctx context.Context, branchID uuid.UUID, date time.Time) (schedule.Day, error)
	ActiveTreatment(ctx context.Context, id uuid.UUID) (*clinic.TreatmentType, error)
}

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

// Create reserves a slot for a patient. The conflict check and the insert run
// under the branch day lock in one transaction, so concurrent attempts for
// overlapping intervals yield exactly one success.
func (s *Service) Create(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if err := validatePatient(in.Patient); err != nil {
		return nil, err
	}
	if !in.Start.Valid() {
		return nil, fmt.Errorf("%w: appointment time is required", ErrValidation)
	}

	date := clinic.DateOnly(in.Date)

	day, err := s.clinics.ResolveDay(ctx, in.BranchID, date)
	if err != nil {
		return nil, fmt.Errorf("resolve day: %w", err)
	}
	if !day.Open || day.FullyBooked {
		return nil, &schedule.ClosedBranchError{BranchID: in.BranchID, Date: date, Reason: closedReason(day)}
	}

	duration, err := s.resolveDuration(ctx, in.BranchID, in.TreatmentTypeID)
	if err != nil {
		return nil, err
	}

	iv := schedule.NewInterval(in.Start, duration)
	if in.Start < day.OpenAt || iv.End() > day.CloseAt {
		return nil, fmt.Errorf("%w: slot %s is outside operating hours %s-%s", ErrValidation, iv, day.OpenAt, day.CloseAt)
	}

	appt := &Appointment{
		ID:              uuid.New(),
		BranchID:        in.BranchID,
		Patient:         in.Patient,
		Date:            date,
		Start:           in.Start,
		DurationMinutes: duration,
		TreatmentTypeID: in.TreatmentTypeID,
		Status:          StatusPending,
		Notes:           in.Notes,
		ReferralID:      in.ReferralID,
	}
	if in.Patient.IsWalkIn() {
		appt.PatientName = in.Patient.WalkIn.Name
	}

	err = s.locker.WithBranchDayLock(ctx, in.BranchID, date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			taken, err := occupanciesForUpdate(txCtx, tx, in.BranchID, date, uuid.Nil)
			if err != nil {
				return err
			}
			if conflict := schedule.FindConflict(iv, taken); conflict != nil {
				return conflict
			}
			return tx.Insert(txCtx, appt)
		})
	})
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict("create")
		}
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("reload appointment: %w", err)
	}

	s.metrics.ObserveAppointment("created")
	s.logEvent(ctx, events.AppointmentCreated, created, map[string]any{
		"start":    created.Start.String(),
		"duration": created.DurationMinutes,
	})
	notify.BestEffort(ctx, "appointment created", func(nCtx context.Context) error {
		return s.notifier.AppointmentCreated(nCtx, created.ID, created.BranchID, created.PatientName)
	})

	return created, nil
}

// Approve moves a pending appointment to approved. For referral-originated
// appointments without a treatment, the treatment and duration are copied
// from the original referred appointment, and the linked referral is bumped
// to accepted if the patient-approved step had not been finalized yet.
// The copy-over can grow the reserved interval, so it runs under the branch
// day lock and re-checks for conflicts against neighbors booked since.
func (s *Service) Approve(ctx context.Context, id, staffID uuid.UUID) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.locker.WithBranchDayLock(ctx, current.BranchID, current.Date, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			appt, err := tx.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			if !appt.Status.CanTransition(StatusApproved) {
				return &InvalidTransitionError{Current: appt.Status, Requested: StatusApproved}
			}

			if appt.ReferralID != nil {
				link, err := tx.GetReferralLink(txCtx, *appt.ReferralID)
				if err != nil {
					return fmt.Errorf("load linked referral: %w", err)
				}
				if appt.TreatmentTypeID == nil && link.SourceAppointmentID != nil {
					src, err := tx.Get(txCtx, *link.SourceAppointmentID)
					if err != nil {
						return fmt.Errorf("load referred appointment: %w", err)
					}
					appt.TreatmentTypeID = src.TreatmentTypeID
					if src.DurationMinutes > appt.DurationMinutes {
						iv := schedule.NewInterval(appt.Start, src.DurationMinutes)
						taken, err := occupanciesForUpdate(txCtx, tx, appt.BranchID, appt.Date, appt.ID)
						if err != nil {
							return err
						}
						if conflict := schedule.FindConflict(iv, taken); conflict != nil {
							return conflict
						}
					}
					appt.DurationMinutes = src.DurationMinutes
				}
				if _, err := tx.UpdateReferralStatus(txCtx, link.ID, referralStatusPatientApproved, referralStatusAccepted); err != nil {
					return fmt.Errorf("update linked referral: %w", err)
				}
			}

			appt.Status = StatusApproved
			if err := tx.Update(txCtx, appt); err != nil {
				return err
			}
			updated = appt
			return nil
		})
	})
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict("approve")
		}
		return nil, err
	}

	s.metrics.ObserveAppointment("approved")
	s.logEvent(ctx, events.AppointmentApproved, updated, map[string]any{"staff_id": staffID.String()})
	return updated, nil
}

// Complete closes out an approved appointment. Completion metadata propagates
// into the linked referral in the same transaction; the patient-facing notice
// afterwards is fire-and-forget.
func (s *Service) Complete(ctx context.Context, id, staffID uuid.UUID, note string) (*Appointment, error) {
	var updated *Appointment

	err := s.repo.WithTx(ctx, func(txCtx context.Context, tx Tx) error {
		appt, err := tx.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !appt.Status.CanTransition(StatusCompleted) {
			return &InvalidTransitionError{Current: appt.Status, Requested: StatusCompleted}
		}

		appt.Status = StatusCompleted
		if err := tx.Update(txCtx, appt); err != nil {
			return err
		}
		if appt.ReferralID != nil {
			if err := tx.CompleteReferral(txCtx, *appt.ReferralID, staffID, note, time.Now()); err != nil {
				return fmt.Errorf("complete linked referral: %w", err)
			}
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveAppointment("completed")
	s.logEvent(ctx, events.AppointmentCompleted, updated, map[string]any{
		"staff_id": staffID.String(),
		"note":     note,
	})
	if updated.ReferralID != nil {
		s.appendEvent(ctx, events.ReferralCompleted, *updated.ReferralID, updated.BranchID, map[string]any{
			"appointment_id": updated.ID.String(),
			"staff_id":       staffID.String(),
		})
	}
	notify.BestEffort(ctx, "appointment completed", func(nCtx context.Context) error {
		return s.notifier.AppointmentCompleted(nCtx, updated.ID, updated.BranchID, updated.PatientName)
	})

	return updated, nil
}

// Cancel rejects a pending appointment or cancels an approved one. The freed
// slot becomes available implicitly, since cancelled appointments no longer
// occupy their interval.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, staffID uuid.UUID) (*Appointment, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a cancellation reason is required", ErrValidation)
	}

	var updated *Appointment
	err := s.repo.WithTx(ctx, func(txCtx context.Context, tx Tx) error {
		appt, err := tx.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !appt.Status.CanTransition(StatusCancelled) {
			return &InvalidTransitionError{Current: appt.Status, Requested: StatusCancelled}
		}
		appt.Status = StatusCancelled
		appt.Notes = appendNote(appt.Notes, "Cancelled: "+reason)
		if err := tx.Update(txCtx, appt); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveAppointment("cancelled")
	s.logEvent(ctx, events.AppointmentCancelled, updated, map[string]any{
		"staff_id": staffID.String(),
		"reason":   reason,
	})
	return updated, nil
}

// UpdateStatus is the request/response entry point for status changes.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, reason string, staffID uuid.UUID) (*Appointment, error) {
	switch to {
	case StatusApproved:
		return s.Approve(ctx, id, staffID)
	case StatusCompleted:
		return s.Complete(ctx, id, staffID, reason)
	case StatusCancelled:
		return s.Cancel(ctx, id, reason, staffID)
	case StatusReferred:
		return nil, fmt.Errorf("%w: referred is reached by creating a referral, not by a direct status change", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown appointment status %q", ErrValidation, to)
	}
}

// Edit changes a pending appointment. Moving it to another slot re-runs the
// conflict check against the new slot, excluding the appointment's own
// current reservation.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, patch Patch) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusPending {
		return nil, &InvalidTransitionError{Current: current.Status, Requested: StatusPending}
	}
	if patch.WalkInName != nil && !current.Patient.IsWalkIn() {
		return nil, fmt.Errorf("%w: registered patient names cannot be edited on an appointment", ErrValidation)
	}
	if patch.WalkInName != nil && strings.TrimSpace(*patch.WalkInName) == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrValidation)
	}

	newDate := current.Date
	if patch.Date != nil {
		newDate = clinic.DateOnly(*patch.Date)
	}
	newStart := current.Start
	if patch.Start != nil {
		newStart = *patch.Start
	}
	newTreatment := current.TreatmentTypeID
	if patch.TreatmentTypeID != nil {
		newTreatment = patch.TreatmentTypeID
	}

	slotChanged := !newDate.Equal(current.Date) || newStart != current.Start ||
		!uuidPtrEqual(newTreatment, current.TreatmentTypeID)

	duration := current.DurationMinutes
	if patch.TreatmentTypeID != nil {
		duration, err = s.resolveDuration(ctx, current.BranchID, newTreatment)
		if err != nil {
			return nil, err
		}
	}

	iv := schedule.NewInterval(newStart, duration)
	if slotChanged {
		day, err := s.clinics.ResolveDay(ctx, current.BranchID, newDate)
		if err != nil {
			return nil, fmt.Errorf("resolve day: %w", err)
		}
		if !day.Open || day.FullyBooked {
			return nil, &schedule.ClosedBranchError{BranchID: current.BranchID, Date: newDate, Reason: closedReason(day)}
		}
		if newStart < day.OpenAt || iv.End() > day.CloseAt {
			return nil, fmt.Errorf("%w: slot %s is outside operating hours %s-%s", ErrValidation, iv, day.OpenAt, day.CloseAt)
		}
	}

	var updated *Appointment
	err = s.locker.WithBranchDayLock(ctx, current.BranchID, newDate, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(txCtx context.Context, tx Tx) error {
			appt, err := tx.GetForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			if appt.Status != StatusPending {
				return &InvalidTransitionError{Current: appt.Status, Requested: StatusPending}
			}

			if slotChanged {
				taken, err := occupanciesForUpdate(txCtx, tx, appt.BranchID, newDate, appt.ID)
				if err != nil {
					return err
				}
				if conflict := schedule.FindConflict(iv, taken); conflict != nil {
					return conflict
				}
			}

			appt.Date = newDate
			appt.Start = newStart
			appt.TreatmentTypeID = newTreatment
			appt.DurationMinutes = duration
			if patch.Notes != nil {
				appt.Notes = *patch.Notes
			}
			if patch.WalkInName != nil && appt.Patient.IsWalkIn() {
				appt.Patient.WalkIn.Name = strings.TrimSpace(*patch.WalkInName)
				appt.PatientName = appt.Patient.WalkIn.Name
			}
			if err := tx.Update(txCtx, appt); err != nil {
				return err
			}
			updated = appt
			return nil
		})
	})
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict("edit")
		}
		return nil, err
	}

	s.metrics.ObserveAppointment("edited")
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListByBranchDate(ctx, branchID, clinic.DateOnly(date))
}

// Occupancies makes the lifecycle service a schedule.OccupancySource over
// active appointments.
func (s *Service) Occupancies(ctx context.Context, branchID uuid.UUID, date time.Time) ([]schedule.Occupancy, error) {
	appts, err := s.repo.ListOccupying(ctx, branchID, clinic.DateOnly(date))
	if err != nil {
		return nil, err
	}
	occ := make([]schedule.Occupancy, 0, len(appts))
	for i := range appts {
		occ = append(occ, appts[i].Occupancy())
	}
	return occ, nil
}

// Helpers

func validatePatient(p PatientRef) error {
	switch {
	case p.RegisteredID != nil && p.WalkIn != nil:
		return fmt.Errorf("%w: appointment cannot carry both a registered patient and a walk-in snapshot", ErrValidation)
	case p.RegisteredID == nil && p.WalkIn == nil:
		return fmt.Errorf("%w: a registered patient or a walk-in snapshot is required", ErrValidation)
	case p.WalkIn != nil:
		if strings.TrimSpace(p.WalkIn.Name) == "" {
			return fmt.Errorf("%w: walk-in name is required", ErrValidation)
		}
		if strings.TrimSpace(p.WalkIn.Phone) == "" {
			return fmt.Errorf("%w: walk-in phone is required", ErrValidation)
		}
	}
	return nil
}

func (s *Service) resolveDuration(ctx context.Context, branchID uuid.UUID, treatmentID *uuid.UUID) (int, error) {
	if treatmentID == nil {
		return schedule.DefaultDurationMinutes, nil
	}
	t, err := s.clinics.ActiveTreatment(ctx, *treatmentID)
	if err != nil {
		return 0, err
	}
	if t.BranchID != branchID {
		return 0, fmt.Errorf("%w: treatment %q belongs to another branch", ErrValidation, t.Name)
	}
	if t.DurationMinutes <= 0 {
		return schedule.DefaultDurationMinutes, nil
	}
	return t.DurationMinutes, nil
}

// occupanciesForUpdate reads the conflict-check inputs inside the reserve
// transaction, excluding the caller's own reservation when it is being moved.
func occupanciesForUpdate(ctx context.Context, tx Tx, branchID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]schedule.Occupancy, error) {
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
		if appts[i].ID == excludeID {
			continue
		}
		taken = append(taken, appts[i].Occupancy())
	}
	for _, b := range blocks {
		taken = append(taken, b.Occupancy())
	}
	return taken, nil
}

func closedReason(day schedule.Day) string {
	if day.Reason != "" {
		return day.Reason
	}
	if day.FullyBooked {
		return "fully booked"
	}
	return "branch closed"
}

func appendNote(notes, line string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) logEvent(ctx context.Context, eventType string, appt *Appointment, payload map[string]any) {
	s.appendEvent(ctx, eventType, appt.ID, appt.BranchID, payload)
}

func (s *Service) appendEvent(ctx context.Context, eventType string, entityID, branchID uuid.UUID, payload map[string]any) {
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
		EntityID:  &entityID,
		BranchID:  &branchID,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if err := s.recorder.Append(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for %s: %v", eventType, entityID, err)
	}
}
