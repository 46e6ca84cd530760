package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
	"github.com/Mintos48/dental-clinic-scheduling/internal/referral"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// Service interfaces mirror the concrete services in internal/appointment,
// internal/referral and internal/clinic; handlers depend on these so tests
// can substitute stubs.

type AppointmentService interface {
	Create(ctx context.Context, in appointment.NewAppointment) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListByBranchDate(ctx context.Context, branchID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to appointment.Status, reason string, staffID uuid.UUID) (*appointment.Appointment, error)
	Edit(ctx context.Context, id uuid.UUID, patch appointment.Patch) (*appointment.Appointment, error)
}

type ReferralService interface {
	Create(ctx context.Context, in referral.NewReferral) (*referral.Referral, error)
	Get(ctx context.Context, id uuid.UUID) (*referral.Referral, error)
	ListActionable(ctx context.Context, toBranchID uuid.UUID) ([]referral.Referral, error)
	ListOutgoing(ctx context.Context, fromBranchID uuid.UUID) ([]referral.Referral, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]referral.Referral, error)
	RecordPatientResponse(ctx context.Context, id uuid.UUID, approved bool, notes string) (*referral.Referral, error)
	Accept(ctx context.Context, id uuid.UUID, date time.Time, start schedule.TimeOfDay, notes string, staffID uuid.UUID) (*appointment.Appointment, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*referral.Referral, error)
}

type ClinicService interface {
	ListBranches(ctx context.Context) ([]clinic.Branch, error)
	ListTreatments(ctx context.Context, branchID uuid.UUID) ([]clinic.TreatmentType, error)
	GetTreatment(ctx context.Context, id uuid.UUID) (*clinic.TreatmentType, error)
	SetDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time, status clinic.DayStatus, reason string) (*clinic.DailyStatus, error)
	RemoveDailyStatus(ctx context.Context, branchID uuid.UUID, date time.Time) error
	ListUpcomingStatuses(ctx context.Context, branchID uuid.UUID, from time.Time) ([]clinic.DailyStatus, error)
	AddBlock(ctx context.Context, b clinic.BlockedSlot) (*clinic.BlockedSlot, error)
	RemoveBlock(ctx context.Context, branchID, id uuid.UUID) error
	ListBlocks(ctx context.Context, branchID uuid.UUID, date time.Time) ([]clinic.BlockedSlot, error)
}

type SlotLister interface {
	AvailableSlots(ctx context.Context, branchID uuid.UUID, date time.Time, durationMinutes, stepMinutes int) (schedule.DaySlots, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Referrals    ReferralService
	Clinics      ClinicService
	Slots        SlotLister
	Feed         events.Feed
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Patch("/{id}", editAppointmentHandler(cfg.Appointments))
		r.Patch("/{id}/status", updateAppointmentStatusHandler(cfg.Appointments))
	})

	r.Route("/referrals", func(r chi.Router) {
		r.Post("/", createReferralHandler(cfg.Referrals))
		r.Get("/", listReferralsHandler(cfg.Referrals))
		r.Get("/{id}", getReferralHandler(cfg.Referrals))
		r.Post("/{id}/patient-response", patientReferralResponseHandler(cfg.Referrals))
		r.Post("/{id}/accept", acceptReferralHandler(cfg.Referrals))
		r.Post("/{id}/reject", rejectReferralHandler(cfg.Referrals))
	})

	r.Route("/branches", func(r chi.Router) {
		r.Get("/", listBranchesHandler(cfg.Clinics))
		r.Route("/{branchID}", func(r chi.Router) {
			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
			r.Get("/slots", listSlotsHandler(cfg.Slots, cfg.Clinics))
			r.Get("/treatments", listTreatmentsHandler(cfg.Clinics))
			r.Put("/daily-status", setDailyStatusHandler(cfg.Clinics))
			r.Delete("/daily-status", removeDailyStatusHandler(cfg.Clinics))
			r.Get("/daily-statuses", listDailyStatusesHandler(cfg.Clinics))
			r.Post("/blocks", createBlockHandler(cfg.Clinics))
			r.Get("/blocks", listBlocksHandler(cfg.Clinics))
			r.Delete("/blocks/{blockID}", removeBlockHandler(cfg.Clinics))
		})
	})

	r.Get("/events", listEventsHandler(cfg.Feed))

	return r
}
