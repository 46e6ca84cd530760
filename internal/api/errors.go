package api

import (
	"errors"
	"net/http"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	redisclient "github.com/Mintos48/dental-clinic-scheduling/internal/redis"
	"github.com/Mintos48/dental-clinic-scheduling/internal/referral"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

// writeServiceError maps core error kinds onto HTTP responses. Every typed
// error the services return lands here.
func writeServiceError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_conflict",
			Details: err.Error(),
			Conflict: &ConflictInfo{
				Kind:     string(conflict.With.Kind),
				ID:       conflict.With.ID,
				Label:    conflict.Label(),
				Interval: conflict.With.Interval.String(),
			},
		})
		return
	}

	var closed *schedule.ClosedBranchError
	if errors.As(err, &closed) {
		writeError(w, http.StatusConflict, "branch_closed", err.Error())
		return
	}

	var apptTransition *appointment.InvalidTransitionError
	var refTransition *referral.InvalidTransitionError
	if errors.As(err, &apptTransition) || errors.As(err, &refTransition) {
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		return
	}

	switch {
	case errors.Is(err, appointment.ErrValidation),
		errors.Is(err, referral.ErrValidation),
		errors.Is(err, clinic.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())

	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, referral.ErrReferralNotFound):
		writeError(w, http.StatusNotFound, "referral_not_found", err.Error())
	case errors.Is(err, clinic.ErrBranchNotFound):
		writeError(w, http.StatusNotFound, "branch_not_found", err.Error())
	case errors.Is(err, clinic.ErrTreatmentNotFound):
		writeError(w, http.StatusNotFound, "treatment_not_found", err.Error())
	case errors.Is(err, clinic.ErrStatusNotFound):
		writeError(w, http.StatusNotFound, "daily_status_not_found", err.Error())
	case errors.Is(err, clinic.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())

	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
