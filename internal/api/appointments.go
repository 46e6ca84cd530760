package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/appointment"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}
		treatmentID, err := parseOptUUID(req.TreatmentTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_treatment_type_id", "treatment_type_id must be a valid UUID")
			return
		}

		patient, ok := patientFromRequest(w, req.PatientID, req.WalkIn)
		if !ok {
			return
		}

		appt, err := svc.Create(r.Context(), appointment.NewAppointment{
			BranchID:        branchID,
			Patient:         patient,
			Date:            date,
			Start:           start,
			TreatmentTypeID: treatmentID,
			Notes:           req.Notes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		date, err := parseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query param must be YYYY-MM-DD")
			return
		}

		appts, err := svc.ListByBranchDate(r.Context(), branchID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func updateAppointmentStatusHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateAppointmentStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, appointment.Status(req.Status), req.Reason, staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func editAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req EditAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := parseOptDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := parseOptTime(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}
		treatmentID, err := parseOptUUID(req.TreatmentTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_treatment_type_id", "treatment_type_id must be a valid UUID")
			return
		}

		appt, err := svc.Edit(r.Context(), id, appointment.Patch{
			WalkInName:      req.PatientName,
			Date:            date,
			Start:           start,
			TreatmentTypeID: treatmentID,
			Notes:           req.Notes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// patientFromRequest builds the tagged patient variant from the request,
// writing a 400 itself when the payload is malformed.
func patientFromRequest(w http.ResponseWriter, patientID *string, walkIn *WalkInPayload) (appointment.PatientRef, bool) {
	if patientID != nil && *patientID != "" {
		id, err := uuid.Parse(*patientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return appointment.PatientRef{}, false
		}
		return appointment.Registered(id), true
	}
	if walkIn == nil {
		// Leave the missing-patient case to the service's validation.
		return appointment.PatientRef{}, true
	}

	snapshot := appointment.WalkIn{
		Name:    walkIn.Name,
		Phone:   walkIn.Phone,
		Email:   walkIn.Email,
		Address: walkIn.Address,
	}
	if walkIn.Birthdate != nil && *walkIn.Birthdate != "" {
		bd, err := time.Parse("2006-01-02", *walkIn.Birthdate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_birthdate", "birthdate must be YYYY-MM-DD")
			return appointment.PatientRef{}, false
		}
		snapshot.Birthdate = &bd
	}
	return appointment.WalkInPatient(snapshot), true
}
