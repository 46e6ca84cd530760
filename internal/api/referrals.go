package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/referral"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

func createReferralHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReferralRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		fromBranch, err := uuid.Parse(req.FromBranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from_branch_id", "from_branch_id must be a valid UUID")
			return
		}
		toBranch, err := uuid.Parse(req.ToBranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to_branch_id", "to_branch_id must be a valid UUID")
			return
		}
		treatmentID, err := parseOptUUID(req.TreatmentTypeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_treatment_type_id", "treatment_type_id must be a valid UUID")
			return
		}
		sourceApptID, err := parseOptUUID(req.SourceAppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_source_appointment_id", "source_appointment_id must be a valid UUID")
			return
		}

		ref, err := svc.Create(r.Context(), referral.NewReferral{
			PatientID:           patientID,
			FromBranchID:        fromBranch,
			ToBranchID:          toBranch,
			TreatmentTypeID:     treatmentID,
			SourceAppointmentID: sourceApptID,
			Priority:            referral.Priority(req.Priority),
			Reason:              req.Reason,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReferralResponse(ref))
	}
}

func getReferralHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}
		ref, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

// listReferralsHandler serves both sides of the workflow: ?to_branch= lists
// the destination's actionable queue (patient-approved only), ?from_branch=
// lists a branch's outgoing referrals, and ?patient= lists a patient's own.
func listReferralsHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			refs []referral.Referral
			err  error
		)
		switch {
		case q.Get("to_branch") != "":
			var toBranch uuid.UUID
			toBranch, err = uuid.Parse(q.Get("to_branch"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to_branch", "to_branch must be a valid UUID")
				return
			}
			refs, err = svc.ListActionable(r.Context(), toBranch)
		case q.Get("from_branch") != "":
			var fromBranch uuid.UUID
			fromBranch, err = uuid.Parse(q.Get("from_branch"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from_branch", "from_branch must be a valid UUID")
				return
			}
			refs, err = svc.ListOutgoing(r.Context(), fromBranch)
		case q.Get("patient") != "":
			var patientID uuid.UUID
			patientID, err = uuid.Parse(q.Get("patient"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient", "patient must be a valid UUID")
				return
			}
			refs, err = svc.ListForPatient(r.Context(), patientID)
		default:
			writeError(w, http.StatusBadRequest, "missing_branch_filter", "to_branch, from_branch or patient query param is required")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]ReferralResponse, 0, len(refs))
		for i := range refs {
			out = append(out, toReferralResponse(&refs[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func patientReferralResponseHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req PatientResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ref, err := svc.RecordPatientResponse(r.Context(), id, req.Approved, req.Notes)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

func acceptReferralHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req AcceptReferralRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
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
		staffID, err := uuid.Parse(req.StaffID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_staff_id", "staff_id must be a valid UUID")
			return
		}

		appt, err := svc.Accept(r.Context(), id, date, start, req.Notes, staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func rejectReferralHandler(svc ReferralService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req RejectReferralRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ref, err := svc.Reject(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}
