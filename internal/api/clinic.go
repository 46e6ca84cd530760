package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Mintos48/dental-clinic-scheduling/internal/clinic"
	"github.com/Mintos48/dental-clinic-scheduling/internal/schedule"
)

type BranchResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
}

func listBranchesHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branches, err := svc.ListBranches(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			out = append(out, BranchResponse{ID: b.ID.String(), Name: b.Name, Address: b.Address})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type TreatmentResponse struct {
	ID              string  `json:"id"`
	BranchID        string  `json:"branch_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
	Active          bool    `json:"active"`
}

func listTreatmentsHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		treatments, err := svc.ListTreatments(r.Context(), branchID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]TreatmentResponse, 0, len(treatments))
		for _, t := range treatments {
			out = append(out, TreatmentResponse{
				ID:              t.ID.String(),
				BranchID:        t.BranchID.String(),
				Name:            t.Name,
				Price:           t.Price,
				DurationMinutes: t.DurationMinutes,
				Active:          t.Active,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// listSlotsHandler lists bookable starts for a branch date. ?flow=walkin
// switches to the finer half-hour grid; ?treatment_type= sizes the slot to
// that treatment's duration instead of the default hour, and an explicit
// ?duration= (minutes) overrides both.
func listSlotsHandler(slots SlotLister, clinics ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		q := r.URL.Query()
		date, err := parseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query param must be YYYY-MM-DD")
			return
		}

		step := schedule.StepStaff
		if q.Get("flow") == "walkin" {
			step = schedule.StepWalkIn
		}

		duration := schedule.DefaultDurationMinutes
		if raw := q.Get("treatment_type"); raw != "" {
			s := raw
			treatmentID, err := parseOptUUID(&s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_treatment_type", "treatment_type must be a valid UUID")
				return
			}
			t, err := clinics.GetTreatment(r.Context(), *treatmentID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if t.DurationMinutes > 0 {
				duration = t.DurationMinutes
			}
		}
		if raw := q.Get("duration"); raw != "" {
			minutes, err := strconv.Atoi(raw)
			if err != nil || minutes <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
				return
			}
			duration = minutes
		}

		day, err := slots.AvailableSlots(r.Context(), branchID, date, duration, step)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{
			BranchID: branchID,
			Date:     date.Format("2006-01-02"),
			Status:   day.Status,
			Reason:   day.Reason,
			Slots:    day.Slots,
		})
	}
}

func setDailyStatusHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		var req SetDailyStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		st, err := svc.SetDailyStatus(r.Context(), branchID, date, clinic.DayStatus(req.Status), req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDailyStatusResponse(st))
	}
}

func removeDailyStatusHandler(svc ClinicService) http.HandlerFunc {
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
		if err := svc.RemoveDailyStatus(r.Context(), branchID, date); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listDailyStatusesHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		from := time.Now().UTC()
		if raw := r.URL.Query().Get("from"); raw != "" {
			var err error
			from, err = parseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from query param must be YYYY-MM-DD")
				return
			}
		}

		statuses, err := svc.ListUpcomingStatuses(r.Context(), branchID, from)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]DailyStatusResponse, 0, len(statuses))
		for i := range statuses {
			out = append(out, toDailyStatusResponse(&statuses[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createBlockHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		var req CreateBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		start, err := schedule.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
			return
		}
		end, err := schedule.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
			return
		}

		block, err := svc.AddBlock(r.Context(), clinic.BlockedSlot{
			BranchID: branchID,
			Date:     date,
			Start:    start,
			Minutes:  int(end - start),
			Reason:   req.Reason,
			Kind:     clinic.BlockKind(req.Kind),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(block))
	}
}

func removeBlockHandler(svc ClinicService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		branchID, ok := uuidParam(r, "branchID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branchID must be a valid UUID")
			return
		}
		blockID, ok := uuidParam(r, "blockID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_block_id", "blockID must be a valid UUID")
			return
		}
		if err := svc.RemoveBlock(r.Context(), branchID, blockID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlocksHandler(svc ClinicService) http.HandlerFunc {
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

		blocks, err := svc.ListBlocks(r.Context(), branchID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := make([]BlockResponse, 0, len(blocks))
		for i := range blocks {
			out = append(out, toBlockResponse(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}
