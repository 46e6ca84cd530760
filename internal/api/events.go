package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Mintos48/dental-clinic-scheduling/internal/events"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// listEventsHandler serves the polling change feed. ?since= is an RFC 3339
// timestamp; clients pass the created_at of the last event they saw.
func listEventsHandler(feed events.Feed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		since := time.Time{}
		if raw := q.Get("since"); raw != "" {
			var err error
			since, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_since", "since must be an RFC 3339 timestamp")
				return
			}
		}

		branchID, err := parseOptUUID(ptrIfSet(q.Get("branch")))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch", "branch must be a valid UUID")
			return
		}

		limit := defaultEventLimit
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			if limit > maxEventLimit {
				limit = maxEventLimit
			}
		}

		evs, err := feed.ChangesSince(r.Context(), since, branchID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if evs == nil {
			evs = []events.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}

func ptrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
