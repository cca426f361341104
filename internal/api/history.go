package api

import (
	"net/http"
	"strconv"

	"github.com/WebThingsIO/webthing-go/internal/history"
)

// ThingHistory is the response shape of the history route: the three
// recorded streams for one thing, each newest first.
type ThingHistory struct {
	Properties []history.PropertyRecord `json:"properties"`
	Actions    []history.ActionRecord   `json:"actions"`
	Events     []history.EventRecord    `json:"events"`
}

// handleHistory returns recent recorded history for a thing. The
// optional limit query parameter caps each stream; the store clamps
// it to its own bounds.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx := r.Context()

	properties, err := s.history.PropertyHistory(ctx, t.ID(), limit)
	if err != nil {
		s.logger.Error("property history query failed", "thing", t.ID(), "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	actions, err := s.history.ActionHistory(ctx, t.ID(), limit)
	if err != nil {
		s.logger.Error("action history query failed", "thing", t.ID(), "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	events, err := s.history.EventHistory(ctx, t.ID(), limit)
	if err != nil {
		s.logger.Error("event history query failed", "thing", t.ID(), "error", err)
		writeInternalError(w, "failed to query history")
		return
	}

	// Handle empty slices for clean JSON
	if properties == nil {
		properties = []history.PropertyRecord{}
	}
	if actions == nil {
		actions = []history.ActionRecord{}
	}
	if events == nil {
		events = []history.EventRecord{}
	}

	writeJSON(w, http.StatusOK, ThingHistory{
		Properties: properties,
		Actions:    actions,
		Events:     events,
	})
}
