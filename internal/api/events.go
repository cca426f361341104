package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleEvents returns the full event log in append order.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t.EventDescriptions(""))
}

// handleEvent returns the event log filtered to one event name. An
// unknown name is an empty list, not an error.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t.EventDescriptions(chi.URLParam(r, "eventName")))
}
