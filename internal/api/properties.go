package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleProperties returns the current value of every property.
func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t.Properties())
}

// handleGetProperty returns one property value as {name: value}.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	name := chi.URLParam(r, "propertyName")
	value, err := t.GetProperty(name)
	if err != nil {
		writeNotFound(w, "property not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{name: value})
}

// handleSetProperty applies a property write. The body must be
// {name: value} keyed by the property in the route; the response
// echoes the value the write settled on.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	name := chi.URLParam(r, "propertyName")

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	value, ok := body[name]
	if !ok {
		writeBadRequest(w, "body must contain the property name")
		return
	}

	if !t.HasProperty(name) {
		writeNotFound(w, "property not found")
		return
	}

	if err := t.SetProperty(name, value); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	current, err := t.GetProperty(name)
	if err != nil {
		writeInternalError(w, "failed to read property back")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{name: current})
}
