package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// parseActionRequest decodes a protocol action request: a body with
// exactly one key naming the action, whose value optionally carries an
// "input" object.
func parseActionRequest(r *http.Request) (name string, input map[string]any, err error) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", nil, errors.New("invalid JSON body")
	}

	if len(body) != 1 {
		return "", nil, errors.New("body must contain exactly one action name")
	}

	for n, params := range body {
		name = n
		if p, ok := params.(map[string]any); ok {
			input, _ = p["input"].(map[string]any)
		}
	}
	return name, input, nil
}

// startAction creates the action record, answers 201 with its
// description, and starts the work asynchronously. The description is
// captured before Start so the response always shows the created
// state.
func (s *Server) startAction(w http.ResponseWriter, t *thing.Thing, name string, input map[string]any) {
	a, err := t.RequestAction(name, input)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	desc := a.Describe()
	go a.Start()

	writeJSON(w, http.StatusCreated, desc)
}

// handleActions returns every live action record's description.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t.ActionDescriptions(""))
}

// handleRequestAction creates and starts an action named by the body.
func (s *Server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	name, input, err := parseActionRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.startAction(w, t, name, input)
}

// handleActionKind returns the live records of one action kind. An
// unknown kind is an empty list, not an error.
func (s *Server) handleActionKind(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	writeJSON(w, http.StatusOK, t.ActionDescriptions(chi.URLParam(r, "actionName")))
}

// handleRequestActionKind creates and starts an action on the named
// route; the body key must match the route.
func (s *Server) handleRequestActionKind(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	name, input, err := parseActionRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if name != chi.URLParam(r, "actionName") {
		writeBadRequest(w, "action name does not match route")
		return
	}

	s.startAction(w, t, name, input)
}

// handleGetAction returns one action record's description.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	a, err := t.GetAction(chi.URLParam(r, "actionName"), chi.URLParam(r, "actionID"))
	if err != nil {
		writeNotFound(w, "action not found")
		return
	}

	writeJSON(w, http.StatusOK, a.Describe())
}

// handleUpdateAction accepts a PUT on an action record. The protocol
// has not defined what updating a request means yet, so this is a
// compatibility no-op.
func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleRemoveAction cancels and removes one action record.
func (s *Server) handleRemoveAction(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	if !t.RemoveAction(chi.URLParam(r, "actionName"), chi.URLParam(r, "actionID")) {
		writeNotFound(w, "action not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
