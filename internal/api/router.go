package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// A MultipleThings container gets a description list at the base path
// and per-thing routes under {base}/{thingID}; a SingleThing container
// mounts its thing routes at the base path directly.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.stripSlashMiddleware)
	if !s.cfg.DisableHostValidation {
		r.Use(s.hostValidationMiddleware)
	}

	// System metrics (outside the thing tree, never shadowed by it:
	// static routes win over the {thingID} wildcard)
	r.Get("/metrics", s.handleMetrics)

	mount := func(r chi.Router) {
		if _, multiple := s.things.(*thing.MultipleThings); multiple {
			r.Get("/", s.handleListThings)
			r.Route("/{thingID}", s.thingRoutes)
			return
		}
		s.thingRoutes(r)
	}

	if base := s.cfg.BasePath; base != "" {
		r.Route(base, mount)
	} else {
		mount(r)
	}

	return r
}

// thingRoutes registers the per-thing protocol routes. The bare thing
// route doubles as the WebSocket endpoint when the client asks for an
// upgrade.
func (s *Server) thingRoutes(r chi.Router) {
	r.Get("/", s.handleThing)

	r.Get("/properties", s.handleProperties)
	r.Get("/properties/{propertyName}", s.handleGetProperty)
	r.Put("/properties/{propertyName}", s.handleSetProperty)

	r.Get("/actions", s.handleActions)
	r.Post("/actions", s.handleRequestAction)
	r.Get("/actions/{actionName}", s.handleActionKind)
	r.Post("/actions/{actionName}", s.handleRequestActionKind)
	r.Get("/actions/{actionName}/{actionID}", s.handleGetAction)
	r.Put("/actions/{actionName}/{actionID}", s.handleUpdateAction)
	r.Delete("/actions/{actionName}/{actionID}", s.handleRemoveAction)

	r.Get("/events", s.handleEvents)
	r.Get("/events/{eventName}", s.handleEvent)

	// Convenience route, outside the Thing Description protocol
	if s.history != nil {
		r.Get("/history", s.handleHistory)
	}
}

// getThing resolves the thing a request addresses, or nil. In
// single-thing mode the route has no thingID parameter and the empty
// identifier resolves to the one thing.
func (s *Server) getThing(r *http.Request) *thing.Thing {
	t, err := s.things.Get(chi.URLParam(r, "thingID"))
	if err != nil {
		return nil
	}
	return t
}
