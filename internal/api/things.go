package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// describeThing builds the Thing Description for a request, extending
// the thing's own description with the request-dependent pieces: the
// WebSocket alternate link, the base URI, and the (open) security
// scheme.
func (s *Server) describeThing(t *thing.Thing, r *http.Request) map[string]any {
	desc := t.Describe()

	scheme, wsScheme := "http", "ws"
	if r.TLS != nil {
		scheme, wsScheme = "https", "wss"
	}

	links, _ := desc["links"].([]map[string]any)
	desc["links"] = append(links, map[string]any{
		"rel":  "alternate",
		"href": fmt.Sprintf("%s://%s%s", wsScheme, r.Host, t.Href()),
	})
	desc["base"] = fmt.Sprintf("%s://%s%s", scheme, r.Host, t.Href())
	desc["securityDefinitions"] = map[string]any{
		"nosec_sc": map[string]any{
			"scheme": "nosec",
		},
	}
	desc["security"] = "nosec_sc"

	return desc
}

// handleListThings returns the description of every thing the server
// manages. Served at the base path in multi-thing mode.
func (s *Server) handleListThings(w http.ResponseWriter, r *http.Request) {
	things := s.things.Things()
	descriptions := make([]map[string]any, 0, len(things))
	for _, t := range things {
		desc := s.describeThing(t, r)
		desc["href"] = t.Href()
		descriptions = append(descriptions, desc)
	}

	writeJSON(w, http.StatusOK, descriptions)
}

// handleThing returns a thing's description, or upgrades to the
// WebSocket channel when the client asks for it.
func (s *Server) handleThing(w http.ResponseWriter, r *http.Request) {
	t := s.getThing(r)
	if t == nil {
		writeNotFound(w, "thing not found")
		return
	}

	if websocket.IsWebSocketUpgrade(r) {
		s.serveThingSocket(w, r, t)
		return
	}

	writeJSON(w, http.StatusOK, s.describeThing(t, r))
}
