package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/WebThingsIO/webthing-go/internal/history"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/config"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/database"
	"github.com/WebThingsIO/webthing-go/internal/infrastructure/logging"
	"github.com/WebThingsIO/webthing-go/internal/thing"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.ServerConfig
	MDNS    config.MDNSConfig
	Logger  *logging.Logger
	Things  thing.Container
	History history.Repository // optional: enables the /history route
	DB      *database.DB       // optional: pool stats in /metrics
	Version string
}

// Server is the HTTP and WebSocket server exposing a thing container.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub,
// and mDNS registration. The server is created with New() and started
// with Start().
type Server struct {
	cfg       config.ServerConfig
	mdnsCfg   config.MDNSConfig
	logger    *logging.Logger
	things    thing.Container
	history   history.Repository
	db        *database.DB
	version   string
	server    *http.Server
	hub       *Hub
	mdns      *mdnsService
	hosts     map[string]struct{}
	startTime time.Time
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, thing container)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Things == nil {
		return nil, fmt.Errorf("thing container is required")
	}

	s := &Server{
		cfg:       deps.Config,
		mdnsCfg:   deps.MDNS,
		logger:    deps.Logger,
		things:    deps.Things,
		history:   deps.History,
		db:        deps.DB,
		version:   deps.Version,
		hosts:     allowedHosts(deps.Config),
		hub:       NewHub(deps.Logger),
		startTime: time.Now(),
	}

	// Assign each thing its href prefix. Route layout and description
	// hrefs derive from the same mount call.
	s.things.Mount(s.cfg.BasePath)

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It mounts the thing container under the base path, starts the
// WebSocket hub, registers the mDNS service, and launches the HTTP
// listener in a background goroutine. The server can be stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startTime = time.Now()
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	if s.mdnsCfg.Enabled {
		if err := s.registerMDNS(); err != nil {
			s.logger.Warn("mDNS registration failed, continuing without discovery", "error", err)
		}
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
//
// It unregisters the mDNS service, disconnects WebSocket clients,
// then waits up to 10 seconds for in-flight requests to complete.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.mdns != nil {
		s.mdns.shutdown()
		s.mdns = nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("server not started")
	}

	return nil
}

// allowedHosts builds the set of Host-header values this server
// answers for: localhost variants, the machine's mDNS name, every
// interface address, and any configured extras, each with and without
// the port.
func allowedHosts(cfg config.ServerConfig) map[string]struct{} {
	hosts := make(map[string]struct{})
	add := func(host string) {
		host = strings.ToLower(host)
		hosts[host] = struct{}{}
		hosts[fmt.Sprintf("%s:%d", host, cfg.Port)] = struct{}{}
	}

	add("localhost")

	if hn, err := os.Hostname(); err == nil && hn != "" {
		add(strings.ToLower(hn) + ".local")
	}

	for _, addr := range interfaceAddresses() {
		add(addr)
	}

	for _, extra := range cfg.AdditionalHosts {
		add(extra)
	}

	return hosts
}

// interfaceAddresses returns the machine's non-link-local IP
// addresses, IPv6 ones bracketed for use in a Host header.
func interfaceAddresses() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return []string{"127.0.0.1"}
	}

	var out []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			out = append(out, v4.String())
		} else {
			out = append(out, "["+ipNet.IP.String()+"]")
		}
	}
	if len(out) == 0 {
		out = append(out, "127.0.0.1")
	}
	return out
}
