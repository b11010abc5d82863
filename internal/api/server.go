package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/logging"
	"github.com/nerrad567/neasmart-core/internal/installation"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelInstallationsUpdated is the WebSocket channel carrying a full
// installation snapshot after every store change.
const ChannelInstallationsUpdated = "installations.updated"

// SessionStatus is the part of *session.Session the server reports on.
type SessionStatus interface {
	ClientID() string
	Email() string
	IsAuthenticated() bool
	IsReady() bool
	IsConnected() bool
	DisconnectCount() int
	PublishFailures() int
	SchedulerStopped() bool
	ScheduledTasks() []string
	RefreshLiveData() (uint16, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Session    SessionStatus
	Controller *controller.Controller
	Store      *installation.Store
	Gatherer   prometheus.Gatherer // optional; /metrics is not mounted without it
	Version    string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	session    SessionStatus
	controller *controller.Controller
	store      *installation.Store
	gatherer   prometheus.Gatherer
	version    string

	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a new API server. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("installation store is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		session:    deps.Session,
		controller: deps.Controller,
		store:      deps.Store,
		gatherer:   deps.Gatherer,
		version:    deps.Version,
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.hub.SetSnapshot(s.snapshot)

	return s, nil
}

// Start runs the WebSocket hub, relays store changes to it and starts the
// HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.unsubscribe = s.store.Subscribe(s.broadcastInstallations)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close stops relaying store changes and shuts the server down, waiting
// up to gracefulShutdownTimeout for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// broadcastInstallations is the store observer. It runs synchronously in
// the notifier, so it only marshals and queues.
func (s *Server) broadcastInstallations() {
	s.hub.Broadcast(ChannelInstallationsUpdated, s.store.Installations())
}

// snapshot greets a new subscriber with the installations known so far.
func (s *Server) snapshot(channel string) (any, bool) {
	if channel != ChannelInstallationsUpdated {
		return nil, false
	}
	installations := s.store.Installations()
	if installations == nil {
		return nil, false
	}
	return installations, true
}
