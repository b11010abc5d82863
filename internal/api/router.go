package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/session", s.handleSession)
		r.Post("/session/live", s.handleRefreshLiveData)

		r.Route("/installations", func(r chi.Router) {
			r.Get("/", s.handleListInstallations)
			r.Put("/operation-mode", s.handleSetOperationMode)
			r.Put("/energy-level", s.handleSetGlobalEnergyLevel)
			r.Get("/{unique}", s.handleGetInstallation)
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.handleListZones)

			r.Route("/{number}", func(r chi.Router) {
				r.Get("/", s.handleGetZone)
				r.Put("/temperature", s.handleSetTemperature)
				r.Put("/energy-level", s.handleSetZoneEnergyLevel)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the server and session state. It answers 200 while
// the installation model is loaded and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.session.IsReady() {
		status, code = "starting", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":        status,
		"version":       s.version,
		"authenticated": s.session.IsAuthenticated(),
		"connected":     s.session.IsConnected(),
	})
}
