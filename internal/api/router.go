package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-hue/internal/bridges/hue"
)

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", s.handleListDevices)
		r.Put("/devices/{deviceID}/state", s.handleSetDeviceState)
		r.Post("/refresh", s.handleRefresh)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth reports adapter health. Degraded answers 503 so probes fail.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, reason := s.adapter.Health()

	code := http.StatusOK
	if status == hue.HealthDegraded {
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":  status,
		"version": s.version,
	}
	if reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, code, body)
}
