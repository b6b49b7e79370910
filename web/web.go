// Package web exposes the engine over HTTP: conversion endpoints,
// history, usage reporting, billing webhooks and a small admin surface.
// The API is JSON-only and stateless; identity travels with every
// request as a bearer token or session key.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/texlify/texlify/adapters/metrics"
	"github.com/texlify/texlify/app"
	"github.com/texlify/texlify/ports"
)

// Deps holds everything the HTTP layer needs. All fields are required
// unless noted.
type Deps struct {
	Conversions *app.ConversionService
	History     *app.HistoryService
	Admission   *app.AdmissionController
	Billing     *app.BillingService
	Identity    ports.IdentityProvider
	Metrics     *metrics.Collector
	Logger      zerolog.Logger

	// AdminTokenHash guards the admin endpoints; the raw token is
	// hashed at startup and compared with Hasher. Nil disables them.
	AdminTokenHash []byte
	Hasher         ports.Hasher

	// Registry serves /metrics. Nil falls back to the default registry.
	Registry *prometheus.Registry
}

// Handler serves the public API.
type Handler struct {
	conversions    *app.ConversionService
	history        *app.HistoryService
	admission      *app.AdmissionController
	billing        *app.BillingService
	identity       ports.IdentityProvider
	metrics        *metrics.Collector
	logger         zerolog.Logger
	adminTokenHash []byte
	hasher         ports.Hasher
	registry       *prometheus.Registry
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		conversions:    deps.Conversions,
		history:        deps.History,
		admission:      deps.Admission,
		billing:        deps.Billing,
		identity:       deps.Identity,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		adminTokenHash: deps.AdminTokenHash,
		hasher:         deps.Hasher,
		registry:       deps.Registry,
	}
}

// Router builds the chi router with all routes mounted.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metricsHandler())

	// Webhooks authenticate by signature, not by identity; keep them
	// outside the identity middleware.
	r.Post("/webhooks/stripe", h.StripeWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.instrument)
		r.Use(h.withIdentity)

		r.Post("/convert", h.Convert)
		r.Post("/tools/{tool}", h.ConvertTool)
		r.Get("/usage", h.Usage)

		r.Get("/history", h.History)
		r.Post("/conversions", h.SaveConversion)
		r.Get("/files", h.FileHistory)
		r.Get("/favorites", h.Favorites)
		r.Post("/conversions/{id}/favorite", h.ToggleFavorite)
	})

	if len(h.adminTokenHash) > 0 {
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/ratelimits/reset", h.ResetRateLimit)
			r.Post("/usage/clear", h.ClearUsage)
		})
	}

	return r
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Router().ServeHTTP(w, r)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) metricsHandler() http.Handler {
	if h.registry != nil {
		return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}
