// Package api wires the HTTP surface: JSON routes, the Stripe webhook,
// liveness/readiness probes, metrics, and the embedded web client.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/careerforge/careerforge/internal/analytics"
	"github.com/careerforge/careerforge/internal/betagate"
	"github.com/careerforge/careerforge/internal/billing"
	"github.com/careerforge/careerforge/internal/config"
	"github.com/careerforge/careerforge/internal/entitlement"
	"github.com/careerforge/careerforge/internal/export"
	"github.com/careerforge/careerforge/internal/llm"
	"github.com/careerforge/careerforge/internal/tailor"
	"github.com/careerforge/careerforge/internal/usage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Deps holds shared dependencies injected into HTTP handlers.
type Deps struct {
	Config   *config.Config
	Store    entitlement.Store
	Limiter  usage.Limiter
	Gate     *betagate.Gate
	Tailor   *tailor.Service
	Provider llm.Provider
	Billing  *billing.Service
	Exporter *export.PDFGenerator
	Tracker  analytics.Tracker
	Version  string
}

// RegisterRoutes wires all HTTP handlers onto the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	adminAuth := func(next http.Handler) http.Handler {
		return adminKeyMiddleware(deps.Config.AdminKey, next)
	}

	// Liveness / readiness probes are unauthenticated.
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/readyz", handleReadyz(deps.Store))

	metricsHandler := promhttp.Handler()
	if deps.Config.PublicMetrics {
		mux.Handle("/metrics", metricsHandler)
	} else {
		mux.Handle("/metrics", adminAuth(metricsHandler))
	}

	// Stripe webhook (signature-authenticated).
	webhookHandler := billing.NewWebhookHandler(deps.Config.StripeWebhookSecret, deps.Store)
	webhookLimiter := newRateLimiter(120, time.Minute)
	mux.Handle("/api/stripe/webhook", webhookLimiter.middleware(webhookHandler))

	mux.HandleFunc("/api/beta/validate", deps.handleBetaValidate)
	mux.HandleFunc("/api/pro-status", deps.handleProStatus)
	mux.HandleFunc("/api/stripe/checkout", deps.handleCheckout)
	mux.HandleFunc("/api/stripe/portal", deps.handlePortal)
	mux.HandleFunc("/api/models", deps.handleModels)

	generateLimiter := newRateLimiter(30, time.Minute)
	mux.Handle("/api/generate", generateLimiter.middleware(http.HandlerFunc(deps.handleGenerate)))
	mux.Handle("/api/refine", generateLimiter.middleware(http.HandlerFunc(deps.handleRefine)))
	mux.HandleFunc("/api/export/pdf", deps.handleExportPDF)

	// Admin probe into the entitlement backend.
	mux.Handle("/api/debug/store", adminAuth(http.HandlerFunc(deps.handleDebugStore)))

	registerWebRoutes(mux)
}

// Handler returns the fully wired root handler with middleware applied.
func Handler(deps *Deps) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return recoverMiddleware(requestLogMiddleware(mux))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("api: encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readJSON decodes a bounded JSON request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// adminKeyMiddleware requires a valid admin API key via X-Admin-Key or a
// bearer token. An empty configured key locks the route entirely.
func adminKeyMiddleware(adminKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
		if key == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}

		if adminKey == "" || key == "" || key != adminKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealthz returns 200 "ok" unconditionally (liveness probe).
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz checks entitlement backend connectivity (readiness probe).
func handleReadyz(store entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusServiceUnavailable, "store not initialized")
			return
		}
		if err := store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
