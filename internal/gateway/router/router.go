// Package router wires up the emulator gateway routes and applies the
// middleware chain (RequestID → Logging → Metrics → CORS → Auth → RateLimit →
// Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/middleware"
)

// Options selects the optional parts of the middleware chain. A nil
// Validator disables authentication and a nil Limiter disables rate
// limiting.
type Options struct {
	Validator      *apikey.Validator
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	Health         *health.Checker
	CORS           gwmw.CORSConfig
	RequestTimeout time.Duration
}

// unauthenticated lists path prefixes served without an API key.
var unauthenticated = []string{"/healthz", "/readyz"}

// New builds the gateway HTTP handler.
//
// Route table:
//
//	*      /v1/*                                                   → admin API (REST binding)
//	POST   /emulator/v1/projects/{p}/databases/{d}/documents/{c}   → seed documents
//	GET    /emulator/v1/projects/{p}/databases/{d}/documents       → document counts
//	DELETE /emulator/v1/projects/{p}/databases/{d}/documents       → clear documents
//	GET    /emulator/v1/stats                                      → operation statistics
//	GET    /emulator/v1/stats/history                              → persisted snapshots
//	POST   /emulator/v1/keys                                       → create API key
//	GET    /emulator/v1/keys                                       → list API keys
//	POST   /emulator/v1/keys/revoke                                → revoke API key
//	GET    /healthz, /readyz                                       → health
func New(h *gwhandler.Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID, pkgmw.Logging)
	if opts.Metrics != nil {
		r.Use(pkgmw.Metrics(opts.Metrics))
	}
	r.Use(gwmw.CORS(opts.CORS))
	if opts.Validator != nil {
		r.Use(gwmw.Auth(opts.Validator, unauthenticated...))
	}
	if opts.Limiter != nil {
		r.Use(gwmw.RateLimit(opts.Limiter, opts.Metrics, unauthenticated...))
	}
	if opts.RequestTimeout > 0 {
		r.Use(pkgmw.Timeout(opts.RequestTimeout))
	}

	if opts.Health != nil {
		r.Get("/healthz", opts.Health.LiveHandler())
		r.Get("/readyz", opts.Health.ReadyHandler())
	}

	r.Handle("/v1/*", http.HandlerFunc(h.Dispatch))

	r.Route("/emulator/v1", func(r chi.Router) {
		r.Route("/projects/{project}/databases/{database}/documents", func(r chi.Router) {
			r.Get("/", h.DocumentCounts)
			r.Delete("/", h.ClearDocuments)
			r.Post("/{collection}", h.SeedDocuments)
		})
		r.Get("/stats", h.Stats)
		r.Get("/stats/history", h.StatsHistory)
		r.Post("/keys", h.CreateAPIKey)
		r.Get("/keys", h.ListAPIKeys)
		r.Post("/keys/revoke", h.RevokeAPIKey)
	})

	return r
}
