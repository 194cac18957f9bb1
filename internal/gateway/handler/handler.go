// Package handler implements the HTTP endpoints of the emulator gateway: the
// REST binding of the admin API, the emulator-only document and API-key
// routes, and the operation statistics.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/service"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

// Documents is the emulator-only document surface of the service.
type Documents interface {
	SeedDocuments(ctx context.Context, database, collection string, docs map[string]json.RawMessage) (int, error)
	ClearDocuments(ctx context.Context, database string) (int64, error)
	DocumentCounts(ctx context.Context, database string) (map[string]int, error)
}

// Handler implements the gateway's HTTP endpoints.
type Handler struct {
	routes []route
	docs   Documents
	stats  *analytics.Handler
	keys   *apikey.Validator
	logger *slog.Logger
}

type Option func(*Handler)

// WithStats serves operation statistics from h.
func WithStats(h *analytics.Handler) Option {
	return func(g *Handler) { g.stats = h }
}

// WithKeys enables the API-key management routes.
func WithKeys(v *apikey.Validator) Option {
	return func(g *Handler) { g.keys = v }
}

// New creates a Handler dispatching REST calls to endpoints.
func New(endpoints []service.Endpoint, docs Documents, opts ...Option) (*Handler, error) {
	routes, err := newRoutes(endpoints)
	if err != nil {
		return nil, err
	}
	h := &Handler{
		routes: routes,
		docs:   docs,
		logger: slog.Default().With("component", "gateway-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ---------- Emulator documents ----------

type seedRequest struct {
	Documents map[string]json.RawMessage `json:"documents"`
}

func databaseParam(r *http.Request) string {
	return resource.DatabaseName{
		Project:  chi.URLParam(r, "project"),
		Database: chi.URLParam(r, "database"),
	}.String()
}

// SeedDocuments stores the documents of the body in one collection group.
func (h *Handler) SeedDocuments(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		admin.WriteError(w, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid JSON body: %v", err))
		return
	}
	if len(req.Documents) == 0 {
		admin.WriteError(w, apperrors.New(apperrors.ErrInvalidArgument, "documents must not be empty"))
		return
	}
	n, err := h.docs.SeedDocuments(r.Context(), databaseParam(r), chi.URLParam(r, "collection"), req.Documents)
	if err != nil {
		admin.WriteError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"seeded": n})
}

// ClearDocuments deletes every document of a database.
func (h *Handler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := h.docs.ClearDocuments(r.Context(), databaseParam(r))
	if err != nil {
		admin.WriteError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// DocumentCounts reports the number of documents per collection group.
func (h *Handler) DocumentCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.docs.DocumentCounts(r.Context(), databaseParam(r))
	if err != nil {
		admin.WriteError(w, err)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"collections": counts})
}

// ---------- Statistics ----------

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		admin.WriteError(w, apperrors.New(apperrors.ErrUnimplemented, "operation statistics are disabled"))
		return
	}
	h.stats.Stats(w, r)
}

func (h *Handler) StatsHistory(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		admin.WriteError(w, apperrors.New(apperrors.ErrUnimplemented, "operation statistics are disabled"))
		return
	}
	h.stats.History(w, r)
}

// ---------- API keys ----------

type createKeyRequest struct {
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type revokeKeyRequest struct {
	Key string `json:"key"`
}

// CreateAPIKey creates a stored key and returns it once.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.keysStored(w) {
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		admin.WriteError(w, apperrors.Newf(apperrors.ErrInvalidArgument, "invalid JSON body: %v", err))
		return
	}
	raw, err := h.keys.CreateKey(r.Context(), req.Name, req.RateLimit, req.ExpiresAt)
	if err != nil {
		h.keyError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"key":     raw,
		"name":    req.Name,
		"message": "store this key securely; it will not be shown again",
	})
}

func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !h.keysStored(w) {
		return
	}
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.keyError(w, err)
		return
	}
	if keys == nil {
		keys = []apikey.KeyInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if !h.keysStored(w) {
		return
	}
	var req revokeKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.Key == "" {
		admin.WriteError(w, apperrors.New(apperrors.ErrInvalidArgument, "a JSON body with the key is required"))
		return
	}
	if err := h.keys.RevokeKey(r.Context(), req.Key); err != nil {
		h.keyError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) keysStored(w http.ResponseWriter) bool {
	if h.keys == nil || !h.keys.Stored() {
		admin.WriteError(w, apperrors.New(apperrors.ErrFailedPrecondition, "API keys are not stored in a database"))
		return false
	}
	return true
}

func (h *Handler) keyError(w http.ResponseWriter, err error) {
	if errors.Is(err, apikey.ErrInvalidKey) {
		admin.WriteError(w, apperrors.New(apperrors.ErrNotFound, "API key not found"))
		return
	}
	switch apperrors.Code(err) {
	case codes.Internal, codes.Unknown:
		h.logger.Error("api key request failed", "error", err)
	}
	admin.WriteError(w, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
