// Package middleware provides HTTP middleware for the emulator gateway:
// API-key authentication, CORS and per-key rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
)

type contextKey string

const apiKeyInfoKey contextKey = "api_key_info"

// Auth returns middleware that validates the caller's API key. Keys are read
// from "Authorization: Bearer <key>", the x-goog-api-key header or the key
// query parameter. Paths under exempt prefixes skip authentication.
func Auth(validator *apikey.Validator, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exempt) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			info, err := authenticate(r.Context(), validator, key)
			if err != nil {
				admin.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithKeyInfo(r.Context(), info)))
		})
	}
}

// authenticate validates key and maps failures to UNAUTHENTICATED or
// INTERNAL.
func authenticate(ctx context.Context, validator *apikey.Validator, key string) (*apikey.KeyInfo, error) {
	if key == "" {
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "missing API key")
	}
	info, err := validator.Validate(ctx, key)
	switch {
	case errors.Is(err, apikey.ErrInvalidKey):
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "API key not valid")
	case errors.Is(err, apikey.ErrExpiredKey):
		return nil, apperrors.New(apperrors.ErrUnauthenticated, "API key expired")
	case err != nil:
		logger.FromContext(ctx).Error("api key validation failed", "error", err)
		return nil, apperrors.New(apperrors.ErrInternal, "authentication error")
	}
	return info, nil
}

// WithKeyInfo returns a copy of ctx carrying info.
func WithKeyInfo(ctx context.Context, info *apikey.KeyInfo) context.Context {
	return context.WithValue(ctx, apiKeyInfoKey, info)
}

// GetKeyInfo retrieves the validated KeyInfo from the request context.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(apiKeyInfoKey).(*apikey.KeyInfo)
	return info
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if key := r.Header.Get(admin.APIKeyHeader); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}

func isExempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
