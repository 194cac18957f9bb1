package middleware

import (
	"net"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
)

// RateLimit enforces per-key rate limits using the KeyInfo set by Auth.
// Requests without key info are limited per client address. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exempt) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key, perSecond := "addr:"+clientAddr(r), 0.0
			if info := GetKeyInfo(r.Context()); info != nil {
				key, perSecond = "key:"+info.ID, float64(info.RateLimit)
			}

			if !limiter.Allow(key, perSecond) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				w.Header().Set("Retry-After", "1")
				admin.WriteError(w, apperrors.New(apperrors.ErrResourceExhausted, "quota exceeded: too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
