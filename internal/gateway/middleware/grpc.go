package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
)

// UnaryAuth validates the API key sent as "authorization: Bearer <key>" or
// x-goog-api-key metadata. Methods under exempt prefixes, such as
// "/grpc.health.v1.Health/", skip authentication.
func UnaryAuth(validator *apikey.Validator, exempt ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isExempt(info.FullMethod, exempt) {
			return handler(ctx, req)
		}
		keyInfo, err := authenticate(ctx, validator, incomingAPIKey(ctx))
		if err != nil {
			return nil, err
		}
		return handler(WithKeyInfo(ctx, keyInfo), req)
	}
}

// UnaryRateLimit is the gRPC counterpart of RateLimit. m may be nil.
func UnaryRateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics, exempt ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if isExempt(info.FullMethod, exempt) {
			return handler(ctx, req)
		}
		key, perSecond := "addr:"+peerAddr(ctx), 0.0
		if keyInfo := GetKeyInfo(ctx); keyInfo != nil {
			key, perSecond = "key:"+keyInfo.ID, float64(keyInfo.RateLimit)
		}
		if !limiter.Allow(key, perSecond) {
			if m != nil {
				m.RateLimitedTotal.Inc()
			}
			return nil, apperrors.New(apperrors.ErrResourceExhausted, "quota exceeded: too many requests")
		}
		return handler(ctx, req)
	}
}

func incomingAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if strings.HasPrefix(v, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
		}
	}
	if v := md.Get(admin.APIKeyHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if i := strings.LastIndexByte(addr, ':'); i > 0 {
		return addr[:i]
	}
	return addr
}
