package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
)

type envelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if info := GetKeyInfo(r.Context()); info != nil {
		w.Header().Set("X-Key-ID", info.ID)
	}
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth(apikey.NewValidator(nil, []string{"secret"}), "/healthz")(ok)
	keyID := "static-" + apikey.HashKey("secret")[:8]

	tests := []struct {
		name   string
		build  func(*http.Request)
		path   string
		status int
		keyID  string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret") }, "/v1/projects/p", http.StatusOK, keyID},
		{"api key header", func(r *http.Request) { r.Header.Set(admin.APIKeyHeader, "secret") }, "/v1/projects/p", http.StatusOK, keyID},
		{"query", func(r *http.Request) {}, "/v1/projects/p?key=secret", http.StatusOK, keyID},
		{"missing", func(r *http.Request) {}, "/v1/projects/p", http.StatusUnauthorized, ""},
		{"wrong", func(r *http.Request) { r.Header.Set(admin.APIKeyHeader, "nope") }, "/v1/projects/p", http.StatusUnauthorized, ""},
		{"exempt", func(r *http.Request) {}, "/healthz", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.build(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.keyID, rec.Header().Get("X-Key-ID"))
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHENTICATED", decodeEnvelope(t, rec).Error.Status)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 2)
	t.Cleanup(limiter.Close)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := Auth(apikey.NewValidator(nil, []string{"a", "b"}))(RateLimit(limiter, m)(ok))

	call := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
		req.Header.Set(admin.APIKeyHeader, key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("a").Code)
	assert.Equal(t, http.StatusOK, call("a").Code)
	limited := call("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "RESOURCE_EXHAUSTED", decodeEnvelope(t, limited).Error.Status)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("b").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))
}

func TestRateLimitByAddress(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Close)
	h := RateLimit(limiter, nil)(ok)

	req := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "10.0.0.1:5678"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSConfig())(ok)

	pre := httptest.NewRequest(http.MethodOptions, "/v1/x", nil)
	pre.Header.Set("Origin", "http://localhost:3000")
	pre.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), admin.APIKeyHeader)

	plain := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, plain)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	strict := CORS(CORSConfig{AllowOrigins: []string{"https://console.example"}})(ok)
	other := httptest.NewRequest(http.MethodGet, "/v1/x", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	strict.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnaryAuth(t *testing.T) {
	intercept := UnaryAuth(apikey.NewValidator(nil, []string{"secret"}), "/grpc.health.v1.Health/")
	handler := func(ctx context.Context, req any) (any, error) {
		if info := GetKeyInfo(ctx); info != nil {
			return info.ID, nil
		}
		return "", nil
	}
	call := func(method string, md metadata.MD) (any, error) {
		ctx := metadata.NewIncomingContext(context.Background(), md)
		return intercept(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}
	const getIndex = "/google.firestore.admin.v1.FirestoreAdmin/GetIndex"

	resp, err := call(getIndex, metadata.Pairs("authorization", "Bearer secret"))
	require.NoError(t, err)
	assert.Equal(t, "static-"+apikey.HashKey("secret")[:8], resp)

	_, err = call(getIndex, metadata.Pairs(admin.APIKeyHeader, "secret"))
	require.NoError(t, err)

	_, err = call(getIndex, metadata.MD{})
	assert.Equal(t, codes.Unauthenticated, apperrors.Code(err))

	_, err = call(getIndex, metadata.Pairs(admin.APIKeyHeader, "nope"))
	assert.Equal(t, codes.Unauthenticated, apperrors.Code(err))

	_, err = call("/grpc.health.v1.Health/Check", metadata.MD{})
	assert.NoError(t, err)
}

func TestUnaryRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 1)
	t.Cleanup(limiter.Close)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	intercept := UnaryRateLimit(limiter, m)
	info := &grpc.UnaryServerInfo{FullMethod: "/google.longrunning.Operations/GetOperation"}
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5000}})

	_, err := intercept(ctx, nil, info, handler)
	require.NoError(t, err)
	_, err = intercept(ctx, nil, info, handler)
	assert.Equal(t, codes.ResourceExhausted, apperrors.Code(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))

	other := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5000}})
	_, err = intercept(other, nil, info, handler)
	assert.NoError(t, err)
}
