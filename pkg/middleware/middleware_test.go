package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/google.firestore.admin.v1.FirestoreAdmin/GetIndex"}

func TestMetricsUsesRoutePattern(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/v1/projects/{project}/databases", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/databases", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/projects/{project}/databases", "418"))
	assert.Equal(t, 1.0, got)
}

func TestRequestIDHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestTimeoutWritesDeadlineBody(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "DEADLINE_EXCEEDED")
}

func TestTimeoutPassesFastHandler(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUnaryErrorsMapsAppErrors(t *testing.T) {
	_, err := UnaryErrors()(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		return nil, apperrors.New(apperrors.ErrNotFound, "index missing")
	})
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "index missing", st.Message())
}

func TestUnaryRecovery(t *testing.T) {
	_, err := UnaryRecovery()(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestUnaryRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadata, "rid-1"))
	var seen string
	_, err := UnaryRequestID()(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		seen = logger.RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rid-1", seen)
}

func TestUnaryMetricsRecordsCode(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	_, _ = UnaryMetrics(m)(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		return nil, apperrors.New(apperrors.ErrAlreadyExists, "dup")
	})
	got := testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues(testInfo.FullMethod, codes.AlreadyExists.String()))
	assert.Equal(t, 1.0, got)
}

func TestUnaryTimeoutKeepsShorterDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	want, _ := ctx.Deadline()

	_, err := UnaryTimeout(time.Minute)(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		got, ok := ctx.Deadline()
		if !ok || !got.Equal(want) {
			return nil, errors.New("deadline replaced")
		}
		return nil, nil
	})
	require.NoError(t, err)

	_, err = UnaryTimeout(time.Second)(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("no deadline")
		}
		return nil, nil
	})
	require.NoError(t, err)
}
