package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestRunAggregates(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(up, true))
	c.Register("redis", PingCheck(down, false))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUp, report.Components["store"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	c.Register("kafka", PingCheck(down, true))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(up, true))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Status)

	c.Register("store", PingCheck(down, true))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWatchGRPC(t *testing.T) {
	c := NewChecker()
	c.Register("store", PingCheck(down, true))
	hs := grpchealth.NewServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.WatchGRPC(ctx, hs, time.Hour, "google.firestore.admin.v1.FirestoreAdmin")
		close(done)
	}()

	require.Eventually(t, func() bool {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "google.firestore.admin.v1.FirestoreAdmin"})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
