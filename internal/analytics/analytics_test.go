package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
)

func finished(db, state string, ms int64) OperationEvent {
	return OperationEvent{Type: EventOperationFinished, Database: db, Kind: "CreateIndex", State: state, DurationMs: ms, CompletedWork: 10}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for _, db := range []string{"a", "a", "b"} {
		agg.Track(OperationEvent{Type: EventOperationStarted, Database: db, Kind: "ExportDocuments"})
	}
	agg.Track(finished("a", "SUCCESSFUL", 100))
	agg.Track(finished("a", "SUCCESSFUL", 300))
	e := finished("b", "FAILED", 200)
	e.ErrorCode = "NOT_FOUND"
	agg.Track(e)

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.OperationsStarted)
	assert.Equal(t, int64(3), stats.OperationsFinished)
	assert.Equal(t, int64(0), stats.Running)
	assert.Equal(t, int64(2), stats.ByState["SUCCESSFUL"])
	assert.Equal(t, int64(1), stats.ByErrorCode["NOT_FOUND"])
	assert.Equal(t, int64(3), stats.ByKind["ExportDocuments"])
	assert.Equal(t, int64(30), stats.DocumentsProcessed)
	assert.InDelta(t, 200.0, stats.AvgDurationMs, 0.001)
	assert.Equal(t, int64(200), stats.P50DurationMs)
	assert.Equal(t, int64(300), stats.P99DurationMs)
	require.Len(t, stats.TopDatabases, 2)
	assert.Equal(t, DatabaseCount{Database: "a", Count: 2}, stats.TopDatabases[0])
}

func TestHandleEventSkipsGarbage(t *testing.T) {
	agg := NewAggregator()
	h := HandleEvent(agg)

	require.NoError(t, h(context.Background(), kafka.Message{Value: []byte("not json")}))
	value, err := json.Marshal(OperationEvent{Type: EventOperationStarted, Database: "d", Kind: "BulkDeleteDocuments"})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), kafka.Message{Value: value}))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.OperationsStarted)
	assert.Equal(t, int64(1), stats.Running)
}

type fakeHistory struct {
	snapshots []AggregatedStats
	err       error
	limit     int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Track(OperationEvent{Type: EventOperationStarted, Database: "d"})
	history := &fakeHistory{snapshots: []AggregatedStats{{OperationsStarted: 7}}}
	h := NewHandler(agg, history)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/emulator/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.OperationsStarted)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/emulator/v1/stats/history?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, history.limit)
	assert.Contains(t, rec.Body.String(), `"operations_started":7`)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/emulator/v1/stats/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	history.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/emulator/v1/stats/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/emulator/v1/stats/history", nil))
	assert.JSONEq(t, `[]`, rec.Body.String())
}
