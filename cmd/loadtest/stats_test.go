package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
)

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Equal(t, 1*time.Millisecond, percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestStatsReport(t *testing.T) {
	s := NewStats()
	s.RecordRequest("GetDatabase", 2*time.Millisecond, nil)
	s.RecordRequest("GetDatabase", 4*time.Millisecond, nil)
	s.RecordRequest("ListIndexes", 6*time.Millisecond, nil)
	s.RecordRequest("GetField", time.Millisecond, apperrors.New(apperrors.ErrNotFound, "missing"))

	assert.EqualValues(t, 4, s.totalRequests.Load())
	assert.EqualValues(t, 3, s.successCount.Load())
	assert.EqualValues(t, 1, s.errorCount.Load())
	assert.Equal(t, []string{"GetDatabase", "ListIndexes"}, s.Methods())

	var buf bytes.Buffer
	printReport(&buf, s, time.Second)
	out := buf.String()
	assert.Contains(t, out, "Total Requests:  4")
	assert.Contains(t, out, "Error Rate:      25.00%")
	assert.Contains(t, out, "Min:    2ms")
	assert.Contains(t, out, "Max:    6ms")
	assert.Contains(t, out, "OK: 3")
	assert.Contains(t, out, "NOT_FOUND: 1")
	assert.Contains(t, out, "GetDatabase")
}
