package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.OperationsStartedTotal.WithLabelValues("CreateIndex").Inc()
	m.OperationsFinishedTotal.WithLabelValues("CreateIndex", "SUCCESSFUL").Inc()
	m.RPCRequestsTotal.WithLabelValues("/google.firestore.admin.v1.FirestoreAdmin/GetIndex", "OK").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsStartedTotal.WithLabelValues("CreateIndex")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues("/google.firestore.admin.v1.FirestoreAdmin/GetIndex", "OK")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["operations_finished_total"])
	assert.True(t, names["rpc_requests_total"])

	assert.Panics(t, func() { NewWithRegistry(reg) })
}
