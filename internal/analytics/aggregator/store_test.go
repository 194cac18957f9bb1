package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqldb.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	fsys, dir := store.Migrations(db.Dialect())
	require.NoError(t, db.Migrate(fsys, dir))
	return NewStore(db)
}

func TestSnapshots(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.SaveSnapshot(ctx, analytics.AggregatedStats{OperationsStarted: i}))
	}

	latest, err = s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.OperationsStarted)

	list, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].OperationsStarted)
	assert.Equal(t, int64(2), list[1].OperationsStarted)
}

func TestPeriodicSaveTakesFinalSnapshot(t *testing.T) {
	s := openStore(t)
	agg := analytics.NewAggregator()
	agg.Track(analytics.OperationEvent{Type: analytics.EventOperationStarted, Database: "d"})

	ctx, cancel := context.WithCancel(context.Background())
	s.StartPeriodicSave(ctx, agg, time.Hour)
	cancel()

	assert.Eventually(t, func() bool {
		latest, err := s.LatestSnapshot(context.Background())
		return err == nil && latest != nil && latest.OperationsStarted == 1
	}, 2*time.Second, 10*time.Millisecond)
}
