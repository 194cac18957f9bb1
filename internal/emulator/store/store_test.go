package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

const (
	dbName = "projects/p/databases/(default)"
	other  = "projects/p/databases/other"
)

func backends(t *testing.T) map[string]*Store {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = ":memory:"
	lite, db, err := Open(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)
	t.Cleanup(func() { lite.Close() })
	return map[string]*Store{
		"memory": New(NewMemory()),
		"sqlite": lite,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

func TestDatabaseLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		db := &proto.Database{Name: dbName, LocationID: "nam5", Type: proto.DatabaseTypeFirestoreNative}
		require.NoError(t, s.CreateDatabase(ctx, "projects/p", db))

		err := s.CreateDatabase(ctx, "projects/p", db)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

		got, err := s.GetDatabase(ctx, dbName)
		require.NoError(t, err)
		assert.Equal(t, "nam5", got.LocationID)
		assert.Equal(t, proto.DatabaseTypeFirestoreNative, got.Type)

		got.DeleteProtectionState = proto.DeleteProtectionEnabled
		require.NoError(t, s.UpdateDatabase(ctx, "projects/p", got))
		got, err = s.GetDatabase(ctx, dbName)
		require.NoError(t, err)
		assert.Equal(t, proto.DeleteProtectionEnabled, got.DeleteProtectionState)

		err = s.UpdateDatabase(ctx, "projects/p", &proto.Database{Name: other})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		list, err := s.ListDatabases(ctx, "projects/p")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		list, err = s.ListDatabases(ctx, "projects/q")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestIndexesFilteredByCollection(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for _, tc := range []struct{ coll, id string }{{"cities", "b"}, {"cities", "a"}, {"users", "c"}} {
			idx := &proto.Index{
				Name:       dbName + "/collectionGroups/" + tc.coll + "/indexes/" + tc.id,
				QueryScope: proto.QueryScopeCollection,
				State:      proto.IndexStateReady,
			}
			require.NoError(t, s.CreateIndex(ctx, dbName, tc.coll, idx))
		}

		cities, err := s.ListIndexes(ctx, dbName, "cities")
		require.NoError(t, err)
		require.Len(t, cities, 2)
		assert.Equal(t, dbName+"/collectionGroups/cities/indexes/a", cities[0].Name)

		all, err := s.ListIndexes(ctx, dbName, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, s.DeleteIndex(ctx, cities[0].Name))
		assert.ErrorIs(t, s.DeleteIndex(ctx, cities[0].Name), apperrors.ErrNotFound)
		_, err = s.GetIndex(ctx, cities[0].Name)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Equal(t, "NOT_FOUND", apperrors.CodeName(apperrors.Code(err)))
	})
}

func TestPutFieldReplaces(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		name := dbName + "/collectionGroups/events/fields/expireAt"
		require.NoError(t, s.PutField(ctx, dbName, "events", &proto.Field{Name: name}))
		require.NoError(t, s.PutField(ctx, dbName, "events", &proto.Field{
			Name:      name,
			TtlConfig: &proto.TtlConfig{State: proto.TtlStateActive},
		}))

		f, err := s.GetField(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, f.TtlConfig)
		assert.Equal(t, proto.TtlStateActive, f.TtlConfig.State)

		fields, err := s.ListFields(ctx, dbName, "events")
		require.NoError(t, err)
		assert.Len(t, fields, 1)
	})
}

func TestOperationsRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		op := &proto.Operation{Name: dbName + "/operations/01"}
		require.NoError(t, op.SetMetadata(&proto.ExportDocumentsMetadata{OperationState: proto.OperationStateProcessing}))
		require.NoError(t, s.CreateOperation(ctx, dbName, op))

		require.NoError(t, op.SetResponse(&proto.ExportDocumentsResponse{OutputURIPrefix: "file:///tmp/x"}))
		require.NoError(t, s.SaveOperation(ctx, dbName, op))

		got, err := s.GetOperation(ctx, op.Name)
		require.NoError(t, err)
		assert.True(t, got.Done)
		var resp proto.ExportDocumentsResponse
		require.NoError(t, got.Response.UnmarshalTo(&resp))
		assert.Equal(t, "file:///tmp/x", resp.OutputURIPrefix)

		ops, err := s.ListOperations(ctx, dbName)
		require.NoError(t, err)
		assert.Len(t, ops, 1)

		require.NoError(t, s.DeleteOperation(ctx, op.Name))
		assert.ErrorIs(t, s.SaveOperation(ctx, dbName, op), apperrors.ErrNotFound)
	})
}

func TestDocuments(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		docs := []Document{
			{Collection: "users", ID: "2", Data: json.RawMessage(`{"n":2}`)},
			{Collection: "users", ID: "1", Data: json.RawMessage(`{"n":1}`)},
			{Collection: "cities", ID: "sf"},
		}
		require.NoError(t, s.PutDocuments(ctx, dbName, docs))
		require.NoError(t, s.PutDocuments(ctx, other, docs[:1]))

		got, err := s.ListDocuments(ctx, dbName, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "cities", got[0].Collection)
		assert.Equal(t, "1", got[1].ID)
		assert.JSONEq(t, `{}`, string(got[0].Data))
		assert.False(t, got[0].UpdateTime.IsZero())

		users, err := s.ListDocuments(ctx, dbName, []string{"users"})
		require.NoError(t, err)
		assert.Len(t, users, 2)

		counts, err := s.CollectionCounts(ctx, dbName)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"users": 2, "cities": 1}, counts)

		n, err := s.DeleteDocuments(ctx, dbName, []string{"users", "missing"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		left, err := s.ListDocuments(ctx, other, nil)
		require.NoError(t, err)
		assert.Len(t, left, 1)
	})
}

func TestDeleteDatabaseCascades(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateDatabase(ctx, "projects/p", &proto.Database{Name: dbName}))
		require.NoError(t, s.CreateDatabase(ctx, "projects/p", &proto.Database{Name: other}))
		idx := &proto.Index{Name: dbName + "/collectionGroups/c/indexes/i"}
		require.NoError(t, s.CreateIndex(ctx, dbName, "c", idx))
		require.NoError(t, s.CreateOperation(ctx, other, &proto.Operation{Name: other + "/operations/o"}))
		require.NoError(t, s.PutDocuments(ctx, dbName, []Document{{Collection: "c", ID: "d"}}))

		require.NoError(t, s.DeleteDatabase(ctx, dbName))
		assert.ErrorIs(t, s.DeleteDatabase(ctx, dbName), apperrors.ErrNotFound)

		_, err := s.GetIndex(ctx, idx.Name)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		docs, err := s.ListDocuments(ctx, dbName, nil)
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, err = s.GetOperation(ctx, other+"/operations/o")
		assert.NoError(t, err)
	})
}

func TestPostgresQueries(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := New(NewSQL(sqldb.Wrap(conn, sqldb.Postgres)))
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO resources (kind, name, parent, collection, body, updated_at)`)).
		WithArgs("database", dbName, "projects/p", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = s.CreateDatabase(ctx, "projects/p", &proto.Database{Name: dbName})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM documents WHERE database_name = $1 AND collection = ANY($2)`)).
		WithArgs(dbName, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"collection", "doc_id", "data", "updated_at"}))
	docs, err := s.ListDocuments(ctx, dbName, []string{"users"})
	require.NoError(t, err)
	assert.Empty(t, docs)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM resources WHERE kind = $1 AND name = $2`)).
		WithArgs("database", dbName).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, s.DeleteDatabase(ctx, dbName), apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Driver = "memory"
	s, db, err := Open(cfg)
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.NoError(t, s.Ping(context.Background()))

	cfg.Store.Driver = "mongo"
	_, _, err = Open(cfg)
	assert.Error(t, err)
}
