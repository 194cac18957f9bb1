package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

const (
	project  = "projects/demo"
	database = "projects/demo/databases/orders"
	cities   = database + "/collectionGroups/cities"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Emulator.ExportRoot = t.TempDir()
	cfg.Emulator.Workers = 2
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Close(ctx))
	})
	return a
}

func restClient(t *testing.T, a *App, opts ...admin.Option) (*admin.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(a.HTTP)
	t.Cleanup(srv.Close)
	opts = append([]admin.Option{
		admin.WithEndpoint(srv.URL),
		admin.WithTransportKind(admin.TransportREST),
		admin.WithTimeout(5 * time.Second),
	}, opts...)
	c, err := admin.NewClient(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func grpcConn(t *testing.T, a *App) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go a.RPC.ServeListener(lis)
	t.Cleanup(a.RPC.Stop)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func grpcClient(t *testing.T, a *App, apiKey string) *admin.Client {
	t.Helper()
	c, err := admin.NewClient(admin.WithTransport(admin.NewGRPCTransport(grpcConn(t, a), apiKey)))
	require.NoError(t, err)
	return c
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createDatabase(t *testing.T, c *admin.Client) *proto.Database {
	t.Helper()
	ctx := waitCtx(t)
	op, err := c.CreateDatabase(ctx, &proto.CreateDatabaseRequest{
		Parent: project, DatabaseID: "orders", Database: &proto.Database{LocationID: "eur3"},
	})
	require.NoError(t, err)
	db, err := op.Wait(ctx)
	require.NoError(t, err)
	return db
}

func seed(t *testing.T, baseURL, collection string, docs map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"documents": docs})
	require.NoError(t, err)
	resp, err := http.Post(baseURL+"/emulator/v1/"+database+"/documents/"+collection, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func documentCounts(t *testing.T, baseURL string) map[string]int {
	t.Helper()
	resp, err := http.Get(baseURL + "/emulator/v1/" + database + "/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Collections map[string]int `json:"collections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Collections
}

func TestRESTLifecycle(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)
	c, srv := restClient(t, a)
	ctx := waitCtx(t)

	db := createDatabase(t, c)
	assert.Equal(t, database, db.Name)
	assert.Equal(t, "eur3", db.LocationID)

	got, err := c.GetDatabase(ctx, &proto.GetDatabaseRequest{Name: database})
	require.NoError(t, err)
	assert.Equal(t, db.Etag, got.Etag)

	seed(t, srv.URL, "cities", map[string]any{
		"sf":  map[string]any{"country": "US", "population": 870000},
		"la":  map[string]any{"country": "US", "population": 3900000},
		"tok": map[string]any{"country": "JP", "population": 14000000},
	})
	assert.Equal(t, map[string]int{"cities": 3}, documentCounts(t, srv.URL))

	idxOp, err := c.CreateIndex(ctx, &proto.CreateIndexRequest{
		Parent: cities,
		Index: &proto.Index{
			QueryScope: proto.QueryScopeCollection,
			Fields: []*proto.IndexField{
				{FieldPath: "country", Order: proto.OrderAscending},
				{FieldPath: "population", Order: proto.OrderDescending},
			},
		},
	})
	require.NoError(t, err)
	idx, err := idxOp.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, proto.IndexStateReady, idx.State)
	meta, err := idxOp.Metadata()
	require.NoError(t, err)
	assert.Equal(t, proto.OperationStateSuccessful, meta.State)

	list, err := c.ListIndexes(ctx, &proto.ListIndexesRequest{Parent: cities, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list.Indexes, 1)
	assert.Equal(t, idx.Name, list.Indexes[0].Name)

	field, err := c.GetField(ctx, &proto.GetFieldRequest{Name: cities + "/fields/population"})
	require.NoError(t, err)
	assert.True(t, field.IndexConfig.UsesAncestorConfig)

	outDir := filepath.Join(cfg.Emulator.ExportRoot, "snapshot")
	exportOp, err := c.ExportDocuments(ctx, &proto.ExportDocumentsRequest{Name: database, OutputURIPrefix: "file://" + outDir})
	require.NoError(t, err)
	exported, err := exportOp.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file://"+outDir, exported.OutputURIPrefix)

	delOp, err := c.BulkDeleteDocuments(ctx, &proto.BulkDeleteDocumentsRequest{Name: database})
	require.NoError(t, err)
	_, err = delOp.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, documentCounts(t, srv.URL))

	importOp, err := c.ImportDocuments(ctx, &proto.ImportDocumentsRequest{Name: database, InputURIPrefix: exported.OutputURIPrefix})
	require.NoError(t, err)
	_, err = importOp.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cities": 3}, documentCounts(t, srv.URL))

	var names []string
	for op, err := range c.ListOperationsAll(ctx, &proto.ListOperationsRequest{Name: database, PageSize: 2}) {
		require.NoError(t, err)
		assert.True(t, op.Done)
		names = append(names, op.Name)
	}
	assert.Len(t, names, 5)

	require.NoError(t, c.DeleteIndex(ctx, &proto.DeleteIndexRequest{Name: idx.Name}))
	_, err = c.GetIndex(ctx, &proto.GetIndexRequest{Name: idx.Name})
	assert.Equal(t, codes.NotFound, apperrors.Code(err))

	dropOp, err := c.DeleteDatabase(ctx, &proto.DeleteDatabaseRequest{Name: database, Etag: got.Etag})
	require.NoError(t, err)
	_, err = dropOp.Wait(ctx)
	require.NoError(t, err)
	_, err = c.GetDatabase(ctx, &proto.GetDatabaseRequest{Name: database})
	assert.Equal(t, codes.NotFound, apperrors.Code(err))

	assert.Eventually(t, func() bool {
		return a.Aggregator.Stats().OperationsFinished == 6
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRESTLocations(t *testing.T) {
	a := newApp(t, testConfig(t))
	c, _ := restClient(t, a)
	ctx := waitCtx(t)

	var ids []string
	for loc, err := range c.ListLocationsAll(ctx, &proto.ListLocationsRequest{Name: project, PageSize: 3}) {
		require.NoError(t, err)
		ids = append(ids, loc.LocationID)
	}
	assert.ElementsMatch(t, []string{"nam5", "eur3", "us-east1", "europe-west1"}, ids)

	loc, err := c.GetLocation(ctx, &proto.GetLocationRequest{Name: project + "/locations/eur3"})
	require.NoError(t, err)
	assert.Equal(t, "Europe", loc.DisplayName)
}

func TestGRPCLifecycle(t *testing.T) {
	a := newApp(t, testConfig(t))
	c := grpcClient(t, a, "")
	ctx := waitCtx(t)

	db := createDatabase(t, c)
	assert.Equal(t, database, db.Name)

	fieldOp, err := c.UpdateField(ctx, &proto.UpdateFieldRequest{
		Field:      &proto.Field{Name: cities + "/fields/expireAt", TtlConfig: &proto.TtlConfig{}},
		UpdateMask: proto.NewFieldMask("ttlConfig"),
	})
	require.NoError(t, err)
	field, err := fieldOp.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, field.TtlConfig)

	fields, err := c.ListFields(ctx, &proto.ListFieldsRequest{Parent: database + "/collectionGroups/-", Filter: "ttlConfig: *"})
	require.NoError(t, err)
	require.Len(t, fields.Fields, 1)
	assert.Equal(t, cities+"/fields/expireAt", fields.Fields[0].Name)

	updOp, err := c.UpdateDatabase(ctx, &proto.UpdateDatabaseRequest{
		Database:   &proto.Database{Name: database, DeleteProtectionState: proto.DeleteProtectionEnabled},
		UpdateMask: proto.NewFieldMask("deleteProtectionState"),
	})
	require.NoError(t, err)
	updated, err := updOp.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, proto.DeleteProtectionEnabled, updated.DeleteProtectionState)

	_, err = c.DeleteDatabase(ctx, &proto.DeleteDatabaseRequest{Name: database})
	assert.Equal(t, codes.FailedPrecondition, apperrors.Code(err))

	_, err = c.GetOperation(ctx, &proto.GetOperationRequest{Name: database + "/operations/missing"})
	assert.Equal(t, codes.NotFound, apperrors.Code(err))

	dbs, err := c.ListDatabases(ctx, &proto.ListDatabasesRequest{Parent: project})
	require.NoError(t, err)
	assert.Len(t, dbs.Databases, 1)
}

func TestAuthentication(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.StaticKeys = []string{"secret"}
	a := newApp(t, cfg)
	ctx := waitCtx(t)
	req := &proto.ListDatabasesRequest{Parent: project}

	anonymous, _ := restClient(t, a)
	_, err := anonymous.ListDatabases(ctx, req)
	assert.Equal(t, codes.Unauthenticated, apperrors.Code(err))

	keyed, srv := restClient(t, a, admin.WithAPIKey("secret"))
	_, err = keyed.ListDatabases(ctx, req)
	assert.NoError(t, err)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = grpcClient(t, a, "").ListDatabases(ctx, req)
	assert.Equal(t, codes.Unauthenticated, apperrors.Code(err))
	_, err = grpcClient(t, a, "secret").ListDatabases(ctx, req)
	assert.NoError(t, err)
}

func TestGRPCHealth(t *testing.T) {
	a := newApp(t, testConfig(t))
	conn := grpcConn(t, a)
	ctx := waitCtx(t)

	require.Eventually(t, func() bool {
		resp, err := healthgrpc.NewHealthClient(conn).Check(ctx, &healthgrpc.HealthCheckRequest{})
		return err == nil && resp.Status == healthgrpc.HealthCheckResponse_SERVING
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	a := newApp(t, testConfig(t))
	grpcLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx, grpcLn, httpLn) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + httpLn.Addr().String() + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	c, err := admin.NewClient(admin.WithEndpoint(grpcLn.Addr().String()))
	require.NoError(t, err)
	defer c.Close()
	_, err = c.ListDatabases(waitCtx(t), &proto.ListDatabasesRequest{Parent: project})
	require.NoError(t, err)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewRejectsKeyStoreWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.UsePostgres = true
	_, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	assert.ErrorContains(t, err, "usePostgres")
}

func TestNewReturnsErrorForUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"
	a, err := New(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	assert.ErrorContains(t, err, "connecting to redis")
	assert.Nil(t, a)
}
