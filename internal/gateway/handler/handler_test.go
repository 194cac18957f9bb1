package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/service"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

const dbName = "projects/demo/databases/(default)"

func newHandler(t *testing.T, opts ...Option) (*Handler, *service.Service, *store.Store) {
	t.Helper()
	cfg := config.Default().Emulator
	cfg.ExportRoot = t.TempDir()
	st := store.New(store.NewMemory())
	r := runner.New(st, 2)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.Shutdown(ctx)
	})
	svc := service.New(cfg, st, r)
	h, err := New(svc.Endpoints(), svc, opts...)
	require.NoError(t, err)
	return h, svc, st
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func withParams(h http.HandlerFunc, params map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		h(w, r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx)))
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	return out
}

func waitDone(t *testing.T, st *store.Store, name string) *proto.Operation {
	t.Helper()
	var op *proto.Operation
	require.Eventually(t, func() bool {
		got, err := st.GetOperation(context.Background(), name)
		if err != nil {
			return false
		}
		op = got
		return got.Done
	}, 5*time.Second, 5*time.Millisecond)
	return op
}

func createDatabase(t *testing.T, h *Handler, st *store.Store) {
	t.Helper()
	rec := serve(h.Dispatch, http.MethodPost, "/v1/projects/demo/databases?databaseId=(default)", `{"locationId":"nam5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	waitDone(t, st, decode[proto.Operation](t, rec).Name)
}

func TestMatch(t *testing.T) {
	h, _, _ := newHandler(t)
	tests := []struct {
		verb, path string
		method     string
		name       string
	}{
		{"GET", "/v1/projects/p/databases/mydb", "GetDatabase", "projects/p/databases/mydb"},
		{"GET", "/v1/projects/p/databases", "ListDatabases", "projects/p"},
		{"GET", "/v1/projects/p/databases/mydb/collectionGroups/c/indexes", "ListIndexes", "projects/p/databases/mydb/collectionGroups/c"},
		{"GET", "/v1/projects/p/databases/mydb/collectionGroups/c/indexes/i1", "GetIndex", "projects/p/databases/mydb/collectionGroups/c/indexes/i1"},
		{"GET", "/v1/projects/p/databases/mydb/collectionGroups/-/fields", "ListFields", "projects/p/databases/mydb/collectionGroups/-"},
		{"GET", "/v1/projects/p/databases/mydb/collectionGroups/c/fields/f", "GetField", "projects/p/databases/mydb/collectionGroups/c/fields/f"},
		{"PATCH", "/v1/projects/p/databases/mydb/collectionGroups/c/fields/f", "UpdateField", "projects/p/databases/mydb/collectionGroups/c/fields/f"},
		{"PATCH", "/v1/projects/p/databases/mydb", "UpdateDatabase", "projects/p/databases/mydb"},
		{"POST", "/v1/projects/p/databases/mydb:exportDocuments", "ExportDocuments", "projects/p/databases/mydb"},
		{"POST", "/v1/projects/p/databases/mydb/operations/o:cancel", "CancelOperation", "projects/p/databases/mydb/operations/o"},
		{"GET", "/v1/projects/p/databases/mydb/operations", "ListOperations", "projects/p/databases/mydb"},
		{"DELETE", "/v1/projects/p/databases/mydb/operations/o", "DeleteOperation", "projects/p/databases/mydb/operations/o"},
		{"DELETE", "/v1/projects/p/databases/mydb", "DeleteDatabase", "projects/p/databases/mydb"},
		{"GET", "/v1/projects/p/locations", "ListLocations", "projects/p"},
		{"GET", "/v1/projects/p/locations/nam5", "GetLocation", "projects/p/locations/nam5"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rt, name, ok := match(h.routes, tt.verb, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.method, rt.endpoint.Method.ShortName())
			assert.Equal(t, tt.name, name)
		})
	}

	_, _, ok := match(h.routes, "GET", "/v1/projects/p/unknown/x")
	assert.False(t, ok)
	_, _, ok = match(h.routes, "PUT", "/v1/projects/p/databases/mydb")
	assert.False(t, ok)
}

func TestQueryFields(t *testing.T) {
	fields, err := queryFields(url.Values{
		"pageSize":      {"20"},
		"showDeleted":   {"true"},
		"collectionIds": {"a"},
		"filter":        {"state=READY"},
		"key":           {"secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"pageSize":      int64(20),
		"showDeleted":   true,
		"collectionIds": []string{"a"},
		"filter":        "state=READY",
	}, fields)

	_, err = queryFields(url.Values{"pageSize": {"many"}})
	assert.Error(t, err)
	_, err = queryFields(url.Values{"showDeleted": {"maybe"}})
	assert.Error(t, err)
}

func TestSetPath(t *testing.T) {
	fields := map[string]any{"field": map[string]any{"ttlConfig": map[string]any{}}}
	require.NoError(t, setPath(fields, []string{"field", "name"}, "n"))
	assert.Equal(t, "n", fields["field"].(map[string]any)["name"])

	fields = map[string]any{}
	require.NoError(t, setPath(fields, []string{"database", "name"}, "d"))
	assert.Equal(t, map[string]any{"database": map[string]any{"name": "d"}}, fields)

	fields = map[string]any{"database": "oops"}
	assert.Error(t, setPath(fields, []string{"database", "name"}, "d"))
}

func TestDispatchDatabases(t *testing.T) {
	h, _, st := newHandler(t)
	createDatabase(t, h, st)

	rec := serve(h.Dispatch, http.MethodGet, "/v1/"+dbName, "")
	require.Equal(t, http.StatusOK, rec.Code)
	db := decode[proto.Database](t, rec)
	assert.Equal(t, dbName, db.Name)
	assert.Equal(t, "nam5", db.LocationID)

	rec = serve(h.Dispatch, http.MethodPatch, "/v1/"+dbName+"?updateMask=deleteProtectionState",
		`{"name":"projects/other/databases/x","deleteProtectionState":"DELETE_PROTECTION_ENABLED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	waitDone(t, st, decode[proto.Operation](t, rec).Name)

	rec = serve(h.Dispatch, http.MethodDelete, "/v1/"+dbName, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAILED_PRECONDITION")

	rec = serve(h.Dispatch, http.MethodGet, "/v1/projects/demo/databases?showDeleted=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[proto.ListDatabasesResponse](t, rec).Databases, 1)
}

func TestDispatchIndexes(t *testing.T) {
	h, _, st := newHandler(t)
	createDatabase(t, h, st)
	parent := dbName + "/collectionGroups/cities"

	for _, field := range []string{"country", "name"} {
		rec := serve(h.Dispatch, http.MethodPost, "/v1/"+parent+"/indexes",
			`{"queryScope":"COLLECTION","fields":[{"fieldPath":"`+field+`","order":"ASCENDING"},{"fieldPath":"population","order":"DESCENDING"}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		waitDone(t, st, decode[proto.Operation](t, rec).Name)
	}

	rec := serve(h.Dispatch, http.MethodGet, "/v1/"+parent+"/indexes?pageSize=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[proto.ListIndexesResponse](t, rec)
	require.Len(t, page.Indexes, 1)
	require.NotEmpty(t, page.NextPageToken)

	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+parent+"/indexes?pageSize=1&pageToken="+url.QueryEscape(page.NextPageToken), "")
	require.Equal(t, http.StatusOK, rec.Code)
	next := decode[proto.ListIndexesResponse](t, rec)
	require.Len(t, next.Indexes, 1)
	assert.NotEqual(t, page.Indexes[0].Name, next.Indexes[0].Name)

	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+next.Indexes[0].Name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, proto.IndexStateReady, decode[proto.Index](t, rec).State)

	rec = serve(h.Dispatch, http.MethodDelete, "/v1/"+next.Indexes[0].Name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+next.Indexes[0].Name, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchUpdateField(t *testing.T) {
	h, _, st := newHandler(t)
	createDatabase(t, h, st)
	name := dbName + "/collectionGroups/events/fields/expireAt"

	rec := serve(h.Dispatch, http.MethodPatch, "/v1/"+name+"?updateMask=ttlConfig", `{"ttlConfig":{}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	op := waitDone(t, st, decode[proto.Operation](t, rec).Name)
	require.Nil(t, op.Error)

	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	field := decode[proto.Field](t, rec)
	assert.Equal(t, name, field.Name)
	require.NotNil(t, field.TtlConfig)

	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+dbName+"/collectionGroups/-/fields?filter="+url.QueryEscape("ttlConfig: *"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[proto.ListFieldsResponse](t, rec).Fields, 1)
}

func TestDispatchCancel(t *testing.T) {
	h, _, st := newHandler(t)
	createDatabase(t, h, st)

	rec := serve(h.Dispatch, http.MethodGet, "/v1/"+dbName+"/operations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ops := decode[proto.ListOperationsResponse](t, rec)
	require.Len(t, ops.Operations, 1)

	rec = serve(h.Dispatch, http.MethodPost, "/v1/"+ops.Operations[0].Name+":cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAILED_PRECONDITION")

	rec = serve(h.Dispatch, http.MethodDelete, "/v1/"+ops.Operations[0].Name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h.Dispatch, http.MethodGet, "/v1/"+ops.Operations[0].Name, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchErrors(t *testing.T) {
	h, _, _ := newHandler(t)

	rec := serve(h.Dispatch, http.MethodGet, "/v1/projects/demo/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"NOT_FOUND"`)

	rec = serve(h.Dispatch, http.MethodPost, "/v1/projects/demo/databases?databaseId=x", `{"locationId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")

	rec = serve(h.Dispatch, http.MethodPost, "/v1/"+dbName+":exportDocuments", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "JSON object")

	rec = serve(h.Dispatch, http.MethodGet, "/v1/projects/demo/databases/(default)/collectionGroups/c/indexes?pageSize=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocuments(t *testing.T) {
	h, _, st := newHandler(t)
	createDatabase(t, h, st)
	params := map[string]string{"project": "demo", "database": "(default)", "collection": "cities"}

	rec := serve(withParams(h.SeedDocuments, params), http.MethodPost, "/", `{"documents":{"a":{"n":1},"b":{"n":2}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"seeded":2}`, rec.Body.String())

	rec = serve(withParams(h.SeedDocuments, params), http.MethodPost, "/", `{"documents":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(withParams(h.DocumentCounts, params), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"collections":{"cities":2}}`, rec.Body.String())

	rec = serve(withParams(h.ClearDocuments, params), http.MethodDelete, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, rec.Body.String())

	rec = serve(withParams(h.DocumentCounts, params), http.MethodGet, "/", "")
	assert.JSONEq(t, `{"collections":{}}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	h, _, _ := newHandler(t)
	rec := serve(h.Stats, http.MethodGet, "/emulator/v1/stats", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	agg := analytics.NewAggregator()
	agg.Track(analytics.OperationEvent{Type: analytics.EventOperationStarted, Kind: "CreateIndex", Database: dbName})
	h, _, _ = newHandler(t, WithStats(analytics.NewHandler(agg, nil)))
	rec = serve(h.Stats, http.MethodGet, "/emulator/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[analytics.AggregatedStats](t, rec).OperationsStarted)

	rec = serve(h.StatsHistory, http.MethodGet, "/emulator/v1/stats/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestKeysRequireStore(t *testing.T) {
	h, _, _ := newHandler(t)
	rec := serve(h.ListAPIKeys, http.MethodGet, "/emulator/v1/keys", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h, _, _ = newHandler(t, WithKeys(apikey.NewValidator(nil, []string{"secret"})))
	rec = serve(h.ListAPIKeys, http.MethodGet, "/emulator/v1/keys", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FAILED_PRECONDITION")
}
