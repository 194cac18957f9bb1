package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	rpc "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

const testParent = "projects/p1/databases/(default)/collectionGroups/cities"

var fastRetry = RetryPolicy{
	Codes:        []codes.Code{codes.Unavailable, codes.Internal, codes.DeadlineExceeded},
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   1.3,
	Total:        2 * time.Second,
}

func startFake(t *testing.T, register func(s *rpc.Server), opts ...Option) *Client {
	t.Helper()
	s := rpc.NewServer(grpc.ChainUnaryInterceptor(middleware.UnaryErrors()))
	register(s)
	ln := bufconn.Listen(1 << 20)
	go func() { _ = s.ServeListener(ln) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	opts = append([]Option{WithTransport(NewGRPCTransport(conn, "secret-key")), WithRetryPolicy(fastRetry)}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testIndex() *proto.Index {
	return &proto.Index{
		QueryScope: proto.QueryScopeCollection,
		Fields: []*proto.IndexField{
			{FieldPath: "city", Order: proto.OrderAscending},
			{FieldPath: "population", Order: proto.OrderDescending},
		},
	}
}

func TestGRPCSendsRoutingAndAuth(t *testing.T) {
	var md metadata.MD
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodGetIndex.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			md, _ = metadata.FromIncomingContext(ctx)
			var in proto.GetIndexRequest
			if err := json.Unmarshal(req, &in); err != nil {
				return nil, err
			}
			return &proto.Index{Name: in.Name, State: proto.IndexStateReady}, nil
		})
	})

	name := testParent + "/indexes/abc"
	idx, err := c.GetIndex(context.Background(), &proto.GetIndexRequest{Name: name})
	require.NoError(t, err)
	assert.Equal(t, name, idx.Name)
	assert.Equal(t, proto.IndexStateReady, idx.State)
	assert.Equal(t, []string{"name=projects%2Fp1%2Fdatabases%2F%28default%29%2FcollectionGroups%2Fcities%2Findexes%2Fabc"}, md.Get(RoutingHeader))
	assert.Equal(t, []string{"Bearer secret-key"}, md.Get("authorization"))
}

func TestInvalidRequestIsRejectedLocally(t *testing.T) {
	var calls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodCreateIndex.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			calls.Add(1)
			return &proto.Operation{}, nil
		})
	})
	_, err := c.CreateIndex(context.Background(), &proto.CreateIndexRequest{Parent: testParent, Index: &proto.Index{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
	assert.Zero(t, calls.Load())
}

func TestIdempotentCallsRetry(t *testing.T) {
	var calls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodGetDatabase.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			if calls.Add(1) < 3 {
				return nil, apperrors.New(apperrors.ErrUnavailable, "warming up")
			}
			return &proto.Database{Name: "projects/p1/databases/(default)"}, nil
		})
	})
	db, err := c.GetDatabase(context.Background(), &proto.GetDatabaseRequest{Name: "projects/p1/databases/(default)"})
	require.NoError(t, err)
	assert.Equal(t, "projects/p1/databases/(default)", db.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNonRetryableCodeReturnsAtOnce(t *testing.T) {
	var calls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodGetIndex.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			calls.Add(1)
			return nil, apperrors.New(apperrors.ErrNotFound, "no such index")
		})
	})
	_, err := c.GetIndex(context.Background(), &proto.GetIndexRequest{Name: testParent + "/indexes/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "no such index", apperrors.Message(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOperationStartersRetryOnlyUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodCreateIndex.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			calls.Add(1)
			return nil, apperrors.New(apperrors.ErrInternal, "boom")
		})
	}, func(o *options) { o.retry = nil })
	_, err := c.CreateIndex(context.Background(), &proto.CreateIndexRequest{Parent: testParent, Index: testIndex()})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, apperrors.Code(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateIndexWait(t *testing.T) {
	opName := resource.OperationPath("p1", "(default)", "op1")
	var polls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodCreateIndex.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			op := &proto.Operation{Name: opName}
			require.NoError(t, op.SetMetadata(&proto.IndexOperationMetadata{State: proto.OperationStateInitializing}))
			return op, nil
		})
		s.Register(methodGetOperation.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			op := &proto.Operation{Name: opName}
			if polls.Add(1) < 2 {
				_ = op.SetMetadata(&proto.IndexOperationMetadata{State: proto.OperationStateProcessing})
				return op, nil
			}
			_ = op.SetMetadata(&proto.IndexOperationMetadata{State: proto.OperationStateSuccessful})
			idx := testIndex()
			idx.Name = testParent + "/indexes/abc"
			idx.State = proto.IndexStateReady
			_ = op.SetResponse(idx)
			return op, nil
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	op, err := c.CreateIndex(ctx, &proto.CreateIndexRequest{Parent: testParent, Index: testIndex()})
	require.NoError(t, err)
	assert.Equal(t, opName, op.Name())
	assert.False(t, op.Done())

	meta, err := op.Metadata()
	require.NoError(t, err)
	assert.Equal(t, proto.OperationStateInitializing, meta.State)

	idx, err := op.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, op.Done())
	assert.Equal(t, proto.IndexStateReady, idx.State)
	assert.Equal(t, int32(2), polls.Load())

	meta, err = op.Metadata()
	require.NoError(t, err)
	assert.Equal(t, proto.OperationStateSuccessful, meta.State)
}

func TestResumedOperationReportsFailure(t *testing.T) {
	opName := resource.OperationPath("p1", "(default)", "op2")
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodGetOperation.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			op := &proto.Operation{Name: opName}
			op.SetError(apperrors.ToRPCStatus(apperrors.New(apperrors.ErrFailedPrecondition, "index conflicts")))
			return op, nil
		})
	})
	op := c.CreateIndexOperation(opName)
	_, err := op.Poll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrFailedPrecondition))
	assert.True(t, op.Done())
}

func TestListIndexesAllFollowsTokens(t *testing.T) {
	pages := map[string]*proto.ListIndexesResponse{
		"":   {Indexes: []*proto.Index{{Name: "a"}, {Name: "b"}}, NextPageToken: "t1"},
		"t1": {Indexes: []*proto.Index{{Name: "c"}}},
	}
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodListIndexes.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			var in proto.ListIndexesRequest
			if err := json.Unmarshal(req, &in); err != nil {
				return nil, err
			}
			return pages[in.PageToken], nil
		})
	})

	var names []string
	for idx, err := range c.ListIndexesAll(context.Background(), &proto.ListIndexesRequest{Parent: testParent}) {
		require.NoError(t, err)
		names = append(names, idx.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	c := startFake(t, func(s *rpc.Server) {
		s.Register(methodDeleteOperation.FullName, func(ctx context.Context, req json.RawMessage) (any, error) {
			calls.Add(1)
			return nil, apperrors.New(apperrors.ErrUnavailable, "down")
		})
	}, WithCircuitBreaker(), WithRetryPolicy(RetryPolicy{
		Codes:        []codes.Code{codes.Unavailable},
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
		Total:        time.Second,
	}))

	err := c.DeleteOperation(context.Background(), &proto.DeleteOperationRequest{Name: "projects/p1/databases/d1/operations/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
	assert.Equal(t, int32(5), calls.Load())
}

func TestRESTTransportBindings(t *testing.T) {
	type seen struct {
		method, path, query, body, apiKey, routing string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = seen{r.Method, r.URL.Path, r.URL.RawQuery, string(body), r.Header.Get(APIKeyHeader), r.Header.Get(RoutingHeader)}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"name":"projects/p1/databases/db1/operations/op1"}`))
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{}`))
		default:
			_, _ = w.Write([]byte(`{"indexes":[{"name":"i1","state":"READY"}],"nextPageToken":"n"}`))
		}
	}))
	defer srv.Close()

	c, err := NewClient(WithEndpoint(srv.URL), WithTransportKind(TransportREST), WithAPIKey("k1"))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	resp, err := c.ListIndexes(ctx, &proto.ListIndexesRequest{Parent: testParent, PageSize: 10, Filter: "state=READY"})
	require.NoError(t, err)
	assert.Equal(t, "GET", got.method)
	assert.Equal(t, "/v1/"+testParent+"/indexes", got.path)
	assert.Equal(t, "filter=state%3DREADY&pageSize=10", got.query)
	assert.Equal(t, "k1", got.apiKey)
	assert.Equal(t, "parent="+"projects%2Fp1%2Fdatabases%2F%28default%29%2FcollectionGroups%2Fcities", got.routing)
	require.Len(t, resp.Indexes, 1)
	assert.Equal(t, proto.IndexStateReady, resp.Indexes[0].State)

	op, err := c.CreateDatabase(ctx, &proto.CreateDatabaseRequest{
		Parent:     "projects/p1",
		DatabaseID: "db1",
		Database:   &proto.Database{Type: proto.DatabaseTypeFirestoreNative},
	})
	require.NoError(t, err)
	assert.Equal(t, "projects/p1/databases/db1/operations/op1", op.Name())
	assert.Equal(t, "/v1/projects/p1/databases", got.path)
	assert.Equal(t, "databaseId=db1", got.query)
	assert.JSONEq(t, `{"type":"FIRESTORE_NATIVE"}`, got.body)

	_, err = c.ExportDocuments(ctx, &proto.ExportDocumentsRequest{Name: "projects/p1/databases/db1", CollectionIDs: []string{"cities"}})
	require.NoError(t, err)
	assert.Equal(t, "/v1/projects/p1/databases/db1:exportDocuments", got.path)
	assert.JSONEq(t, `{"name":"projects/p1/databases/db1","collectionIds":["cities"]}`, got.body)

	require.NoError(t, c.DeleteIndex(ctx, &proto.DeleteIndexRequest{Name: testParent + "/indexes/i1"}))
	assert.Equal(t, "DELETE", got.method)
	assert.Empty(t, got.query)
}

func TestRESTTransportMapsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, apperrors.New(apperrors.ErrAlreadyExists, "index already exists"))
	}))
	defer srv.Close()

	c, err := NewClient(WithEndpoint(srv.URL), WithTransportKind(TransportREST))
	require.NoError(t, err)
	_, err = c.CreateIndex(context.Background(), &proto.CreateIndexRequest{Parent: testParent, Index: testIndex()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.Equal(t, "index already exists", apperrors.Message(err))
}

func TestDecodeErrorBodyFallsBackToHTTPStatus(t *testing.T) {
	err := decodeErrorBody(http.StatusNotFound, []byte("not here"))
	assert.Equal(t, codes.NotFound, apperrors.Code(err))
	assert.Equal(t, "not here", apperrors.Message(err))
}

func TestNewClientRejectsUnknownTransport(t *testing.T) {
	_, err := NewClient(WithEndpoint("localhost:1"), WithTransportKind("carrier-pigeon"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestMethodsHaveBindings(t *testing.T) {
	for _, m := range Methods() {
		assert.Contains(t, m.HTTPPath, "{"+m.RoutingKey+"}", m.FullName)
		_, _, err := rpc.SplitMethod(m.FullName)
		assert.NoError(t, err, m.FullName)
	}
	assert.Len(t, Methods(), 21)
}
