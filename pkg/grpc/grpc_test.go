package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type echoRequest struct {
	Name string `json:"name"`
}

type echoResponse struct {
	Greeting string `json:"greeting"`
}

func startServer(t *testing.T, s *Server) *Client {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	go func() { _ = s.ServeListener(ln) }()
	t.Cleanup(s.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return ln.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCallRoundTrip(t *testing.T) {
	s := NewServer()
	s.Register("/test.v1.Echo/Hello", func(ctx context.Context, req json.RawMessage) (any, error) {
		var in echoRequest
		if err := json.Unmarshal(req, &in); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return &echoResponse{Greeting: "hello " + in.Name}, nil
	})
	s.Register("/test.v1.Echo/Fail", func(ctx context.Context, req json.RawMessage) (any, error) {
		return nil, status.Error(codes.NotFound, "nothing here")
	})
	assert.Equal(t, 2, s.MethodCount())

	c := startServer(t, s)
	ctx := context.Background()

	var out echoResponse
	require.NoError(t, c.Call(ctx, "/test.v1.Echo/Hello", &echoRequest{Name: "db"}, &out))
	assert.Equal(t, "hello db", out.Greeting)

	err := c.Call(ctx, "/test.v1.Echo/Fail", &echoRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = c.Call(ctx, "/test.v1.Echo/Missing", &echoRequest{}, nil)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestInterceptorSeesMethod(t *testing.T) {
	var seen string
	intercept := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = info.FullMethod
		if _, ok := req.(json.RawMessage); !ok {
			return nil, errors.New("unexpected request type")
		}
		return handler(ctx, req)
	}
	s := NewServer(grpc.UnaryInterceptor(intercept))
	s.Register("/test.v1.Echo/Hello", func(ctx context.Context, req json.RawMessage) (any, error) {
		return &echoResponse{Greeting: "hi"}, nil
	})
	c := startServer(t, s)

	var out echoResponse
	require.NoError(t, c.Call(context.Background(), "/test.v1.Echo/Hello", &echoRequest{}, &out))
	assert.Equal(t, "/test.v1.Echo/Hello", seen)
}

func TestSplitMethod(t *testing.T) {
	svc, m, err := SplitMethod("/google.longrunning.Operations/GetOperation")
	require.NoError(t, err)
	assert.Equal(t, "google.longrunning.Operations", svc)
	assert.Equal(t, "GetOperation", m)

	for _, bad := range []string{"", "/", "noslash", "/Service/", "Service/Method"} {
		_, _, err := SplitMethod(bad)
		assert.Error(t, err, bad)
	}
}

func TestRegisterPanicsOnMalformedName(t *testing.T) {
	s := NewServer()
	assert.Panics(t, func() {
		s.Register("Echo.Hello", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	})
}
