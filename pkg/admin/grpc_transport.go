package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	rpc "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/middleware"
)

// GRPCTransport calls the service over gRPC with the JSON codec.
type GRPCTransport struct {
	client *rpc.Client
	apiKey string
}

// DialGRPC connects to target. An API key, when set, is sent as a bearer
// token on every call.
func DialGRPC(target, apiKey string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	opts = append([]grpc.DialOption{
		grpc.WithChainUnaryInterceptor(middleware.ClientRequestID(), middleware.ClientTracing()),
	}, opts...)
	client, err := rpc.Dial(target, opts...)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, err.Error())
	}
	return &GRPCTransport{client: client, apiKey: apiKey}, nil
}

// NewGRPCTransport wraps an existing connection.
func NewGRPCTransport(conn *grpc.ClientConn, apiKey string) *GRPCTransport {
	return &GRPCTransport{client: rpc.NewClient(conn), apiKey: apiKey}
}

func (t *GRPCTransport) Invoke(ctx context.Context, call *Call) error {
	pairs := []string{RoutingHeader, call.RoutingParams()}
	if t.apiKey != "" {
		pairs = append(pairs, "authorization", "Bearer "+t.apiKey)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	if err := t.client.Call(ctx, call.Method.FullName, call.Request, call.Response); err != nil {
		return apperrors.FromStatus(err)
	}
	return nil
}

func (t *GRPCTransport) Close() error {
	return t.client.Close()
}
