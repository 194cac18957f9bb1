package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls JSON-encoded unary RPCs over a grpc.ClientConn.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. Without transport credentials in opts
// the connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Call invokes method with params and decodes the response into result.
// A nil result discards the response. Call is safe for concurrent use.
func (c *Client) Call(ctx context.Context, method string, params any, result any, opts ...grpc.CallOption) error {
	if result == nil {
		result = &json.RawMessage{}
	}
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.conn.Invoke(ctx, method, params, result, opts...)
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
