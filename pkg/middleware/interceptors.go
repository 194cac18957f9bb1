package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/tracing"
)

// RequestIDMetadata is the metadata key carrying the request ID over gRPC.
const RequestIDMetadata = "x-request-id"

// UnaryRequestID attaches the caller's x-request-id, or a fresh one, to the
// context and echoes it in the response header.
func UnaryRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDMetadata); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadata, id))
		return handler(logger.WithRequestID(ctx, id), req)
	}
}

// UnaryRecovery turns handler panics into INTERNAL errors.
func UnaryRecovery() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("panic in rpc handler",
					"method", info.FullMethod,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryErrors converts application errors into gRPC statuses.
func UnaryErrors() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, apperrors.ToStatus(err)
		}
		return resp, nil
	}
}

// UnaryLogging logs each RPC at debug, or warn when it fails.
func UnaryLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := apperrors.Code(err)
		level := slog.LevelDebug
		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, "error", err)
		}
		logger.FromContext(ctx).Log(ctx, level, "rpc", attrs...)
		return resp, err
	}
}

// UnaryMetrics records RPC counts and latency.
func UnaryMetrics(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RPCRequestsTotal.WithLabelValues(info.FullMethod, apperrors.Code(err).String()).Inc()
		m.RPCRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// UnaryTracing opens a server span per RPC.
func UnaryTracing() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracing.StartSpan(ctx, info.FullMethod, tracing.AttrRPCMethod.String(info.FullMethod))
		resp, err := handler(ctx, req)
		tracing.End(span, err)
		return resp, err
	}
}

// ClientTracing opens a client span per outgoing RPC.
func ClientTracing() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := tracing.StartSpan(ctx, method, tracing.AttrRPCMethod.String(method))
		err := invoker(ctx, method, req, reply, cc, opts...)
		tracing.End(span, err)
		return err
	}
}

// ClientRequestID propagates the request ID in ctx to the server.
func ClientRequestID() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := logger.RequestID(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, RequestIDMetadata, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
