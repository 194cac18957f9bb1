// Package grpc serves and calls RPC methods over google.golang.org/grpc using
// a JSON codec, so handlers can be registered per method without generated
// service stubs.
//
// Example server:
//
//	s := grpc.NewServer()
//	s.Register("/google.firestore.admin.v1.FirestoreAdmin/GetIndex",
//	    func(ctx context.Context, req json.RawMessage) (any, error) {
//	        var in proto.GetIndexRequest
//	        if err := json.Unmarshal(req, &in); err != nil {
//	            return nil, err
//	        }
//	        return svc.GetIndex(ctx, &in)
//	    })
//	s.Serve(":8090")
//
// Example client:
//
//	c, _ := grpc.Dial("localhost:8090")
//	var idx proto.Index
//	c.Call(ctx, "/google.firestore.admin.v1.FirestoreAdmin/GetIndex", &proto.GetIndexRequest{Name: n}, &idx)
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"

	"google.golang.org/grpc"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Server dispatches JSON-encoded unary RPCs to registered handlers.
type Server struct {
	handlers map[string]map[string]HandlerFunc
	server   *grpc.Server
	logger   *slog.Logger
	mu       sync.RWMutex
	once     sync.Once
}

// NewServer creates a server. Interceptors and credentials are passed as
// grpc.ServerOptions.
func NewServer(opts ...grpc.ServerOption) *Server {
	return &Server{
		handlers: make(map[string]map[string]HandlerFunc),
		server:   grpc.NewServer(opts...),
		logger:   slog.Default().With("component", "rpc-server"),
	}
}

// Register adds a handler for a full method name of the form
// "/package.Service/Method". Handlers must be registered before Serve.
func (s *Server) Register(method string, handler HandlerFunc) {
	service, name, err := SplitMethod(method)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[service] == nil {
		s.handlers[service] = make(map[string]HandlerFunc)
	}
	s.handlers[service][name] = handler
	s.logger.Debug("method registered", "method", method)
}

// GRPCServer exposes the underlying server for registering generated
// services such as grpc.health.v1.Health.
func (s *Server) GRPCServer() *grpc.Server {
	return s.server
}

// Serve listens on addr and blocks until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ln)
}

// ServeListener serves RPCs on ln and blocks until Stop is called.
func (s *Server) ServeListener(ln net.Listener) error {
	s.once.Do(s.registerServices)
	s.logger.Info("rpc server listening", "addr", ln.Addr().String(), "methods", s.MethodCount())
	if err := s.server.Serve(ln); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serving rpc: %w", err)
	}
	return nil
}

func (s *Server) registerServices() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	services := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		services = append(services, name)
	}
	sort.Strings(services)
	for _, service := range services {
		desc := &grpc.ServiceDesc{
			ServiceName: service,
			HandlerType: (*any)(nil),
		}
		for method, h := range s.handlers[service] {
			desc.Methods = append(desc.Methods, grpc.MethodDesc{
				MethodName: method,
				Handler:    s.unaryHandler("/"+service+"/"+method, h),
			})
		}
		s.server.RegisterService(desc, s)
	}
}

func (s *Server) unaryHandler(fullMethod string, h HandlerFunc) grpc.MethodHandler {
	return func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		var req json.RawMessage
		if err := dec(&req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return h(ctx, r.(json.RawMessage))
		})
	}
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, methods := range s.handlers {
		n += len(methods)
	}
	return n
}

// Stop waits for in-flight RPCs to finish, then shuts the server down.
func (s *Server) Stop() {
	s.server.GracefulStop()
	s.logger.Info("rpc server stopped")
}

// SplitMethod splits "/package.Service/Method" into its service and method
// names.
func SplitMethod(fullMethod string) (service, method string, err error) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	i := strings.LastIndexByte(trimmed, '/')
	if !strings.HasPrefix(fullMethod, "/") || i <= 0 || i == len(trimmed)-1 {
		return "", "", fmt.Errorf("malformed method name %q", fullMethod)
	}
	return trimmed[:i], trimmed[i+1:], nil
}
