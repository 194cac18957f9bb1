// Package service implements the FirestoreAdmin, Operations and Locations
// RPCs of the emulator on top of the resource store and the operation
// runner.
//
// Handlers are plain Go methods taking and returning pkg/proto messages.
// Endpoints binds each of them to its admin.Method so the gRPC server and the
// REST gateway dispatch the same code.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/opcache"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	rpc "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

const (
	adminService    = "/google.firestore.admin.v1.FirestoreAdmin/"
	lroService      = "/google.longrunning.Operations/"
	locationService = "/google.cloud.location.Locations/"
)

type Service struct {
	cfg    config.EmulatorConfig
	store  *store.Store
	runner *runner.Runner
	cache  *opcache.Cache
	logger *slog.Logger
	now    func() time.Time

	// dbMu serializes etag checks with the writes they guard.
	dbMu sync.Mutex
	// idxMu serializes the duplicate check of CreateIndex with the insert.
	idxMu   sync.Mutex
	fieldMu sync.Mutex
	// fieldOps maps a field name to its running UpdateField operation.
	fieldOps map[string]string
}

type Option func(*Service)

// WithCache serves GetOperation through the finished-operation cache.
func WithCache(c *opcache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(cfg config.EmulatorConfig, st *store.Store, r *runner.Runner, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  st,
		runner: r,
		logger:   slog.Default().With("component", "admin-service"),
		now:      time.Now,
		fieldOps: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint is one RPC bound to its handler.
type Endpoint struct {
	Method *admin.Method
	Handle rpc.HandlerFunc
}

// Endpoints returns the handlers of every method of admin.Methods.
func (s *Service) Endpoints() []Endpoint {
	return []Endpoint{
		bind(adminService+"CreateIndex", s.CreateIndex),
		bind(adminService+"ListIndexes", s.ListIndexes),
		bind(adminService+"GetIndex", s.GetIndex),
		bind(adminService+"DeleteIndex", s.DeleteIndex),
		bind(adminService+"GetField", s.GetField),
		bind(adminService+"UpdateField", s.UpdateField),
		bind(adminService+"ListFields", s.ListFields),
		bind(adminService+"ExportDocuments", s.ExportDocuments),
		bind(adminService+"ImportDocuments", s.ImportDocuments),
		bind(adminService+"BulkDeleteDocuments", s.BulkDeleteDocuments),
		bind(adminService+"CreateDatabase", s.CreateDatabase),
		bind(adminService+"GetDatabase", s.GetDatabase),
		bind(adminService+"ListDatabases", s.ListDatabases),
		bind(adminService+"UpdateDatabase", s.UpdateDatabase),
		bind(adminService+"DeleteDatabase", s.DeleteDatabase),
		bind(lroService+"GetOperation", s.GetOperation),
		bind(lroService+"ListOperations", s.ListOperations),
		bind(lroService+"CancelOperation", s.CancelOperation),
		bind(lroService+"DeleteOperation", s.DeleteOperation),
		bind(locationService+"GetLocation", s.GetLocation),
		bind(locationService+"ListLocations", s.ListLocations),
	}
}

// Register adds every endpoint to srv.
func (s *Service) Register(srv *rpc.Server) {
	for _, e := range s.Endpoints() {
		srv.Register(e.Method.FullName, e.Handle)
	}
}

type request[T any] interface {
	*T
	proto.Validator
}

func bind[Req any, P request[Req], Resp any](fullName string, h func(context.Context, P) (Resp, error)) Endpoint {
	m, ok := admin.MethodByName(fullName)
	if !ok {
		panic("service: no binding for " + fullName)
	}
	return Endpoint{
		Method: m,
		Handle: func(ctx context.Context, raw json.RawMessage) (any, error) {
			req := P(new(Req))
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, req); err != nil {
					return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%s: decoding request: %v", m.ShortName(), err)
				}
			}
			if err := req.Validate(); err != nil {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "%s: %v", m.ShortName(), err)
			}
			resp, err := h(ctx, req)
			if err != nil {
				logger.FromContext(ctx).Debug("rpc rejected", "method", m.ShortName(), "error", err)
				return nil, err
			}
			return resp, nil
		},
	}
}

func (s *Service) checkProject(project string) error {
	if len(s.cfg.Projects) > 0 && !slices.Contains(s.cfg.Projects, project) {
		return apperrors.Newf(apperrors.ErrNotFound, "project %q not found", project)
	}
	return nil
}

// database returns the stored database of name, after checking its project.
func (s *Service) database(ctx context.Context, name resource.DatabaseName) (*proto.Database, error) {
	if err := s.checkProject(name.Project); err != nil {
		return nil, err
	}
	return s.store.GetDatabase(ctx, name.String())
}

func (s *Service) start(ctx context.Context, spec runner.Spec) (*proto.Operation, error) {
	spec.RequestID = logger.RequestID(ctx)
	op, err := s.runner.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("operation accepted", "operation", op.Name, "kind", spec.Kind)
	return op, nil
}
