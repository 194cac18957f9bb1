package service

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (s *Service) operationName(name string) (resource.OperationName, error) {
	op, err := resource.ParseOperationName(name)
	if err != nil {
		return op, err
	}
	return op, s.checkProject(op.Project)
}

func (s *Service) GetOperation(ctx context.Context, req *proto.GetOperationRequest) (*proto.Operation, error) {
	name, err := s.operationName(req.Name)
	if err != nil {
		return nil, err
	}
	load := func(ctx context.Context) (*proto.Operation, error) {
		return s.store.GetOperation(ctx, name.String())
	}
	if s.cache == nil {
		return load(ctx)
	}
	op, _, err := s.cache.GetOrLoad(ctx, name.String(), load)
	return op, err
}

func (s *Service) ListOperations(ctx context.Context, req *proto.ListOperationsRequest) (*proto.ListOperationsResponse, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(name.Project); err != nil {
		return nil, err
	}
	done, filtered, err := parseDoneFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	ops, err := s.store.ListOperations(ctx, name.String())
	if err != nil {
		return nil, err
	}
	if filtered {
		kept := ops[:0]
		for _, op := range ops {
			if op.Done == done {
				kept = append(kept, op)
			}
		}
		ops = kept
	}
	items, next, err := paginate(s, ops, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}
	return &proto.ListOperationsResponse{Operations: items, NextPageToken: next}, nil
}

// parseDoneFilter accepts "", "done=true" and "done=false".
func parseDoneFilter(filter string) (done, ok bool, err error) {
	filter = strings.Join(strings.Fields(filter), "")
	if filter == "" {
		return false, false, nil
	}
	value, found := strings.CutPrefix(filter, "done=")
	if found {
		if done, err = strconv.ParseBool(value); err == nil {
			return done, true, nil
		}
	}
	return false, false, apperrors.Newf(apperrors.ErrInvalidArgument, "unsupported filter %q; use done=true or done=false", filter)
}

func (s *Service) CancelOperation(ctx context.Context, req *proto.CancelOperationRequest) (*proto.Empty, error) {
	name, err := s.operationName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.runner.Cancel(ctx, name.String()); err != nil {
		return nil, err
	}
	return &proto.Empty{}, nil
}

// DeleteOperation forgets an operation. A job still running keeps running;
// its result is no longer recorded.
func (s *Service) DeleteOperation(ctx context.Context, req *proto.DeleteOperationRequest) (*proto.Empty, error) {
	name, err := s.operationName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteOperation(ctx, name.String()); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, name.String()); err != nil {
			s.logger.Warn("operation cache invalidation failed", "operation", name.String(), "error", err)
		}
	}
	return &proto.Empty{}, nil
}
