package service

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

// documentNameField is the field path of the document key.
const documentNameField = "__name__"

func (s *Service) CreateIndex(ctx context.Context, req *proto.CreateIndexRequest) (*proto.Operation, error) {
	parent, err := resource.ParseCollectionGroupName(req.Parent, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, parent.DatabaseName()); err != nil {
		return nil, err
	}
	idx := req.Index.Clone()
	if err := checkIndexDefinition(idx); err != nil {
		return nil, err
	}
	if idx.QueryScope == proto.QueryScopeUnspecified {
		idx.QueryScope = proto.QueryScopeCollection
	}
	database := parent.DatabaseName().String()

	s.idxMu.Lock()
	existing, err := s.store.ListIndexes(ctx, database, parent.Collection)
	if err != nil {
		s.idxMu.Unlock()
		return nil, err
	}
	for _, e := range existing {
		if e.Equivalent(idx) {
			s.idxMu.Unlock()
			return nil, apperrors.Newf(apperrors.ErrAlreadyExists, "index already exists: %s", e.Name)
		}
	}
	idx.Name = parent.Index(newIndexID()).String()
	idx.State = proto.IndexStateCreating
	err = s.store.CreateIndex(ctx, database, parent.Collection, idx)
	s.idxMu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("index created", "index", idx.Name, "definition", idx.Summary())

	collection := parent.Collection
	return s.start(ctx, runner.Spec{
		Kind:     "CreateIndex",
		Database: database,
		Metadata: &proto.IndexOperationMetadata{Index: idx.Name},
		Run: func(ctx context.Context, p *runner.Progress) (proto.Message, error) {
			if err := s.scanDocuments(ctx, p, database, []string{collection}, 1); err != nil {
				return nil, err
			}
			if err := p.Finalizing(); err != nil {
				return nil, err
			}
			built := idx.Clone()
			built.State = proto.IndexStateReady
			if err := s.store.UpdateIndex(ctx, database, collection, built); err != nil {
				return nil, err
			}
			return built, nil
		},
		Rollback: func(ctx context.Context) {
			if err := s.store.DeleteIndex(ctx, idx.Name); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				s.logger.Error("removing unbuilt index failed", "index", idx.Name, "error", err)
			}
		},
	})
}

// checkIndexDefinition applies the composite index rules that
// proto.Index.Validate leaves to the service.
func checkIndexDefinition(idx *proto.Index) error {
	seen := make(map[string]bool, len(idx.Fields))
	for i, f := range idx.Fields {
		if seen[f.FieldPath] {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "field %q appears more than once", f.FieldPath)
		}
		seen[f.FieldPath] = true
		if f.FieldPath == documentNameField && i != len(idx.Fields)-1 {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "%s may only be the last field of an index", documentNameField)
		}
		if f.FieldPath == documentNameField && f.Order == proto.OrderUnspecified {
			return apperrors.Newf(apperrors.ErrInvalidArgument, "%s must be ordered", documentNameField)
		}
	}
	return nil
}

// newIndexID returns an opaque, time-ordered index ID.
func newIndexID() string {
	return "CI" + strings.ToLower(ulid.Make().String())
}

// scanDocuments walks the documents of collections, reporting passes units
// of work per document, as an index build or backfill does.
func (s *Service) scanDocuments(ctx context.Context, p *runner.Progress, database string, collections []string, passes int) error {
	docs, err := s.store.ListDocuments(ctx, database, collections)
	if err != nil {
		return err
	}
	var bytes int64
	for i := range docs {
		bytes += docs[i].Size()
	}
	if passes < 1 {
		passes = 1
	}
	p.Estimate(int64(len(docs)*passes), bytes*int64(passes))
	for pass := 0; pass < passes; pass++ {
		for i := range docs {
			if err := p.Advance(1, docs[i].Size()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) ListIndexes(ctx context.Context, req *proto.ListIndexesRequest) (*proto.ListIndexesResponse, error) {
	parent, err := resource.ParseCollectionGroupName(req.Parent, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, parent.DatabaseName()); err != nil {
		return nil, err
	}
	state, err := parseIndexFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	collection := parent.Collection
	if parent.IsWildcard() {
		collection = ""
	}
	all, err := s.store.ListIndexes(ctx, parent.DatabaseName().String(), collection)
	if err != nil {
		return nil, err
	}
	matched := all[:0]
	for _, idx := range all {
		if state == proto.IndexStateUnspecified || idx.State == state {
			matched = append(matched, idx)
		}
	}
	items, next, err := paginate(s, matched, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}
	return &proto.ListIndexesResponse{Indexes: items, NextPageToken: next}, nil
}

// parseIndexFilter accepts "" or "state=<STATE>".
func parseIndexFilter(filter string) (proto.IndexState, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return proto.IndexStateUnspecified, nil
	}
	key, value, ok := strings.Cut(filter, "=")
	if !ok || strings.TrimSpace(key) != "state" {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "unsupported filter %q", filter)
	}
	state, err := proto.ParseIndexState(strings.TrimSpace(value))
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidArgument, "unsupported filter %q: %v", filter, err)
	}
	return state, nil
}

func (s *Service) GetIndex(ctx context.Context, req *proto.GetIndexRequest) (*proto.Index, error) {
	name, err := resource.ParseIndexName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(name.Project); err != nil {
		return nil, err
	}
	return s.store.GetIndex(ctx, name.String())
}

func (s *Service) DeleteIndex(ctx context.Context, req *proto.DeleteIndexRequest) (*proto.Empty, error) {
	name, err := resource.ParseIndexName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(name.Project); err != nil {
		return nil, err
	}
	if err := s.store.DeleteIndex(ctx, name.String()); err != nil {
		return nil, err
	}
	s.logger.Info("index deleted", "index", name.String())
	return &proto.Empty{}, nil
}
