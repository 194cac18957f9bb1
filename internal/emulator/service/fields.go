package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

const (
	filterExplicitIndexes = "indexConfig.usesAncestorConfig:false"
	filterTTL             = "ttlConfig:*"
)

// builtinIndexes is the single-field configuration of a database whose
// default field was never changed: ascending, descending and array-contains
// indexes at collection scope.
func builtinIndexes(fieldPath string) []*proto.Index {
	field := func(f proto.IndexField) *proto.Index {
		f.FieldPath = fieldPath
		return &proto.Index{
			QueryScope: proto.QueryScopeCollection,
			Fields:     []*proto.IndexField{&f},
			State:      proto.IndexStateReady,
		}
	}
	return []*proto.Index{
		field(proto.IndexField{Order: proto.OrderAscending}),
		field(proto.IndexField{Order: proto.OrderDescending}),
		field(proto.IndexField{ArrayConfig: proto.ArrayConfigContains}),
	}
}

func defaultFieldOf(name resource.FieldName) resource.FieldName {
	return name.CollectionGroupName().DatabaseName().
		CollectionGroup(resource.DefaultCollectionGroup).Field(resource.DefaultField)
}

// ancestorConfig returns the index configuration name inherits: that of the
// database default field, retargeted to name's field path.
func (s *Service) ancestorConfig(ctx context.Context, name resource.FieldName) (*proto.IndexConfig, error) {
	if name.IsDefault() {
		return &proto.IndexConfig{Indexes: builtinIndexes(resource.DefaultField)}, nil
	}
	ancestor := defaultFieldOf(name)
	indexes := builtinIndexes(name.Field)
	stored, err := s.store.GetField(ctx, ancestor.String())
	switch {
	case err == nil && stored.IndexConfig != nil:
		indexes = indexes[:0]
		for _, idx := range stored.IndexConfig.Indexes {
			c := idx.Clone()
			for _, f := range c.Fields {
				f.FieldPath = name.Field
			}
			indexes = append(indexes, c)
		}
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return &proto.IndexConfig{
		Indexes:            indexes,
		UsesAncestorConfig: true,
		AncestorField:      ancestor.String(),
	}, nil
}

// effectiveField returns the configuration in force for name and whether a
// record for it is stored.
func (s *Service) effectiveField(ctx context.Context, name resource.FieldName) (*proto.Field, bool, error) {
	stored, err := s.store.GetField(ctx, name.String())
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}
	explicit := err == nil
	if !explicit {
		stored = &proto.Field{Name: name.String()}
	}
	if inheritsIndexes(name, stored) {
		cfg, err := s.ancestorConfig(ctx, name)
		if err != nil {
			return nil, false, err
		}
		stored.IndexConfig = cfg
	}
	return stored, explicit, nil
}

// inheritsIndexes reports whether the index configuration of f follows the
// ancestor. Records being reverted keep their stored configuration until the
// revert completes.
func inheritsIndexes(name resource.FieldName, f *proto.Field) bool {
	if f.IndexConfig == nil {
		return true
	}
	return !name.IsDefault() && f.IndexConfig.UsesAncestorConfig && !f.IndexConfig.Reverting
}

func (s *Service) GetField(ctx context.Context, req *proto.GetFieldRequest) (*proto.Field, error) {
	name, err := resource.ParseFieldName(req.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name.CollectionGroupName().DatabaseName()); err != nil {
		return nil, err
	}
	f, _, err := s.effectiveField(ctx, name)
	return f, err
}

func (s *Service) UpdateField(ctx context.Context, req *proto.UpdateFieldRequest) (*proto.Operation, error) {
	name, err := resource.ParseFieldName(req.Field.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, name.CollectionGroupName().DatabaseName()); err != nil {
		return nil, err
	}
	updateIndexes, updateTTL := true, true
	if !req.UpdateMask.IsEmpty() {
		updateIndexes = req.UpdateMask.Contains("index_config")
		updateTTL = req.UpdateMask.Contains("ttl_config")
	}
	if updateTTL && req.Field.TtlConfig != nil && name.IsDefault() {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "a TTL policy cannot be set on the database default field")
	}
	database := name.CollectionGroupName().DatabaseName().String()

	s.fieldMu.Lock()
	defer s.fieldMu.Unlock()

	if running, busy := s.fieldOps[name.String()]; busy {
		return nil, apperrors.Newf(apperrors.ErrFailedPrecondition,
			"field %s is already being updated by operation %s", name, running)
	}
	prev, explicit, err := s.effectiveField(ctx, name)
	if err != nil {
		return nil, err
	}
	next := prev.Clone()
	meta := &proto.FieldOperationMetadata{Field: name.String()}
	inherited := !explicit || prev.IndexConfig.UsesAncestorConfig
	if name.IsDefault() {
		inherited = !explicit
	}

	if updateIndexes {
		var target *proto.IndexConfig
		if req.Field.IndexConfig == nil {
			if target, err = s.ancestorConfig(ctx, name); err != nil {
				return nil, err
			}
			target.Reverting = explicit && !inherited
			inherited = true
		} else {
			if target, err = singleFieldConfig(name.Field, req.Field.IndexConfig.Indexes, prev.IndexConfig); err != nil {
				return nil, err
			}
			inherited = false
		}
		meta.IndexConfigDeltas = indexDeltas(prev.IndexConfig, target)
		next.IndexConfig = target
	}
	if updateTTL {
		switch {
		case req.Field.TtlConfig == nil && prev.TtlConfig != nil:
			meta.TtlConfigDelta = &proto.TtlConfigDelta{ChangeType: proto.ChangeTypeRemove}
			next.TtlConfig = nil
		case req.Field.TtlConfig != nil && prev.TtlConfig == nil:
			meta.TtlConfigDelta = &proto.TtlConfigDelta{ChangeType: proto.ChangeTypeAdd}
			next.TtlConfig = &proto.TtlConfig{State: proto.TtlStateCreating}
		}
	}
	if err := s.store.PutField(ctx, database, name.Collection, next); err != nil {
		return nil, err
	}

	passes := 0
	for _, d := range meta.IndexConfigDeltas {
		if d.ChangeType == proto.ChangeTypeAdd {
			passes++
		}
	}
	if meta.TtlConfigDelta != nil && meta.TtlConfigDelta.ChangeType == proto.ChangeTypeAdd {
		passes++
	}
	dropRecord := inherited && next.TtlConfig == nil

	restore := func(ctx context.Context) {
		var err error
		if explicit {
			err = s.store.PutField(ctx, database, name.Collection, prev)
		} else {
			err = s.store.DeleteField(ctx, name.String())
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("restoring field configuration failed", "field", name.String(), "error", err)
		}
	}

	op, err := s.start(ctx, runner.Spec{
		Kind:     "UpdateField",
		Database: database,
		Metadata: meta,
		Run: func(ctx context.Context, p *runner.Progress) (proto.Message, error) {
			if err := s.scanDocuments(ctx, p, database, []string{name.Collection}, passes); err != nil {
				return nil, err
			}
			if err := p.Finalizing(); err != nil {
				return nil, err
			}
			final := next.Clone()
			final.IndexConfig.Reverting = false
			for _, idx := range final.IndexConfig.Indexes {
				idx.State = proto.IndexStateReady
			}
			if final.TtlConfig != nil {
				final.TtlConfig.State = proto.TtlStateActive
			}

			s.fieldMu.Lock()
			defer s.fieldMu.Unlock()
			delete(s.fieldOps, name.String())
			if dropRecord {
				if err := s.store.DeleteField(ctx, name.String()); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
					return nil, err
				}
			} else if err := s.store.PutField(ctx, database, name.Collection, final); err != nil {
				return nil, err
			}
			return final, nil
		},
		Rollback: func(ctx context.Context) {
			s.fieldMu.Lock()
			defer s.fieldMu.Unlock()
			delete(s.fieldOps, name.String())
			restore(ctx)
		},
	})
	if err != nil {
		restore(ctx)
		return nil, err
	}
	s.fieldOps[name.String()] = op.Name
	return op, nil
}

// singleFieldConfig normalizes the requested single-field indexes of field.
// Indexes already present in prev keep their state; new ones start CREATING.
func singleFieldConfig(field string, requested []*proto.Index, prev *proto.IndexConfig) (*proto.IndexConfig, error) {
	out := &proto.IndexConfig{Indexes: make([]*proto.Index, 0, len(requested))}
	for _, r := range requested {
		idx := r.Clone()
		if len(idx.Fields) != 1 {
			return nil, apperrors.New(apperrors.ErrInvalidArgument, "single-field indexes need exactly one field")
		}
		if p := idx.Fields[0].FieldPath; p != "" && p != field {
			return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "index field path %q does not match field %q", p, field)
		}
		idx.Fields[0].FieldPath = field
		if idx.QueryScope == proto.QueryScopeUnspecified {
			idx.QueryScope = proto.QueryScopeCollection
		}
		idx.Name = ""
		idx.State = proto.IndexStateCreating
		for _, o := range out.Indexes {
			if o.Equivalent(idx) {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "duplicate single-field index %s", idx.Summary())
			}
		}
		if prev != nil {
			for _, p := range prev.Indexes {
				if p.Equivalent(idx) {
					idx.State = p.State
				}
			}
		}
		out.Indexes = append(out.Indexes, idx)
	}
	return out, nil
}

// indexDeltas lists the indexes next adds to and removes from prev.
func indexDeltas(prev, next *proto.IndexConfig) []*proto.IndexConfigDelta {
	contains := func(cfg *proto.IndexConfig, idx *proto.Index) bool {
		if cfg == nil {
			return false
		}
		for _, c := range cfg.Indexes {
			if c.Equivalent(idx) {
				return true
			}
		}
		return false
	}
	var deltas []*proto.IndexConfigDelta
	for _, idx := range next.Indexes {
		if !contains(prev, idx) {
			deltas = append(deltas, &proto.IndexConfigDelta{ChangeType: proto.ChangeTypeAdd, Index: idx.Clone()})
		}
	}
	if prev != nil {
		for _, idx := range prev.Indexes {
			if !contains(next, idx) {
				deltas = append(deltas, &proto.IndexConfigDelta{ChangeType: proto.ChangeTypeRemove, Index: idx.Clone()})
			}
		}
	}
	return deltas
}

func (s *Service) ListFields(ctx context.Context, req *proto.ListFieldsRequest) (*proto.ListFieldsResponse, error) {
	parent, err := resource.ParseCollectionGroupName(req.Parent, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.database(ctx, parent.DatabaseName()); err != nil {
		return nil, err
	}
	filter := strings.Join(strings.Fields(req.Filter), "")
	switch filter {
	case "", filterExplicitIndexes, filterTTL:
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument,
			"unsupported filter %q; use %q or %q", req.Filter, filterExplicitIndexes, filterTTL)
	}
	collection := parent.Collection
	if parent.IsWildcard() {
		collection = ""
	}
	stored, err := s.store.ListFields(ctx, parent.DatabaseName().String(), collection)
	if err != nil {
		return nil, err
	}
	fields := make([]*proto.Field, 0, len(stored))
	for _, f := range stored {
		name, err := resource.ParseFieldName(f.Name)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInternal, "stored field %q: %v", f.Name, err)
		}
		if inheritsIndexes(name, f) {
			if f.IndexConfig, err = s.ancestorConfig(ctx, name); err != nil {
				return nil, err
			}
		}
		switch filter {
		case filterExplicitIndexes:
			if f.IndexConfig.UsesAncestorConfig {
				continue
			}
		case filterTTL:
			if f.TtlConfig == nil {
				continue
			}
		}
		fields = append(fields, f)
	}
	items, next, err := paginate(s, fields, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}
	return &proto.ListFieldsResponse{Fields: items, NextPageToken: next}, nil
}
