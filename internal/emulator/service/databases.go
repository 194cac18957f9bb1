package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/runner"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

const defaultVersionRetention = proto.Duration(time.Hour)

// updatableDatabaseFields are the update mask paths UpdateDatabase accepts.
var updatableDatabaseFields = []string{
	"type",
	"concurrency_mode",
	"point_in_time_recovery_enablement",
	"app_engine_integration_mode",
	"delete_protection_state",
}

func (s *Service) CreateDatabase(ctx context.Context, req *proto.CreateDatabaseRequest) (*proto.Operation, error) {
	project, err := resource.ParseProjectName(req.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(project); err != nil {
		return nil, err
	}
	if err := resource.ValidateDatabaseID(req.DatabaseID); err != nil {
		return nil, err
	}
	db := req.Database.Clone()
	if db.LocationID == "" {
		db.LocationID = s.cfg.DefaultLocation
	} else if !s.hasLocation(db.LocationID) {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "location %q is not available", db.LocationID)
	}
	if db.Type == proto.DatabaseTypeUnspecified {
		db.Type = proto.DatabaseTypeFirestoreNative
	}
	if db.ConcurrencyMode == proto.ConcurrencyModeUnspecified {
		db.ConcurrencyMode = proto.ConcurrencyModePessimistic
	}
	if db.PointInTimeRecoveryEnablement == proto.PointInTimeRecoveryEnablementUnspecified {
		db.PointInTimeRecoveryEnablement = proto.PointInTimeRecoveryDisabled
	}
	if db.AppEngineIntegrationMode == proto.AppEngineIntegrationModeUnspecified {
		db.AppEngineIntegrationMode = proto.AppEngineIntegrationDisabled
	}
	if db.DeleteProtectionState == proto.DeleteProtectionStateUnspecified {
		db.DeleteProtectionState = proto.DeleteProtectionDisabled
	}
	retention := defaultVersionRetention
	db.VersionRetentionPeriod = &retention

	now := s.now()
	name := resource.DatabaseName{Project: project, Database: req.DatabaseID}
	db.Name = name.String()
	db.UID = uuid.NewString()
	db.CreateTime = proto.Timestamp(now)
	db.UpdateTime = proto.Timestamp(now)
	db.EarliestVersionTime = proto.Timestamp(now)
	db.KeyPrefix = strings.ReplaceAll(db.UID, "-", "")[:12]
	db.Etag = newEtag()

	if err := s.store.CreateDatabase(ctx, project, db); err != nil {
		return nil, err
	}
	s.logger.Info("database created", "database", db.Name, "location", db.LocationID)

	created := db.Clone()
	return s.start(ctx, runner.Spec{
		Kind:     "CreateDatabase",
		Database: db.Name,
		Metadata: &proto.CreateDatabaseMetadata{},
		Run: func(context.Context, *runner.Progress) (proto.Message, error) {
			return created, nil
		},
	})
}

func (s *Service) GetDatabase(ctx context.Context, req *proto.GetDatabaseRequest) (*proto.Database, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}
	return s.database(ctx, name)
}

func (s *Service) ListDatabases(ctx context.Context, req *proto.ListDatabasesRequest) (*proto.ListDatabasesResponse, error) {
	project, err := resource.ParseProjectName(req.Parent)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(project); err != nil {
		return nil, err
	}
	dbs, err := s.store.ListDatabases(ctx, project)
	if err != nil {
		return nil, err
	}
	return &proto.ListDatabasesResponse{Databases: dbs}, nil
}

func (s *Service) UpdateDatabase(ctx context.Context, req *proto.UpdateDatabaseRequest) (*proto.Operation, error) {
	name, err := resource.ParseDatabaseName(req.Database.Name)
	if err != nil {
		return nil, err
	}
	paths := updatableDatabaseFields
	if !req.UpdateMask.IsEmpty() {
		paths = req.UpdateMask.Paths
		for _, p := range paths {
			if !slices.Contains(updatableDatabaseFields, p) {
				return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "update_mask: field %q cannot be updated", p)
			}
		}
	}

	s.dbMu.Lock()
	current, err := s.database(ctx, name)
	if err != nil {
		s.dbMu.Unlock()
		return nil, err
	}
	if req.Database.Etag != "" && req.Database.Etag != current.Etag {
		s.dbMu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrAborted, "etag %q does not match the current etag of %s", req.Database.Etag, name)
	}
	updated := current.Clone()
	in := req.Database
	for _, p := range paths {
		switch p {
		case "type":
			updated.Type = in.Type
		case "concurrency_mode":
			updated.ConcurrencyMode = in.ConcurrencyMode
		case "point_in_time_recovery_enablement":
			updated.PointInTimeRecoveryEnablement = in.PointInTimeRecoveryEnablement
		case "app_engine_integration_mode":
			updated.AppEngineIntegrationMode = in.AppEngineIntegrationMode
		case "delete_protection_state":
			updated.DeleteProtectionState = in.DeleteProtectionState
		}
	}
	if updated.Type == proto.DatabaseTypeUnspecified || updated.ConcurrencyMode == proto.ConcurrencyModeUnspecified {
		s.dbMu.Unlock()
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "type and concurrency_mode cannot be cleared")
	}
	updated.UpdateTime = proto.Timestamp(s.now())
	updated.Etag = newEtag()
	err = s.store.UpdateDatabase(ctx, name.Project, updated)
	s.dbMu.Unlock()
	if err != nil {
		return nil, err
	}
	s.logger.Info("database updated", "database", updated.Name, "fields", paths)

	result := updated.Clone()
	return s.start(ctx, runner.Spec{
		Kind:     "UpdateDatabase",
		Database: updated.Name,
		Metadata: &proto.UpdateDatabaseMetadata{},
		Run: func(context.Context, *runner.Progress) (proto.Message, error) {
			return result, nil
		},
	})
}

// DeleteDatabase removes the database with everything in it before the
// operation starts, so the operation record outlives the purge.
func (s *Service) DeleteDatabase(ctx context.Context, req *proto.DeleteDatabaseRequest) (*proto.Operation, error) {
	name, err := resource.ParseDatabaseName(req.Name)
	if err != nil {
		return nil, err
	}

	s.dbMu.Lock()
	current, err := s.database(ctx, name)
	if err != nil {
		s.dbMu.Unlock()
		return nil, err
	}
	if req.Etag != "" && req.Etag != current.Etag {
		s.dbMu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrAborted, "etag %q does not match the current etag of %s", req.Etag, name)
	}
	if current.DeleteProtectionState == proto.DeleteProtectionEnabled {
		s.dbMu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrFailedPrecondition,
			"database %s has delete protection enabled; disable it with UpdateDatabase first", name)
	}
	err = s.store.DeleteDatabase(ctx, name.String())
	s.dbMu.Unlock()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateDatabase(ctx, name.String()); err != nil {
			s.logger.Warn("operation cache invalidation failed", "database", name.String(), "error", err)
		}
	}
	s.logger.Info("database deleted", "database", name.String())

	return s.start(ctx, runner.Spec{
		Kind:     "DeleteDatabase",
		Database: name.String(),
		Metadata: &proto.DeleteDatabaseMetadata{},
		Run: func(context.Context, *runner.Progress) (proto.Message, error) {
			return current, nil
		},
	})
}

func (s *Service) hasLocation(id string) bool {
	if len(s.cfg.Locations) == 0 {
		return id == s.cfg.DefaultLocation
	}
	for _, l := range s.cfg.Locations {
		if l.ID == id {
			return true
		}
	}
	return false
}

func newEtag() string {
	return "W/\"" + strings.ToLower(ulid.Make().String()) + "\""
}
