package service

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

// locations returns the configured locations of project. Without a
// configured list, the default location is the only one.
func (s *Service) locations(project string) []*proto.Location {
	cfgs := s.cfg.Locations
	if len(cfgs) == 0 && s.cfg.DefaultLocation != "" {
		cfgs = append(cfgs, config.LocationConfig{ID: s.cfg.DefaultLocation})
	}
	out := make([]*proto.Location, 0, len(cfgs))
	for _, l := range cfgs {
		out = append(out, &proto.Location{
			Name:        resource.LocationPath(project, l.ID),
			LocationID:  l.ID,
			DisplayName: l.DisplayName,
			Labels:      l.Labels,
			Metadata:    proto.MustAny(&proto.LocationMetadata{}),
		})
	}
	return out
}

func (s *Service) ListLocations(ctx context.Context, req *proto.ListLocationsRequest) (*proto.ListLocationsResponse, error) {
	project, err := resource.ParseProjectName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(project); err != nil {
		return nil, err
	}
	locs := s.locations(project)
	if f := strings.TrimSpace(req.Filter); f != "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "unsupported filter %q", f)
	}
	items, next, err := paginate(s, locs, req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}
	return &proto.ListLocationsResponse{Locations: items, NextPageToken: next}, nil
}

func (s *Service) GetLocation(ctx context.Context, req *proto.GetLocationRequest) (*proto.Location, error) {
	name, err := resource.ParseLocationName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(name.Project); err != nil {
		return nil, err
	}
	for _, l := range s.locations(name.Project) {
		if l.LocationID == name.Location {
			return l, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrNotFound, "location %s not found", name)
}
