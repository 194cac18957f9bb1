package admin

import (
	"context"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// GetLocation fetches one location.
func (c *Client) GetLocation(ctx context.Context, req *proto.GetLocationRequest) (*proto.Location, error) {
	resp := &proto.Location{}
	if err := c.invoke(ctx, methodGetLocation, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListLocations returns one page of the locations a project can use.
func (c *Client) ListLocations(ctx context.Context, req *proto.ListLocationsRequest) (*proto.ListLocationsResponse, error) {
	resp := &proto.ListLocationsResponse{}
	if err := c.invoke(ctx, methodListLocations, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListLocationsAll iterates over every location.
func (c *Client) ListLocationsAll(ctx context.Context, req *proto.ListLocationsRequest) iter.Seq2[*proto.Location, error] {
	r := *req
	return paginate(ctx, func(ctx context.Context, token string) ([]*proto.Location, string, error) {
		r.PageToken = token
		resp, err := c.ListLocations(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return resp.Locations, resp.NextPageToken, nil
	})
}
