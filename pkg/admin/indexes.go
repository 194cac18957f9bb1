package admin

import (
	"context"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// CreateIndex starts building a composite index.
func (c *Client) CreateIndex(ctx context.Context, req *proto.CreateIndexRequest) (*CreateIndexOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodCreateIndex, req.Parent, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Index, proto.IndexOperationMetadata](c, lro), nil
}

// CreateIndexOperation resumes a CreateIndex operation by name.
func (c *Client) CreateIndexOperation(name string) *CreateIndexOperation {
	return newOperation[proto.Index, proto.IndexOperationMetadata](c, &proto.Operation{Name: name})
}

// ListIndexes returns one page of composite indexes.
func (c *Client) ListIndexes(ctx context.Context, req *proto.ListIndexesRequest) (*proto.ListIndexesResponse, error) {
	resp := &proto.ListIndexesResponse{}
	if err := c.invoke(ctx, methodListIndexes, req.Parent, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListIndexesAll iterates over every index, fetching pages as needed.
func (c *Client) ListIndexesAll(ctx context.Context, req *proto.ListIndexesRequest) iter.Seq2[*proto.Index, error] {
	r := *req
	return paginate(ctx, func(ctx context.Context, token string) ([]*proto.Index, string, error) {
		r.PageToken = token
		resp, err := c.ListIndexes(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return resp.Indexes, resp.NextPageToken, nil
	})
}

// GetIndex fetches one composite index.
func (c *Client) GetIndex(ctx context.Context, req *proto.GetIndexRequest) (*proto.Index, error) {
	resp := &proto.Index{}
	if err := c.invoke(ctx, methodGetIndex, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteIndex deletes a composite index.
func (c *Client) DeleteIndex(ctx context.Context, req *proto.DeleteIndexRequest) error {
	return c.invoke(ctx, methodDeleteIndex, req.Name, req, &proto.Empty{})
}
