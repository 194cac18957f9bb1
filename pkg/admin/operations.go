package admin

import (
	"context"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// GetOperation fetches the latest state of an operation.
func (c *Client) GetOperation(ctx context.Context, req *proto.GetOperationRequest) (*proto.Operation, error) {
	resp := &proto.Operation{}
	if err := c.invoke(ctx, methodGetOperation, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListOperations returns one page of operations of a database.
func (c *Client) ListOperations(ctx context.Context, req *proto.ListOperationsRequest) (*proto.ListOperationsResponse, error) {
	resp := &proto.ListOperationsResponse{}
	if err := c.invoke(ctx, methodListOperations, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListOperationsAll iterates over every matching operation.
func (c *Client) ListOperationsAll(ctx context.Context, req *proto.ListOperationsRequest) iter.Seq2[*proto.Operation, error] {
	r := *req
	return paginate(ctx, func(ctx context.Context, token string) ([]*proto.Operation, string, error) {
		r.PageToken = token
		resp, err := c.ListOperations(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return resp.Operations, resp.NextPageToken, nil
	})
}

// CancelOperation asks the service to stop an operation.
func (c *Client) CancelOperation(ctx context.Context, req *proto.CancelOperationRequest) error {
	return c.invoke(ctx, methodCancelOperation, req.Name, req, &proto.Empty{})
}

// DeleteOperation forgets an operation.
func (c *Client) DeleteOperation(ctx context.Context, req *proto.DeleteOperationRequest) error {
	return c.invoke(ctx, methodDeleteOperation, req.Name, req, &proto.Empty{})
}
