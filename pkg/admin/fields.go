package admin

import (
	"context"
	"iter"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// GetField fetches the effective configuration of a field.
func (c *Client) GetField(ctx context.Context, req *proto.GetFieldRequest) (*proto.Field, error) {
	resp := &proto.Field{}
	if err := c.invoke(ctx, methodGetField, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateField starts changing the single-field index or TTL configuration
// of a field.
func (c *Client) UpdateField(ctx context.Context, req *proto.UpdateFieldRequest) (*UpdateFieldOperation, error) {
	name := ""
	if req.Field != nil {
		name = req.Field.Name
	}
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodUpdateField, name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Field, proto.FieldOperationMetadata](c, lro), nil
}

// UpdateFieldOperation resumes an UpdateField operation by name.
func (c *Client) UpdateFieldOperation(name string) *UpdateFieldOperation {
	return newOperation[proto.Field, proto.FieldOperationMetadata](c, &proto.Operation{Name: name})
}

// ListFields returns one page of fields with explicit configuration.
func (c *Client) ListFields(ctx context.Context, req *proto.ListFieldsRequest) (*proto.ListFieldsResponse, error) {
	resp := &proto.ListFieldsResponse{}
	if err := c.invoke(ctx, methodListFields, req.Parent, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListFieldsAll iterates over every matching field.
func (c *Client) ListFieldsAll(ctx context.Context, req *proto.ListFieldsRequest) iter.Seq2[*proto.Field, error] {
	r := *req
	return paginate(ctx, func(ctx context.Context, token string) ([]*proto.Field, string, error) {
		r.PageToken = token
		resp, err := c.ListFields(ctx, &r)
		if err != nil {
			return nil, "", err
		}
		return resp.Fields, resp.NextPageToken, nil
	})
}
