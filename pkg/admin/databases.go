package admin

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// CreateDatabase starts creating a database.
func (c *Client) CreateDatabase(ctx context.Context, req *proto.CreateDatabaseRequest) (*CreateDatabaseOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodCreateDatabase, req.Parent, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Database, proto.CreateDatabaseMetadata](c, lro), nil
}

// CreateDatabaseOperation resumes a CreateDatabase operation by name.
func (c *Client) CreateDatabaseOperation(name string) *CreateDatabaseOperation {
	return newOperation[proto.Database, proto.CreateDatabaseMetadata](c, &proto.Operation{Name: name})
}

// GetDatabase fetches one database.
func (c *Client) GetDatabase(ctx context.Context, req *proto.GetDatabaseRequest) (*proto.Database, error) {
	resp := &proto.Database{}
	if err := c.invoke(ctx, methodGetDatabase, req.Name, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListDatabases lists every database of a project.
func (c *Client) ListDatabases(ctx context.Context, req *proto.ListDatabasesRequest) (*proto.ListDatabasesResponse, error) {
	resp := &proto.ListDatabasesResponse{}
	if err := c.invoke(ctx, methodListDatabases, req.Parent, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateDatabase starts updating database settings.
func (c *Client) UpdateDatabase(ctx context.Context, req *proto.UpdateDatabaseRequest) (*UpdateDatabaseOperation, error) {
	name := ""
	if req.Database != nil {
		name = req.Database.Name
	}
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodUpdateDatabase, name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Database, proto.UpdateDatabaseMetadata](c, lro), nil
}

// UpdateDatabaseOperation resumes an UpdateDatabase operation by name.
func (c *Client) UpdateDatabaseOperation(name string) *UpdateDatabaseOperation {
	return newOperation[proto.Database, proto.UpdateDatabaseMetadata](c, &proto.Operation{Name: name})
}

// DeleteDatabase starts deleting a database.
func (c *Client) DeleteDatabase(ctx context.Context, req *proto.DeleteDatabaseRequest) (*DeleteDatabaseOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodDeleteDatabase, req.Name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Database, proto.DeleteDatabaseMetadata](c, lro), nil
}

// DeleteDatabaseOperation resumes a DeleteDatabase operation by name.
func (c *Client) DeleteDatabaseOperation(name string) *DeleteDatabaseOperation {
	return newOperation[proto.Database, proto.DeleteDatabaseMetadata](c, &proto.Operation{Name: name})
}
