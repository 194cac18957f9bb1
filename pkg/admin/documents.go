package admin

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// ExportDocuments starts exporting documents to storage.
func (c *Client) ExportDocuments(ctx context.Context, req *proto.ExportDocumentsRequest) (*ExportDocumentsOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodExportDocuments, req.Name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.ExportDocumentsResponse, proto.ExportDocumentsMetadata](c, lro), nil
}

// ExportDocumentsOperation resumes an ExportDocuments operation by name.
func (c *Client) ExportDocumentsOperation(name string) *ExportDocumentsOperation {
	return newOperation[proto.ExportDocumentsResponse, proto.ExportDocumentsMetadata](c, &proto.Operation{Name: name})
}

// ImportDocuments starts importing documents from a previous export.
func (c *Client) ImportDocuments(ctx context.Context, req *proto.ImportDocumentsRequest) (*ImportDocumentsOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodImportDocuments, req.Name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.Empty, proto.ImportDocumentsMetadata](c, lro), nil
}

// ImportDocumentsOperation resumes an ImportDocuments operation by name.
func (c *Client) ImportDocumentsOperation(name string) *ImportDocumentsOperation {
	return newOperation[proto.Empty, proto.ImportDocumentsMetadata](c, &proto.Operation{Name: name})
}

// BulkDeleteDocuments starts deleting documents of whole collections.
func (c *Client) BulkDeleteDocuments(ctx context.Context, req *proto.BulkDeleteDocumentsRequest) (*BulkDeleteDocumentsOperation, error) {
	lro := &proto.Operation{}
	if err := c.invoke(ctx, methodBulkDeleteDocuments, req.Name, req, lro); err != nil {
		return nil, err
	}
	return newOperation[proto.BulkDeleteDocumentsResponse, proto.BulkDeleteDocumentsMetadata](c, lro), nil
}

// BulkDeleteDocumentsOperation resumes a BulkDeleteDocuments operation by
// name.
func (c *Client) BulkDeleteDocumentsOperation(name string) *BulkDeleteDocumentsOperation {
	return newOperation[proto.BulkDeleteDocumentsResponse, proto.BulkDeleteDocumentsMetadata](c, &proto.Operation{Name: name})
}
