package admin

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
)

// Polling schedule of Operation.Wait.
const (
	pollInitial    = 500 * time.Millisecond
	pollMax        = 5 * time.Second
	pollMultiplier = 1.5
)

// Operation is a handle on a long-running operation whose response is an R
// and whose metadata is an M. R and M are message types of pkg/proto, e.g.
// Operation[proto.Index, proto.IndexOperationMetadata].
type Operation[R, M any] struct {
	client *Client

	mu  sync.Mutex
	lro *proto.Operation
}

// Handles returned by the methods that start operations.
type (
	CreateIndexOperation         = Operation[proto.Index, proto.IndexOperationMetadata]
	UpdateFieldOperation         = Operation[proto.Field, proto.FieldOperationMetadata]
	ExportDocumentsOperation     = Operation[proto.ExportDocumentsResponse, proto.ExportDocumentsMetadata]
	ImportDocumentsOperation     = Operation[proto.Empty, proto.ImportDocumentsMetadata]
	BulkDeleteDocumentsOperation = Operation[proto.BulkDeleteDocumentsResponse, proto.BulkDeleteDocumentsMetadata]
	CreateDatabaseOperation      = Operation[proto.Database, proto.CreateDatabaseMetadata]
	UpdateDatabaseOperation      = Operation[proto.Database, proto.UpdateDatabaseMetadata]
	DeleteDatabaseOperation      = Operation[proto.Database, proto.DeleteDatabaseMetadata]
)

func newOperation[R, M any](c *Client, lro *proto.Operation) *Operation[R, M] {
	return &Operation[R, M]{client: c, lro: lro}
}

// Name returns the server-assigned operation name.
func (o *Operation[R, M]) Name() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lro.Name
}

// Done reports whether the last known state is final.
func (o *Operation[R, M]) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lro.Done
}

// Raw returns a copy of the last known operation.
func (o *Operation[R, M]) Raw() *proto.Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lro.Clone()
}

// Metadata decodes the last known metadata. It returns nil when the server
// has not reported any.
func (o *Operation[R, M]) Metadata() (*M, error) {
	o.mu.Lock()
	meta := o.lro.Metadata
	o.mu.Unlock()
	if meta == nil {
		return nil, nil
	}
	m := new(M)
	if err := unpack(meta, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Poll fetches the latest state once. It returns the response when the
// operation has succeeded, its error when it has failed, and nil, nil while
// it is still running.
func (o *Operation[R, M]) Poll(ctx context.Context) (*R, error) {
	if o.Done() {
		return o.result()
	}
	latest, err := o.client.GetOperation(ctx, &proto.GetOperationRequest{Name: o.Name()})
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.lro = latest
	o.mu.Unlock()
	if !latest.Done {
		return nil, nil
	}
	return o.result()
}

// Wait polls until the operation finishes or ctx ends.
func (o *Operation[R, M]) Wait(ctx context.Context) (*R, error) {
	backoff := resilience.Backoff{Initial: pollInitial, Max: pollMax, Multiplier: pollMultiplier}
	for {
		resp, err := o.Poll(ctx)
		if err != nil || o.Done() {
			return resp, err
		}
		if err := backoff.Sleep(ctx); err != nil {
			return nil, err
		}
	}
}

// Cancel asks the service to stop the operation. Poll or Wait observe the
// outcome.
func (o *Operation[R, M]) Cancel(ctx context.Context) error {
	return o.client.CancelOperation(ctx, &proto.CancelOperationRequest{Name: o.Name()})
}

// Delete removes the operation record from the service.
func (o *Operation[R, M]) Delete(ctx context.Context) error {
	return o.client.DeleteOperation(ctx, &proto.DeleteOperationRequest{Name: o.Name()})
}

func (o *Operation[R, M]) result() (*R, error) {
	o.mu.Lock()
	lro := o.lro
	o.mu.Unlock()
	if lro.Error != nil {
		return nil, apperrors.FromRPCStatus(lro.Error)
	}
	r := new(R)
	if lro.Response == nil {
		return r, nil
	}
	if err := unpack(lro.Response, r); err != nil {
		return nil, err
	}
	return r, nil
}

func unpack(a *proto.Any, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return apperrors.Newf(apperrors.ErrInternal, "%T is not a message type", v)
	}
	if err := a.UnmarshalTo(m); err != nil {
		return apperrors.New(apperrors.ErrInternal, err.Error())
	}
	return nil
}
