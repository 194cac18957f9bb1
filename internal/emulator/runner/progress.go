package runner

import (
	"context"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

// Progress lets a job report the work it has done. Its methods are safe to
// call from the job's goroutine only.
type Progress struct {
	r *Runner
	j *job
}

// Estimate records the expected number of documents and bytes.
func (p *Progress) Estimate(documents, bytes int64) {
	p.j.mu.Lock()
	defer p.j.mu.Unlock()
	p.j.docs.EstimatedWork = documents
	p.j.bytes.EstimatedWork = bytes
	p.r.saveLocked(p.j)
}

// Advance adds completed work and persists it at most every saveInterval.
// It returns the cancellation cause once the operation has been cancelled.
func (p *Progress) Advance(documents, bytes int64) error {
	p.j.mu.Lock()
	p.j.docs.CompletedWork += documents
	p.j.bytes.CompletedWork += bytes
	if time.Since(p.j.lastSave) >= saveInterval {
		p.r.saveLocked(p.j)
	}
	p.j.mu.Unlock()

	if d := p.r.stepDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-p.j.ctx.Done():
			t.Stop()
		}
	}
	return context.Cause(p.j.ctx)
}

// Finalizing moves the operation to FINALIZING.
func (p *Progress) Finalizing() error {
	if err := context.Cause(p.j.ctx); err != nil {
		return err
	}
	p.j.mu.Lock()
	defer p.j.mu.Unlock()
	if p.j.jm != nil {
		p.j.jm.SetJobState(proto.OperationStateFinalizing)
	}
	p.r.saveLocked(p.j)
	return nil
}

// UpdateMetadata applies fn to the operation metadata and persists it.
func (p *Progress) UpdateMetadata(fn func(proto.Message)) {
	p.j.mu.Lock()
	defer p.j.mu.Unlock()
	fn(p.j.spec.Metadata)
	if p.j.jm == nil {
		if err := p.j.op.SetMetadata(p.j.spec.Metadata); err != nil {
			p.r.logger.Error("encoding metadata failed", "operation", p.j.op.Name, "error", err)
			return
		}
	}
	p.r.saveLocked(p.j)
}

// Name returns the operation's resource name.
func (p *Progress) Name() string { return p.j.op.Name }

var jobMetadataTypes = []func() proto.JobMetadata{
	func() proto.JobMetadata { return &proto.IndexOperationMetadata{} },
	func() proto.JobMetadata { return &proto.FieldOperationMetadata{} },
	func() proto.JobMetadata { return &proto.ExportDocumentsMetadata{} },
	func() proto.JobMetadata { return &proto.ImportDocumentsMetadata{} },
	func() proto.JobMetadata { return &proto.BulkDeleteDocumentsMetadata{} },
}

func decodeJobMetadata(a *proto.Any) proto.JobMetadata {
	if a == nil {
		return nil
	}
	for _, newMeta := range jobMetadataTypes {
		m := newMeta()
		if a.Is(m) {
			if err := a.UnmarshalTo(m); err != nil {
				return nil
			}
			return m
		}
	}
	return nil
}

// databaseOf strips the "/operations/{id}" suffix from an operation name.
func databaseOf(name string) string {
	if i := strings.LastIndex(name, "/operations/"); i >= 0 {
		return name[:i]
	}
	return name
}
