// Package runner executes the emulator's long-running operations on a
// bounded worker pool.
//
// Start persists a new operation and queues its job. A dispatcher hands
// queued jobs to an errgroup limited to the configured number of workers.
// Each job runs with its own context, cancelled by Cancel or by Shutdown,
// and reports progress through a Progress that persists the operation's
// metadata as it goes. Operations move through INITIALIZING, PROCESSING and
// optionally FINALIZING before ending SUCCESSFUL, FAILED or CANCELLED.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

const (
	defaultQueueSize = 256
	saveInterval     = 100 * time.Millisecond
	persistTimeout   = 5 * time.Second
)

var (
	errCancelled = errors.New("operation cancelled")
	errShutdown  = errors.New("emulator shutting down")
)

// Job is the body of an operation. It returns the operation's response, or
// nil for google.protobuf.Empty.
type Job func(ctx context.Context, p *Progress) (proto.Message, error)

// Spec describes an operation to start.
type Spec struct {
	// Kind is the RPC that started the operation, e.g. "CreateIndex".
	Kind string
	// Database is the resource name the operation belongs to.
	Database string
	// Metadata is the initial metadata. Job metadata (index, field and
	// document operations) gets its state, times and progress maintained.
	Metadata proto.Message
	Run      Job
	// Rollback undoes partial work after the job failed or was cancelled.
	Rollback  func(ctx context.Context)
	RequestID string
}

type job struct {
	spec   Spec
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	op       *proto.Operation
	jm       proto.JobMetadata
	started  time.Time
	docs     proto.Progress
	bytes    proto.Progress
	lastSave time.Time
	finished bool
}

type Option func(*Runner)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSinks sends operation events to sinks.
func WithSinks(sinks ...analytics.Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithFinishHook calls fn with every operation once it is done.
func WithFinishHook(fn func(ctx context.Context, op *proto.Operation)) Option {
	return func(r *Runner) { r.onFinish = append(r.onFinish, fn) }
}

// WithStepDelay pauses after every unit of progress.
func WithStepDelay(d time.Duration) Option {
	return func(r *Runner) { r.stepDelay = d }
}

// WithQueueSize bounds the operations waiting for a worker.
func WithQueueSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

type Runner struct {
	store     *store.Store
	metrics   *metrics.Metrics
	sinks     []analytics.Sink
	onFinish  []func(ctx context.Context, op *proto.Operation)
	stepDelay time.Duration
	queueSize int

	baseCtx    context.Context
	stop       context.CancelCauseFunc
	group      *errgroup.Group
	queue      chan *job
	dispatched chan struct{}

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool

	logger *slog.Logger
}

// New creates a runner executing at most workers jobs at a time.
func New(st *store.Store, workers int, opts ...Option) *Runner {
	if workers <= 0 {
		workers = 4
	}
	ctx, stop := context.WithCancelCause(context.Background())
	r := &Runner{
		store:      st,
		queueSize:  defaultQueueSize,
		baseCtx:    ctx,
		stop:       stop,
		group:      new(errgroup.Group),
		dispatched: make(chan struct{}),
		jobs:       make(map[string]*job),
		logger:     slog.Default().With("component", "operation-runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.group.SetLimit(workers)
	r.queue = make(chan *job, r.queueSize)
	go r.dispatch()
	r.logger.Info("operation runner started", "workers", workers, "queue_size", r.queueSize)
	return r
}

func (r *Runner) dispatch() {
	defer close(r.dispatched)
	for j := range r.queue {
		r.group.Go(func() error {
			r.execute(j)
			return nil
		})
	}
}

// Start persists a new operation for spec and queues its job. It returns
// the operation as first stored.
func (r *Runner) Start(ctx context.Context, spec Spec) (*proto.Operation, error) {
	now := time.Now()
	name := spec.Database + "/operations/" + ulid.Make().String()
	if spec.Metadata == nil {
		spec.Metadata = &proto.Empty{}
	}
	jm, _ := spec.Metadata.(proto.JobMetadata)
	if jm != nil {
		jm.SetJobState(proto.OperationStateInitializing)
		jm.SetStartTime(now)
	}
	op := &proto.Operation{Name: name}
	if err := op.SetMetadata(spec.Metadata); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInternal, "encoding metadata: %v", err)
	}
	if err := r.store.CreateOperation(ctx, spec.Database, op); err != nil {
		return nil, err
	}

	jctx, cancel := context.WithCancelCause(r.baseCtx)
	j := &job{spec: spec, ctx: jctx, cancel: cancel, op: op.Clone(), jm: jm, started: now, lastSave: now}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel(errShutdown)
		r.discard(op.Name)
		return nil, apperrors.New(apperrors.ErrUnavailable, "emulator is shutting down")
	}
	r.jobs[name] = j
	select {
	case r.queue <- j:
	default:
		delete(r.jobs, name)
		r.mu.Unlock()
		cancel(errShutdown)
		r.discard(op.Name)
		return nil, apperrors.New(apperrors.ErrResourceExhausted, "too many pending operations")
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.OperationsStartedTotal.WithLabelValues(spec.Kind).Inc()
		r.metrics.OperationsInFlight.Inc()
	}
	r.emit(analytics.OperationEvent{
		Type:      analytics.EventOperationStarted,
		Operation: name,
		Database:  spec.Database,
		Kind:      spec.Kind,
		State:     proto.OperationStateInitializing.String(),
		Timestamp: now.UTC(),
		RequestID: spec.RequestID,
	})
	r.logger.Info("operation started", "operation", name, "kind", spec.Kind)
	return op, nil
}

func (r *Runner) discard(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.DeleteOperation(ctx, name); err != nil {
		r.logger.Warn("discarding rejected operation failed", "operation", name, "error", err)
	}
}

func (r *Runner) execute(j *job) {
	defer r.forget(j)

	if context.Cause(j.ctx) != nil {
		r.finish(j, nil, context.Cause(j.ctx))
		return
	}
	j.mu.Lock()
	if j.jm != nil {
		j.jm.SetJobState(proto.OperationStateProcessing)
	}
	r.saveLocked(j)
	j.mu.Unlock()

	resp, err := r.run(j)
	r.finish(j, resp, err)
}

func (r *Runner) run(j *job) (resp proto.Message, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("operation panicked", "operation", j.op.Name, "panic", rec)
			resp, err = nil, apperrors.Newf(apperrors.ErrInternal, "operation failed: %v", rec)
		}
	}()
	return j.spec.Run(j.ctx, &Progress{r: r, j: j})
}

func (r *Runner) forget(j *job) {
	r.mu.Lock()
	delete(r.jobs, j.op.Name)
	r.mu.Unlock()
	j.cancel(nil)
}

func (r *Runner) finish(j *job, resp proto.Message, err error) {
	cause := context.Cause(j.ctx)
	cancelled := err != nil && (errors.Is(err, errCancelled) || errors.Is(cause, errCancelled))
	if err != nil && !cancelled && errors.Is(cause, errShutdown) {
		err = apperrors.New(apperrors.ErrAborted, "operation interrupted by emulator shutdown")
	}

	if err != nil && j.spec.Rollback != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		j.spec.Rollback(ctx)
		cancel()
	}

	end := time.Now()
	state := proto.OperationStateSuccessful
	j.mu.Lock()
	j.finished = true
	switch {
	case err == nil:
		if resp == nil {
			resp = &proto.Empty{}
		}
		if setErr := j.op.SetResponse(resp); setErr != nil {
			state = proto.OperationStateFailed
			j.op.SetError(apperrors.ToRPCStatus(apperrors.Newf(apperrors.ErrInternal, "encoding response: %v", setErr)))
		}
	case cancelled:
		state = proto.OperationStateCancelled
		j.op.SetError(&proto.Status{Code: int32(codes.Canceled), Message: "operation was cancelled"})
	default:
		state = proto.OperationStateFailed
		j.op.SetError(apperrors.ToRPCStatus(err))
	}
	if j.jm != nil {
		j.jm.SetJobState(state)
		j.jm.SetEndTime(end)
	}
	r.saveLocked(j)
	final := j.op.Clone()
	docs, bytes := j.docs, j.bytes
	j.mu.Unlock()

	duration := end.Sub(j.started)
	if r.metrics != nil {
		r.metrics.OperationsInFlight.Dec()
		r.metrics.OperationsFinishedTotal.WithLabelValues(j.spec.Kind, state.String()).Inc()
		r.metrics.OperationDuration.WithLabelValues(j.spec.Kind).Observe(duration.Seconds())
	}
	event := analytics.OperationEvent{
		Type:          analytics.EventOperationFinished,
		Operation:     final.Name,
		Database:      j.spec.Database,
		Kind:          j.spec.Kind,
		State:         state.String(),
		CompletedWork: docs.CompletedWork,
		CompletedSize: bytes.CompletedWork,
		DurationMs:    duration.Milliseconds(),
		Timestamp:     end.UTC(),
		RequestID:     j.spec.RequestID,
	}
	if final.Error != nil {
		event.ErrorCode = apperrors.CodeName(codes.Code(final.Error.Code))
	}
	r.emit(event)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for _, fn := range r.onFinish {
		fn(ctx, final)
	}

	logger := r.logger.With("operation", final.Name, "kind", j.spec.Kind, "state", state.String(), "duration", duration)
	if state == proto.OperationStateFailed {
		logger.Warn("operation failed", "error", err)
	} else {
		logger.Info("operation finished")
	}
}

// saveLocked persists the job's operation. j.mu must be held.
func (r *Runner) saveLocked(j *job) {
	if j.jm != nil {
		j.jm.SetProgress(j.docs, j.bytes)
		if err := j.op.SetMetadata(j.jm); err != nil {
			r.logger.Error("encoding metadata failed", "operation", j.op.Name, "error", err)
			return
		}
	}
	j.lastSave = time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.SaveOperation(ctx, j.spec.Database, j.op); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.Debug("operation deleted while running", "operation", j.op.Name)
			return
		}
		r.logger.Error("saving operation failed", "operation", j.op.Name, "error", err)
	}
}

func (r *Runner) emit(e analytics.OperationEvent) {
	for _, s := range r.sinks {
		s.Track(e)
	}
}

// Cancel requests cancellation of a running operation. Finished operations
// yield FAILED_PRECONDITION. Unfinished operations with no job, left over
// from a previous process, are marked CANCELLED directly.
func (r *Runner) Cancel(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if ok {
		j.mu.Lock()
		if j.finished {
			j.mu.Unlock()
			return apperrors.Newf(apperrors.ErrFailedPrecondition, "operation %s has already finished", name)
		}
		if j.jm != nil {
			j.jm.SetJobState(proto.OperationStateCancelling)
		}
		r.saveLocked(j)
		j.mu.Unlock()
		j.cancel(errCancelled)
		r.logger.Info("operation cancellation requested", "operation", name)
		return nil
	}

	op, err := r.store.GetOperation(ctx, name)
	if err != nil {
		return err
	}
	if op.Done {
		return apperrors.Newf(apperrors.ErrFailedPrecondition, "operation %s has already finished", name)
	}
	return r.settleOrphan(ctx, op, proto.OperationStateCancelled,
		&proto.Status{Code: int32(codes.Canceled), Message: "operation was cancelled"})
}

// Recover fails every unfinished operation in the store that no job is
// running, as left behind by a process that stopped mid-operation.
func (r *Runner) Recover(ctx context.Context) (int, error) {
	ops, err := r.store.ListOperations(ctx, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, op := range ops {
		if op.Done || r.Running(op.Name) {
			continue
		}
		st := apperrors.ToRPCStatus(apperrors.New(apperrors.ErrAborted, "operation interrupted by emulator restart"))
		if err := r.settleOrphan(ctx, op, proto.OperationStateFailed, st); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		r.logger.Warn("recovered interrupted operations", "count", n)
	}
	return n, nil
}

func (r *Runner) settleOrphan(ctx context.Context, op *proto.Operation, state proto.OperationState, st *proto.Status) error {
	database := databaseOf(op.Name)
	if meta := decodeJobMetadata(op.Metadata); meta != nil {
		meta.SetJobState(state)
		meta.SetEndTime(time.Now())
		if err := op.SetMetadata(meta); err != nil {
			return apperrors.Newf(apperrors.ErrInternal, "encoding metadata: %v", err)
		}
	}
	op.SetError(st)
	return r.store.SaveOperation(ctx, database, op)
}

// Running reports whether a job for the named operation is queued or running.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[name]
	return ok
}

// Pending returns the number of queued or running jobs.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Shutdown stops accepting operations and waits for queued and running jobs.
// When ctx ends first, the remaining jobs are cancelled and fail with
// ABORTED; Shutdown then waits for them to wind down and returns ctx.Err().
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-r.dispatched
		r.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("operation runner drained")
		return nil
	case <-ctx.Done():
		r.stop(errShutdown)
		<-done
		r.logger.Warn("operation runner stopped with jobs interrupted")
		return ctx.Err()
	}
}
