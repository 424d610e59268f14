/*
Package dispatch routes validated memory operations onto the execution path
the configuration calls for. In async mode writes are fire-and-forget on the
background loop and reads are waited on with per-operation timeouts; in sync
mode every operation runs inline on the calling goroutine. Whatever happens
downstream, Dispatch always answers with an Envelope and never leaks a raw
error to the tool layer.
*/
package dispatch

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mem0-go/pkg/config"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/loop"
	"github.com/theapemachine/mem0-go/pkg/mem0"
	"github.com/theapemachine/mem0-go/pkg/metrics"
	"github.com/theapemachine/mem0-go/pkg/utils"
)

// Dispatcher owns the routing policy between the tool layer, the memory
// client, and the background loop.
type Dispatcher struct {
	client  mem0.Client
	loop    *loop.Manager
	cfg     *config.Credentials
	metrics *metrics.OperationMetrics
	logger  *log.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics attaches an externally owned metrics sink.
func WithMetrics(m *metrics.OperationMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger swaps the component logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// New wires a Dispatcher over the given client, loop, and credentials.
func New(client mem0.Client, mgr *loop.Manager, cfg *config.Credentials, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		loop:    mgr,
		cfg:     cfg,
		metrics: metrics.NewOperationMetrics(),
		logger:  log.Default().WithPrefix("dispatch"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Metrics exposes the dispatcher's counters for the status endpoint.
func (d *Dispatcher) Metrics() *metrics.OperationMetrics {
	return d.metrics
}

/*
Dispatch runs one operation end to end: validation, blank-add short circuit,
then routing per execution mode. The returned envelope is always complete;
a failed read carries the operation's degraded default in Results.
*/
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Envelope {
	if err := req.Validate(); err != nil {
		return Errored(req.Op, err.Error())
	}

	if req.Query != "" {
		d.logger.Debug("dispatching", "op", req.Op, "query", utils.Truncate(req.Query, 80))
	}

	if req.Op == OpAdd && !req.HasContent() {
		d.metrics.RecordSkipped()
		d.logger.Debug("blank add skipped")
		return SkippedAdd()
	}

	task, doneMsg := d.taskFor(req)

	if d.cfg.AsyncMode {
		if req.Op.IsWrite() {
			if err := d.loop.SubmitNowait(string(req.Op), task); err != nil {
				d.logger.Error("write submission refused", "op", req.Op, "error", err)
				return Errored(req.Op, err.Error())
			}

			d.metrics.RecordAccepted()
			return Accepted(req.Op)
		}

		timeout := d.timeoutFor(req.Op)
		if req.Timeout > 0 && req.Timeout < config.MaxRequestTimeout {
			timeout = req.Timeout
		}

		begin := time.Now()
		value, err := d.loop.SubmitAndWait(ctx, string(req.Op), task, timeout)
		d.metrics.RecordSubmission(err == nil, time.Since(begin))

		if err != nil {
			return d.degrade(req.Op, err)
		}

		return Success(value, doneMsg)
	}

	// Sync mode runs on the caller's goroutine, bounded by the global
	// request cap rather than per-operation read timeouts.
	cctx, cancel := context.WithTimeout(ctx, config.MaxRequestTimeout)
	defer cancel()

	value, err := task(cctx)
	if err != nil {
		return d.degrade(req.Op, err)
	}

	return Success(value, doneMsg)
}

// taskFor translates the flat request into a typed client call and pairs it
// with the message a successful envelope carries.
func (d *Dispatcher) taskFor(req Request) (loop.Task, string) {
	switch req.Op {
	case OpAdd:
		addReq := mem0.AddRequest{
			Messages:   req.Messages,
			Scope:      req.Scope,
			Metadata:   req.Metadata,
			Infer:      req.Infer,
			MemoryType: req.MemoryType,
		}
		return func(ctx context.Context) (any, error) {
			return d.client.Add(ctx, addReq)
		}, "memories extracted and stored"

	case OpSearch:
		limit := req.Limit
		if limit <= 0 {
			limit = config.DefaultTopK
		}
		searchReq := mem0.SearchRequest{
			Query:     req.Query,
			Scope:     req.Scope,
			Limit:     limit,
			Filters:   req.Filters,
			Threshold: req.Threshold,
		}
		return func(ctx context.Context) (any, error) {
			return d.client.Search(ctx, searchReq)
		}, "search completed"

	case OpGet:
		id := req.MemoryID
		return func(ctx context.Context) (any, error) {
			return d.client.Get(ctx, id)
		}, "memory retrieved"

	case OpGetAll:
		listReq := mem0.GetAllRequest{
			Scope:   req.Scope,
			Limit:   req.Limit,
			Filters: req.Filters,
		}
		return func(ctx context.Context) (any, error) {
			return d.client.GetAll(ctx, listReq)
		}, "memories listed"

	case OpUpdate:
		id, text := req.MemoryID, req.Text
		return func(ctx context.Context) (any, error) {
			return d.client.Update(ctx, id, text)
		}, "memory updated"

	case OpDelete:
		id := req.MemoryID
		return func(ctx context.Context) (any, error) {
			return nil, d.client.Delete(ctx, id)
		}, "memory deleted"

	case OpDeleteAll:
		scope := req.Scope
		return func(ctx context.Context) (any, error) {
			return nil, d.client.DeleteAll(ctx, scope)
		}, "all memories deleted for the given scope"

	case OpHistory:
		id := req.MemoryID
		return func(ctx context.Context) (any, error) {
			return d.client.History(ctx, id)
		}, "memory history retrieved"
	}

	// Unreachable after validation; kept total for safety.
	return func(ctx context.Context) (any, error) {
		return nil, errors.NewValidation("operation", "unknown operation")
	}, ""
}

func (d *Dispatcher) timeoutFor(op Operation) time.Duration {
	switch op {
	case OpSearch:
		return d.cfg.Timeouts.Search
	case OpGet:
		return d.cfg.Timeouts.Get
	case OpGetAll:
		return d.cfg.Timeouts.GetAll
	case OpHistory:
		return d.cfg.Timeouts.History
	}
	return config.MaxRequestTimeout
}

// degrade folds a failure into an ERROR envelope with the operation's empty
// default, classifying the cause for metrics and logs.
func (d *Dispatcher) degrade(op Operation, err error) Envelope {
	switch {
	case errors.IsTimeout(err):
		d.metrics.RecordTimeout()
		d.logger.Warn("operation timed out, returning degraded result", "op", op, "error", err)
		return Errored(op, "the memory store did not respond in time")

	case errors.IsNotFound(err):
		d.logger.Debug("memory not found", "op", op)
		return Errored(op, "memory not found")

	case errors.IsValidation(err):
		return Errored(op, err.Error())

	default:
		d.metrics.RecordDegraded()
		d.logger.Error("operation failed, returning degraded result", "op", op, "error", err)
		return Errored(op, err.Error())
	}
}
