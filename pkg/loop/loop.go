/*
Package loop provides the single long-lived execution context that all
asynchronous memory operations run on. Tool invocations arrive on arbitrary
short-lived goroutines; they interact with the loop only through the
thread-safe submission primitives, never with its internal state.

The manager owns one dispatch goroutine for the lifetime of the process.
Submitted tasks execute on worker goroutines bounded by a semaphore, which
caps how many operations can be in flight against the downstream store at
once. Waited submissions observe exactly one outcome: a value, an error, or a
cancellation; once a task has been cancelled its result is never delivered.
*/
package loop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

// State is the lifecycle phase of the Manager.
type State int

const (
	StateUnstarted State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Task is a unit of work scheduled on the loop. The supplied context is
// cancelled when the task times out or the loop shuts down; tasks are
// expected to pass it through to any blocking call.
type Task func(ctx context.Context) (any, error)

type outcome struct {
	value any
	err   error
}

// handle tracks one submitted task from scheduling to completion.
type handle struct {
	id     string
	name   string
	task   Task
	nowait bool

	ctx    context.Context
	cancel context.CancelFunc

	result    chan outcome
	cancelled atomic.Bool
}

// deliver hands the outcome to the waiting caller, unless the handle was
// cancelled first. At most one outcome is ever observable.
func (h *handle) deliver(out outcome) {
	if h.cancelled.Load() {
		return
	}

	select {
	case h.result <- out:
	default:
	}
}

// abort marks the handle cancelled and requests cooperative cancellation of
// the running task. Side effects the task already produced are not rolled
// back.
func (h *handle) abort() {
	h.cancelled.Store(true)
	h.cancel()
}

const submissionQueueSize = 64

// Manager owns the background loop. The zero value is not usable; construct
// with NewManager. One Manager is created per process and injected into the
// dispatcher, rather than reached through a package-level global.
type Manager struct {
	mu    sync.Mutex
	state State

	submissions chan *handle
	quit        chan struct{}
	runDone     chan struct{}

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// dispatchCtx only gates the dispatch goroutine's semaphore wait, so
	// shutdown can unblock it without cancelling in-flight tasks yet.
	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc

	tasks    sync.WaitGroup
	sem      *semaphore.Weighted
	inFlight atomic.Int64

	maxInFlight int64
	logger      *log.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMaxInFlight caps the number of simultaneously executing tasks.
func WithMaxInFlight(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxInFlight = int64(n)
		}
	}
}

// WithLogger swaps the component logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager returns an unstarted Manager. The loop starts lazily on first
// submission, or eagerly via Start.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		state:       StateUnstarted,
		maxInFlight: 5,
		logger:      log.Default().WithPrefix("loop"),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.sem = semaphore.NewWeighted(m.maxInFlight)

	return m
}

// Start transitions the Manager to running. It is idempotent and safe to
// call from any number of goroutines racing on first use; exactly one loop
// is created. Starting a stopped Manager fails.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked()
}

func (m *Manager) startLocked() error {
	switch m.state {
	case StateRunning:
		return nil
	case StateDraining, StateStopped:
		return &errors.LoopUnavailableError{State: m.state.String()}
	}

	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	m.dispatchCtx, m.dispatchCancel = context.WithCancel(m.baseCtx)
	m.submissions = make(chan *handle, submissionQueueSize)
	m.quit = make(chan struct{})
	m.runDone = make(chan struct{})
	m.state = StateRunning

	go m.run()

	m.logger.Info("background loop started", "max_in_flight", m.maxInFlight)
	return nil
}

// run is the dispatch goroutine: it pulls submissions and fans them out to
// bounded worker goroutines until shutdown.
func (m *Manager) run() {
	defer close(m.runDone)

	for {
		select {
		case <-m.quit:
			m.refuseRemaining()
			return
		case h := <-m.submissions:
			if err := m.sem.Acquire(m.dispatchCtx, 1); err != nil {
				h.deliver(outcome{err: &errors.LoopUnavailableError{State: StateDraining.String()}})
				continue
			}

			m.tasks.Add(1)
			go m.execute(h)
		}
	}
}

// refuseRemaining fails queued-but-unstarted submissions so no caller is
// left hanging on a stopped loop.
func (m *Manager) refuseRemaining() {
	for {
		select {
		case h := <-m.submissions:
			h.deliver(outcome{err: &errors.LoopUnavailableError{State: StateStopped.String()}})
		default:
			return
		}
	}
}

func (m *Manager) execute(h *handle) {
	defer m.tasks.Done()
	defer m.sem.Release(1)

	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task panicked", "task", h.name, "id", h.id, "panic", r)
			h.deliver(outcome{err: errors.NewError("task panicked")})
		}
	}()

	// A task cancelled while still queued never runs.
	if h.ctx.Err() != nil {
		h.deliver(outcome{err: h.ctx.Err()})
		return
	}

	value, err := h.task(h.ctx)

	if h.nowait {
		// Fire-and-forget outcomes are only observable through logs.
		if err != nil {
			m.logger.Error("background task failed", "task", h.name, "id", h.id, "error", err)
		} else {
			m.logger.Debug("background task completed", "task", h.name, "id", h.id)
		}
		return
	}

	h.deliver(outcome{value: value, err: err})
}

// submit enqueues a handle, lazily starting the loop on first use. It fails
// fast with LoopUnavailableError instead of blocking on a dead loop.
func (m *Manager) submit(name string, task Task, nowait bool) (*handle, error) {
	m.mu.Lock()

	if m.state == StateUnstarted {
		if err := m.startLocked(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}

	if m.state != StateRunning {
		state := m.state.String()
		m.mu.Unlock()
		return nil, &errors.LoopUnavailableError{State: state}
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	submissions, quit := m.submissions, m.quit
	m.mu.Unlock()

	h := &handle{
		id:     uuid.NewString(),
		name:   name,
		task:   task,
		nowait: nowait,
		ctx:    ctx,
		cancel: cancel,
		result: make(chan outcome, 1),
	}

	select {
	case submissions <- h:
		return h, nil
	case <-quit:
		cancel()
		return nil, &errors.LoopUnavailableError{State: StateStopped.String()}
	}
}

// SubmitAndWait schedules a task and blocks the calling goroutine until the
// task completes, the timeout elapses, or ctx is cancelled. On timeout the
// task is cancelled (best-effort, cooperative) and a TimeoutError is
// returned; its result will never be delivered afterwards. A timeout of zero
// waits indefinitely, bounded only by ctx.
func (m *Manager) SubmitAndWait(ctx context.Context, name string, task Task, timeout time.Duration) (any, error) {
	h, err := m.submit(name, task, false)
	if err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case out := <-h.result:
		h.cancel()
		return out.value, out.err
	case <-expired:
		h.abort()
		m.logger.Warn("task timed out, cancellation requested", "task", name, "id", h.id, "timeout", timeout)
		return nil, &errors.TimeoutError{Op: name, After: timeout}
	case <-ctx.Done():
		h.abort()
		return nil, ctx.Err()
	}
}

// SubmitNowait schedules a task and returns immediately. The caller never
// observes the outcome; failures are logged by the loop. The error return
// only reports submission failure (loop unavailable).
func (m *Manager) SubmitNowait(name string, task Task) error {
	_, err := m.submit(name, task, true)
	return err
}

// Shutdown drains the loop: no new submissions are accepted, in-flight tasks
// get up to drainTimeout to finish, stragglers are cancelled, and the
// dispatch goroutine exits. Safe to call multiple times and from signal
// handling goroutines; total latency is bounded by drainTimeout plus a small
// epsilon.
func (m *Manager) Shutdown(drainTimeout time.Duration) {
	m.mu.Lock()

	switch m.state {
	case StateUnstarted:
		m.state = StateStopped
		m.mu.Unlock()
		return
	case StateDraining, StateStopped:
		m.mu.Unlock()
		return
	}

	m.state = StateDraining
	m.mu.Unlock()

	m.logger.Info("draining background loop", "timeout", drainTimeout)

	// Stop the dispatch goroutine first so nothing new can start, then give
	// in-flight tasks the drain window.
	m.dispatchCancel()
	close(m.quit)
	<-m.runDone

	drained := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		m.logger.Warn("drain timeout elapsed, cancelling in-flight tasks", "in_flight", m.inFlight.Load())
	}

	m.baseCancel()

	m.mu.Lock()
	m.state = StateStopped
	m.mu.Unlock()

	m.logger.Info("background loop stopped")
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats reports loop health for the status endpoint.
func (m *Manager) Stats() map[string]any {
	m.mu.Lock()
	state := m.state
	queued := 0
	if m.submissions != nil {
		queued = len(m.submissions)
	}
	m.mu.Unlock()

	return map[string]any{
		"state":         state.String(),
		"in_flight":     m.inFlight.Load(),
		"queued":        queued,
		"max_in_flight": m.maxInFlight,
	}
}
