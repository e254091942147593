// Package dispatcher decouples grunnlag writes from publication. Writers
// enqueue a notification and return; a single background worker drains the
// queue in FIFO order, reloading and republishing each case.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/platform/sentinel"
)

// State is the dispatcher lifecycle position.
type State int

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

var stateNames = []string{"running", "draining", "stopped"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handler processes one notification and owns the downstream publisher.
type Handler interface {
	Republish(ctx context.Context, n models.Notification) error
	Close() error
}

// Dispatcher is a queue with exactly one consumer. Notify never blocks on
// publication. A handler failure is fatal: the worker stops and no further
// notifications are accepted.
type Dispatcher struct {
	handler Handler
	limit   int
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []models.Notification
	state   State
	started bool
	runErr  error

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithQueueLimit bounds the backlog. Zero means unbounded. When the limit is
// reached Notify fails with sentinel.ErrQueueFull instead of blocking.
func WithQueueLimit(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limit = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher in the running state. Call Run to start the worker.
func New(handler Handler, opts ...Option) (*Dispatcher, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	d := &Dispatcher{
		handler: handler,
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.metrics.SetDispatcherState(StateRunning.String(), stateNames...)
	return d, nil
}

// Notify enqueues n for publication. It fails with sentinel.ErrInvalidState
// once the dispatcher is draining or stopped.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateRunning {
		d.metrics.IncNotifyRejections()
		return fmt.Errorf("notify case %s: dispatcher %s: %w", n.CaseID, d.state, sentinel.ErrInvalidState)
	}
	if d.limit > 0 && len(d.queue) >= d.limit {
		d.metrics.IncNotifyRejections()
		return fmt.Errorf("notify case %s: %w", n.CaseID, sentinel.ErrQueueFull)
	}
	d.queue = append(d.queue, n)
	d.metrics.SetQueueDepth(len(d.queue))
	d.signal()
	return nil
}

// State reports the lifecycle position.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending reports the number of queued notifications.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Err returns the error that stopped the worker, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runErr
}

// Run drains the queue until Close has been called and the queue is empty,
// ctx is cancelled, or the handler fails. It may be called once. Run may
// start after Close: notifications queued before Close are still drained.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("run dispatcher: already started: %w", sentinel.ErrInvalidState)
	}
	d.started = true
	if d.state == StateStopped {
		// Closed before start with nothing queued.
		d.mu.Unlock()
		close(d.done)
		return nil
	}
	d.mu.Unlock()
	defer close(d.done)

	d.logger.InfoContext(ctx, "dispatcher started", "queue_limit", d.limit)
	for {
		if err := ctx.Err(); err != nil {
			return d.stop(ctx, err)
		}

		n, ok, draining := d.next()
		if !ok {
			if draining {
				d.logger.InfoContext(ctx, "dispatcher drained")
				return d.stop(ctx, nil)
			}
			select {
			case <-ctx.Done():
				return d.stop(ctx, ctx.Err())
			case <-d.wake:
			}
			continue
		}

		if err := d.handler.Republish(ctx, n); err != nil {
			d.logger.ErrorContext(ctx, "CRITICAL: publication failed, dispatcher stopping",
				"case_id", n.CaseID,
				"event_kind", n.Kind,
				"pending", d.Pending(),
				"error", err,
			)
			return d.stop(ctx, err)
		}
	}
}

// Close stops accepting notifications, waits for the worker to publish
// everything already queued, then releases the handler's publisher. When Run
// has not started yet and notifications are queued, Close waits for Run to
// drain them. If ctx ends before the drain completes Close returns ctx's
// error and leaves the publisher open.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateRunning {
		d.state = StateDraining
		d.metrics.SetDispatcherState(StateDraining.String(), stateNames...)
	}
	wait := d.started || len(d.queue) > 0
	if !wait {
		d.state = StateStopped
		d.metrics.SetDispatcherState(StateStopped.String(), stateNames...)
	}
	d.mu.Unlock()

	if wait {
		d.signal()
		select {
		case <-d.done:
		case <-ctx.Done():
			return fmt.Errorf("drain dispatcher: %w", ctx.Err())
		}
	}

	d.closeOnce.Do(func() {
		if err := d.handler.Close(); err != nil {
			d.closeErr = fmt.Errorf("close publisher: %w", err)
		}
	})
	return d.closeErr
}

func (d *Dispatcher) next() (n models.Notification, ok bool, draining bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return models.Notification{}, false, d.state == StateDraining
	}
	n = d.queue[0]
	d.queue[0] = models.Notification{}
	d.queue = d.queue[1:]
	d.metrics.SetQueueDepth(len(d.queue))
	return n, true, false
}

func (d *Dispatcher) stop(ctx context.Context, err error) error {
	d.mu.Lock()
	d.state = StateStopped
	d.runErr = err
	pending := len(d.queue)
	d.mu.Unlock()

	d.metrics.SetDispatcherState(StateStopped.String(), stateNames...)
	if pending > 0 {
		d.logger.WarnContext(ctx, "dispatcher stopped with undelivered notifications", "pending", pending)
	}
	return err
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
