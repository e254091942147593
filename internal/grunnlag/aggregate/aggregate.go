// Package aggregate provides the write-side handle for one case.
//
// An Aggregate caches the case's current ledger rows and is the only way facts
// are written. It does not resolve latest-wins or accumulation itself: written
// events are appended to the cache as-is and the projection resolves them. One
// Aggregate instance serves one in-flight mutation and is not safe for
// concurrent use.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/tx"
	"grunnlag/pkg/requestcontext"
)

// Ledger is the part of the fact ledger the write path needs.
type Ledger interface {
	Append(ctx context.Context, caseID domain.CaseID, fact models.Fact) (int64, error)
	CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error)
}

// Outbox durably records a notification in the same transaction as the facts.
type Outbox interface {
	Enqueue(ctx context.Context, n models.Notification) error
}

// Notifier signals the in-process dispatcher after a write has committed.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

var tracer = otel.Tracer("grunnlag/aggregate")

// Aggregate is the versioned fact handle for one case.
type Aggregate struct {
	caseID domain.CaseID
	events []models.FactEvent
	deps   *deps
}

// CaseID returns the case this aggregate writes to.
func (a *Aggregate) CaseID() domain.CaseID { return a.caseID }

// Version returns the highest sequence number in the cached view, 0 for a new case.
func (a *Aggregate) Version() int64 {
	var v int64
	for _, ev := range a.events {
		v = max(v, ev.SequenceNumber)
	}
	return v
}

// SerializableView returns the cached events and case id, the projection's input.
func (a *Aggregate) SerializableView() models.RawGrunnlag {
	return models.RawGrunnlag{
		CaseID: a.caseID,
		Events: slices.Clone(a.events),
	}
}

// Append writes facts to the ledger in order and extends the cached view with
// the resulting events. An empty batch is a no-op. When a transaction runner is
// configured the batch and its outbox row commit atomically and the cache is
// only updated after commit; otherwise every fact that reached the ledger is
// cached even if a later one fails.
//
// The dispatcher is signalled after the write. Its failures are logged, never
// returned: the facts are already committed.
func (a *Aggregate) Append(ctx context.Context, facts []models.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "aggregate.Append")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("case_id", int64(a.caseID)),
		attribute.Int("facts", len(facts)),
	)

	for _, f := range facts {
		if err := f.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid fact")
			return err
		}
	}

	start := time.Now()
	kind := models.EventFactsChanged
	if len(a.events) == 0 {
		kind = models.EventCreated
	}
	n := notificationFor(ctx, a.caseID, kind)

	var appended []models.FactEvent
	write := func(ctx context.Context) error {
		appended = appended[:0]
		for i, f := range facts {
			seq, err := a.deps.ledger.Append(ctx, a.caseID, f)
			if err != nil {
				return fmt.Errorf("append fact %d of %d: %w", i+1, len(facts), err)
			}
			appended = append(appended, models.FactEvent{Fact: f, CaseID: a.caseID, SequenceNumber: seq})
		}
		if a.deps.outbox != nil {
			if err := a.deps.outbox.Enqueue(ctx, n); err != nil {
				return fmt.Errorf("enqueue outbox notification: %w", err)
			}
		}
		return nil
	}

	var err error
	if a.deps.runner != nil {
		err = a.deps.runner.RunInTx(ctx, write)
		if err != nil {
			appended = nil
		}
	} else {
		err = write(ctx)
	}

	a.events = append(a.events, appended...)
	for _, ev := range appended {
		a.deps.metrics.IncFactsAppended(string(ev.Fact.Type), factKind(ev.Fact))
	}
	a.deps.metrics.ObserveAppendLatency(time.Since(start))

	if len(appended) > 0 {
		a.notify(ctx, n)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append")
		return fmt.Errorf("case %s: %w", a.caseID, err)
	}
	return nil
}

// Abort announces that the case was abandoned. No facts are written; consumers
// receive the final projection tagged as aborted.
func (a *Aggregate) Abort(ctx context.Context) error {
	n := notificationFor(ctx, a.caseID, models.EventAborted)
	if a.deps.outbox != nil {
		if err := a.deps.runner.RunInTx(ctx, func(ctx context.Context) error {
			return a.deps.outbox.Enqueue(ctx, n)
		}); err != nil {
			return fmt.Errorf("case %s: enqueue abort: %w", a.caseID, err)
		}
	}
	a.notify(ctx, n)
	return nil
}

func (a *Aggregate) notify(ctx context.Context, n models.Notification) {
	if a.deps.notifier == nil {
		return
	}
	if err := a.deps.notifier.Notify(ctx, n); err != nil {
		a.deps.logger.WarnContext(ctx, "dispatcher rejected notification",
			"case_id", n.CaseID,
			"event_kind", n.Kind,
			"error", err,
		)
	}
}

func notificationFor(ctx context.Context, caseID domain.CaseID, kind models.EventKind) models.Notification {
	return models.Notification{
		CaseID:     caseID,
		Kind:       kind,
		Actor:      requestcontext.Actor(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		EnqueuedAt: requestcontext.Now(ctx).UTC(),
	}
}

func factKind(f models.Fact) string {
	if f.IsPeriodized() {
		return string(models.KindPeriodized)
	}
	return string(models.KindConstant)
}

type deps struct {
	ledger   Ledger
	runner   tx.Runner
	outbox   Outbox
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures the Factory.
type Option func(*deps)

// WithTxRunner makes each Append batch atomic.
func WithTxRunner(r tx.Runner) Option {
	return func(d *deps) {
		d.runner = r
	}
}

// WithOutbox records a durable notification inside each batch's transaction.
// Requires WithTxRunner.
func WithOutbox(o Outbox) Option {
	return func(d *deps) {
		d.outbox = o
	}
}

// WithNotifier signals an in-process dispatcher after each write.
func WithNotifier(n Notifier) Option {
	return func(d *deps) {
		d.notifier = n
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

// Factory loads or creates aggregates.
type Factory struct {
	deps *deps
}

// NewFactory creates a Factory writing through ledger.
func NewFactory(ledger Ledger, opts ...Option) (*Factory, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	d := &deps{
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.outbox != nil && d.runner == nil {
		return nil, errors.New("outbox requires a transaction runner")
	}
	return &Factory{deps: d}, nil
}

// LoadOrCreate returns the aggregate for caseID with its current rows cached.
// A case with no rows yields an empty aggregate, not an error.
func (f *Factory) LoadOrCreate(ctx context.Context, caseID domain.CaseID) (*Aggregate, error) {
	if caseID <= 0 {
		return nil, fmt.Errorf("%w: case id must be positive", domain.ErrInvalidID)
	}
	events, err := f.deps.ledger.CurrentEventsFor(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", caseID, err)
	}
	return &Aggregate{caseID: caseID, events: events, deps: f.deps}, nil
}
