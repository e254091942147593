package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/platform/sentinel"
)

// Store is the persistence the Relay needs.
type Store interface {
	Claim(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, retryAt time.Time, now time.Time, cause string) error
}

// Republisher publishes the current projection of a notified case.
type Republisher interface {
	Republish(ctx context.Context, n models.Notification) error
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 50
	defaultMaxAttempts  = 8
	maxBackoff          = 5 * time.Minute
)

var tracer = otel.Tracer("grunnlag/outbox")

// Relay drains the outbox. Unlike the in-process dispatcher a publish
// failure is not fatal: the row is retried with exponential backoff and
// dead-lettered once attempts are exhausted.
type Relay struct {
	store       Store
	republisher Republisher
	interval    time.Duration
	batchSize   int
	maxAttempts int
	clock       func() time.Time
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// RelayOption configures the Relay.
type RelayOption func(*Relay)

// WithPollInterval sets the delay between polls.
func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize caps rows claimed per poll.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxAttempts sets the dead-letter threshold.
func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) RelayOption {
	return func(r *Relay) {
		r.clock = clock
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// NewRelay creates a Relay.
func NewRelay(store Store, republisher Republisher, opts ...RelayOption) (*Relay, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if republisher == nil {
		return nil, errors.New("republisher is required")
	}
	r := &Relay{
		store:       store,
		republisher: republisher,
		interval:    defaultPollInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		clock:       time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "outbox relay started",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"max_attempts", r.maxAttempts,
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.ProcessOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "outbox poll failed", "error", err)
				}
				break
			}
			// A full batch means more rows are probably due.
			if n < r.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch and handles every row in it. It returns the
// number of rows claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "outbox.ProcessOnce")
	defer span.End()

	now := r.clock().UTC()
	entries, err := r.store.Claim(ctx, now, r.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim")
		return 0, err
	}
	span.SetAttributes(attribute.Int("claimed", len(entries)))
	for _, e := range entries {
		if err := r.handle(ctx, e, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mark")
			return len(entries), err
		}
	}
	return len(entries), nil
}

func (r *Relay) handle(ctx context.Context, e Entry, now time.Time) error {
	pubErr := r.republisher.Republish(ctx, e.Notification)
	if pubErr == nil {
		if err := r.store.MarkProcessed(ctx, e.ID, r.clock().UTC()); err != nil {
			return err
		}
		r.metrics.IncOutboxRelayed()
		return nil
	}

	attempts := e.Attempts + 1
	var retryAt time.Time
	if attempts < r.maxAttempts && !errors.Is(pubErr, sentinel.ErrInvariantViolation) {
		retryAt = now.Add(Backoff(attempts))
	}
	if err := r.store.MarkFailed(ctx, e.ID, attempts, retryAt, now, pubErr.Error()); err != nil {
		return fmt.Errorf("%w (publish error: %v)", err, pubErr)
	}

	if retryAt.IsZero() {
		r.metrics.IncOutboxDeadLettered()
		r.logger.ErrorContext(ctx, "outbox entry dead-lettered",
			"outbox_id", e.ID,
			"case_id", e.Notification.CaseID,
			"event_kind", e.Notification.Kind,
			"attempts", attempts,
			"error", pubErr,
		)
		return nil
	}
	r.metrics.IncOutboxRetried()
	r.logger.WarnContext(ctx, "outbox publish failed, will retry",
		"outbox_id", e.ID,
		"case_id", e.Notification.CaseID,
		"attempts", attempts,
		"retry_at", retryAt,
		"error", pubErr,
	)
	return nil
}

// Backoff doubles from one second per attempt, capped at five minutes.
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > 20 {
		return maxBackoff
	}
	backoff := time.Second << (attempt - 1)
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}
