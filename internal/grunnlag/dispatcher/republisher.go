package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/projection"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/requestcontext"
)

// Loader reads the current ledger rows of a case.
type Loader interface {
	CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error)
}

// Publisher delivers envelopes to the bus.
type Publisher interface {
	Publish(ctx context.Context, env models.Envelope) error
	Close() error
}

var tracer = otel.Tracer("grunnlag/dispatcher")

// Republisher turns a notification into a publication of the case's current
// projection. It never replays the triggering write: the ledger is re-read at
// call time, so a publication may already include later writes.
type Republisher struct {
	ledger    Loader
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// RepublisherOption configures the Republisher.
type RepublisherOption func(*Republisher)

// WithRepublisherMetrics sets the metrics collector.
func WithRepublisherMetrics(m *metrics.Metrics) RepublisherOption {
	return func(r *Republisher) {
		r.metrics = m
	}
}

// WithRepublisherLogger sets the logger.
func WithRepublisherLogger(logger *slog.Logger) RepublisherOption {
	return func(r *Republisher) {
		r.logger = logger
	}
}

// NewRepublisher creates a Republisher reading from ledger and writing to publisher.
func NewRepublisher(ledger Loader, publisher Publisher, opts ...RepublisherOption) (*Republisher, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	r := &Republisher{
		ledger:    ledger,
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Republish reloads, projects and publishes the case named by n. The
// notification's actor and request id are restored into ctx for the publisher.
func (r *Republisher) Republish(ctx context.Context, n models.Notification) error {
	ctx = requestcontext.WithActor(ctx, n.Actor)
	ctx = requestcontext.WithRequestID(ctx, n.RequestID)

	ctx, span := tracer.Start(ctx, "dispatcher.Republish")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("case_id", int64(n.CaseID)),
		attribute.String("event_kind", string(n.Kind)),
	)

	events, err := r.ledger.CurrentEventsFor(ctx, n.CaseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load events")
		return fmt.Errorf("reload case %s: %w", n.CaseID, err)
	}

	g, err := projection.Project(models.RawGrunnlag{CaseID: n.CaseID, Events: events}, projection.ApplicantFrom(events))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvariantViolation) {
			r.metrics.IncInvariantViolations()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "project")
		return fmt.Errorf("project case %s: %w", n.CaseID, err)
	}

	env := models.Envelope{
		Kind:        n.Kind,
		CaseID:      n.CaseID,
		Grunnlag:    g,
		Actor:       n.Actor,
		RequestID:   n.RequestID,
		PublishedAt: requestcontext.Now(ctx).UTC(),
	}
	if err := r.publisher.Publish(ctx, env); err != nil {
		r.metrics.IncPublishFailures()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		return fmt.Errorf("%w: case %s %s: %w", sentinel.ErrPublishFailed, n.CaseID, n.Kind, err)
	}

	r.metrics.IncPublished(string(n.Kind))
	r.logger.DebugContext(ctx, "grunnlag published",
		"case_id", n.CaseID,
		"event_kind", n.Kind,
		"latest_version", g.Metadata.LatestVersion,
	)
	return nil
}

// Close releases the publisher.
func (r *Republisher) Close() error {
	return r.publisher.Close()
}
