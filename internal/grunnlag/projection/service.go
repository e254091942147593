package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

// Ledger is the read side of the fact ledger the service needs.
type Ledger interface {
	CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error)
	LatestSequence(ctx context.Context, caseID domain.CaseID) (int64, error)
}

// SnapshotCache stores projected views keyed by case, applicant and version.
// Because the version is part of the key, entries never go stale.
type SnapshotCache interface {
	Get(ctx context.Context, caseID domain.CaseID, applicant domain.PersonID, version int64) (models.Grunnlag, bool, error)
	Put(ctx context.Context, applicant domain.PersonID, g models.Grunnlag) error
}

// Service answers read-only projection queries directly against the ledger.
type Service struct {
	ledger  Ledger
	cache   SnapshotCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithSnapshotCache enables snapshot caching.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets a logger for cache failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a projection query service.
func NewService(ledger Ledger, opts ...Option) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	s := &Service{
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var tracer = otel.Tracer("grunnlag/projection")

// ProjectionFor returns the current view of caseID with applicant as søker.
// A case with no ledger rows yields sentinel.ErrNotFound.
func (s *Service) ProjectionFor(ctx context.Context, caseID domain.CaseID, applicant domain.PersonID) (models.Grunnlag, error) {
	ctx, span := tracer.Start(ctx, "projection.ProjectionFor")
	defer span.End()
	span.SetAttributes(attribute.Int64("case_id", int64(caseID)))

	start := time.Now()
	defer func() { s.metrics.ObserveProjectionLatency(time.Since(start)) }()

	version, err := s.ledger.LatestSequence(ctx, caseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "latest sequence")
		return models.Grunnlag{}, fmt.Errorf("read latest version for case %s: %w", caseID, err)
	}
	if version == 0 {
		return models.Grunnlag{}, fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}

	if cached, ok := s.cached(ctx, caseID, applicant, version); ok {
		return cached, nil
	}

	events, err := s.ledger.CurrentEventsFor(ctx, caseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load events")
		return models.Grunnlag{}, fmt.Errorf("load case %s: %w", caseID, err)
	}

	g, err := s.project(ctx, caseID, events, applicant)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "project")
		return models.Grunnlag{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, applicant, g); err != nil {
			s.logger.WarnContext(ctx, "snapshot cache put failed", "case_id", caseID, "error", err)
		}
	}
	return g, nil
}

// ProjectionForCase derives the applicant from the case's roster fact.
func (s *Service) ProjectionForCase(ctx context.Context, caseID domain.CaseID) (models.Grunnlag, error) {
	events, err := s.ledger.CurrentEventsFor(ctx, caseID)
	if err != nil {
		return models.Grunnlag{}, fmt.Errorf("load case %s: %w", caseID, err)
	}
	if len(events) == 0 {
		return models.Grunnlag{}, fmt.Errorf("case %s: %w", caseID, sentinel.ErrNotFound)
	}
	return s.project(ctx, caseID, events, ApplicantFrom(events))
}

func (s *Service) project(ctx context.Context, caseID domain.CaseID, events []models.FactEvent, applicant domain.PersonID) (models.Grunnlag, error) {
	g, err := Project(models.RawGrunnlag{CaseID: caseID, Events: events}, applicant)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvariantViolation) {
			s.metrics.IncInvariantViolations()
			s.logger.ErrorContext(ctx, "CRITICAL: fact ledger violates group invariant",
				"case_id", caseID,
				"error", err,
			)
		}
		return models.Grunnlag{}, fmt.Errorf("project case %s: %w", caseID, err)
	}
	return g, nil
}

func (s *Service) cached(ctx context.Context, caseID domain.CaseID, applicant domain.PersonID, version int64) (models.Grunnlag, bool) {
	if s.cache == nil {
		return models.Grunnlag{}, false
	}
	g, ok, err := s.cache.Get(ctx, caseID, applicant, version)
	switch {
	case err != nil:
		s.metrics.IncSnapshotCache("error")
		s.logger.WarnContext(ctx, "snapshot cache get failed", "case_id", caseID, "error", err)
		return models.Grunnlag{}, false
	case !ok:
		s.metrics.IncSnapshotCache("miss")
		return models.Grunnlag{}, false
	}
	s.metrics.IncSnapshotCache("hit")
	return g, true
}
