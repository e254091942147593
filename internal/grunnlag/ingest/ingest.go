// Package ingest is the server's write path: it consumes fact batches from
// Kafka and appends them through the aggregate.
//
// Delivery is at least once. A batch is written in one transaction keyed by
// fact ids, so a redelivered batch fails with a conflict and is acknowledged
// as already applied. Malformed batches are logged and skipped; storage
// failures stop the consumer so the offset is not committed.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"grunnlag/internal/grunnlag/aggregate"
	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/platform/kafka"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/requestcontext"
)

// Result labels for the ingested batches counter.
const (
	ResultApplied   = "applied"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

// Loader opens the aggregate for a case. *aggregate.Factory implements it.
type Loader interface {
	LoadOrCreate(ctx context.Context, caseID domain.CaseID) (*aggregate.Aggregate, error)
}

// Batch is one inbound message: facts to append to a case, or an abort.
type Batch struct {
	CaseID    domain.CaseID `json:"case_id"`
	Actor     string        `json:"actor,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Facts     []models.Fact `json:"facts,omitempty"`
	Abort     bool          `json:"abort,omitempty"`
}

// Validate checks the batch before anything is written.
func (b Batch) Validate() error {
	if b.CaseID <= 0 {
		return fmt.Errorf("%w: case id must be positive", domain.ErrInvalidID)
	}
	if b.Abort {
		if len(b.Facts) > 0 {
			return errors.New("abort batch must not carry facts")
		}
		return nil
	}
	if len(b.Facts) == 0 {
		return errors.New("batch has no facts")
	}
	for _, f := range b.Facts {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Handler applies inbound batches. It implements kafka.Handler.
type Handler struct {
	loader  Loader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records batch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Handler writing through loader.
func New(loader Loader, opts ...Option) (*Handler, error) {
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	h := &Handler{loader: loader, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle decodes and applies one message. Only storage failures are returned.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	var b Batch
	if err := json.Unmarshal(msg.Value, &b); err != nil {
		h.reject(ctx, msg, fmt.Errorf("decode batch: %w", err))
		return nil
	}
	if err := b.Validate(); err != nil {
		h.reject(ctx, msg, err)
		return nil
	}

	requestID := b.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	ctx = requestcontext.WithRequestID(ctx, requestID)
	if b.Actor != "" {
		ctx = requestcontext.WithActor(ctx, b.Actor)
	}

	err := h.apply(ctx, b)
	switch {
	case err == nil:
		h.metrics.IncIngested(ResultApplied)
		h.logger.DebugContext(ctx, "fact batch applied",
			"case_id", b.CaseID,
			"facts", len(b.Facts),
			"abort", b.Abort,
		)
		return nil
	case errors.Is(err, sentinel.ErrConflict):
		h.metrics.IncIngested(ResultDuplicate)
		h.logger.InfoContext(ctx, "fact batch already applied",
			"case_id", b.CaseID,
			"offset", msg.Offset,
		)
		return nil
	case errors.Is(err, domain.ErrInvalidID):
		h.reject(ctx, msg, err)
		return nil
	default:
		h.metrics.IncIngested(ResultFailed)
		return fmt.Errorf("apply batch for case %s: %w", b.CaseID, err)
	}
}

func (h *Handler) apply(ctx context.Context, b Batch) error {
	agg, err := h.loader.LoadOrCreate(ctx, b.CaseID)
	if err != nil {
		return err
	}
	if b.Abort {
		return agg.Abort(ctx)
	}
	return agg.Append(ctx, b.Facts)
}

func (h *Handler) reject(ctx context.Context, msg *kafka.Message, err error) {
	h.metrics.IncIngested(ResultRejected)
	h.logger.WarnContext(ctx, "skipping malformed fact batch",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
}
