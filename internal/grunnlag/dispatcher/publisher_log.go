package dispatcher

import (
	"context"
	"log/slog"

	"grunnlag/internal/grunnlag/models"
)

// LogPublisher writes a summary of each envelope to the log. It is used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher. A nil logger uses slog.Default.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, env models.Envelope) error {
	p.logger.InfoContext(ctx, "grunnlag changed",
		"event_kind", env.Kind,
		"case_id", env.CaseID,
		"latest_version", env.Grunnlag.Metadata.LatestVersion,
		"applicant_facts", len(env.Grunnlag.Applicant),
		"relatives", len(env.Grunnlag.Relatives),
		"case_facts", len(env.Grunnlag.CaseFacts),
		"actor", env.Actor,
		"request_id", env.RequestID,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
