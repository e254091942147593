package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"grunnlag/internal/grunnlag/models"
)

// Producer is the subset of the Kafka producer used for publication.
type Producer interface {
	Produce(ctx context.Context, key, value []byte, headers map[string]string) error
	Close() error
}

// Record headers carried alongside each envelope.
const (
	HeaderEventKind = "event_kind"
	HeaderActor     = "actor"
	HeaderRequestID = "request_id"
)

// KafkaPublisher writes envelopes as JSON keyed by case id, so every
// publication of a case lands on the same partition in order.
type KafkaPublisher struct {
	producer Producer
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(producer Producer) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	return &KafkaPublisher{producer: producer}, nil
}

// Publish produces env synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, env models.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	headers := map[string]string{
		HeaderEventKind: string(env.Kind),
		HeaderActor:     env.Actor,
	}
	if env.RequestID != "" {
		headers[HeaderRequestID] = env.RequestID
	}
	return p.producer.Produce(ctx, []byte(env.CaseID.String()), value, headers)
}

// Close releases the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
