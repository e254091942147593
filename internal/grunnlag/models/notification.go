package models

import (
	"fmt"
	"time"

	"grunnlag/pkg/domain"
)

// EventKind names why a case's projection is being republished.
type EventKind string

const (
	EventCreated      EventKind = "grunnlag.created"
	EventFactsChanged EventKind = "grunnlag.facts_changed"
	EventAborted      EventKind = "grunnlag.aborted"
)

// ParseEventKind validates a stored or received kind.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventCreated, EventFactsChanged, EventAborted:
		return k, nil
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Notification is the lightweight signal that a case changed. It captures the
// execution context of the write explicitly so the background publisher never
// relies on ambient state.
type Notification struct {
	CaseID     domain.CaseID `json:"case_id"`
	Kind       EventKind     `json:"event_kind"`
	Actor      string        `json:"actor"`
	RequestID  string        `json:"request_id,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Envelope is what downstream consumers receive: the current projection of the
// case together with the kind of change that triggered it. The snapshot reflects
// the ledger at publish time, which may already include later writes.
type Envelope struct {
	Kind        EventKind     `json:"event_kind"`
	CaseID      domain.CaseID `json:"case_id"`
	Grunnlag    Grunnlag      `json:"grunnlag"`
	Actor       string        `json:"actor"`
	RequestID   string        `json:"request_id,omitempty"`
	PublishedAt time.Time     `json:"published_at"`
}
