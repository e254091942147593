package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

// InMemoryLedger is a process-local ledger for tests and local tooling. It
// follows the same supersession rules as the SQL ledgers.
type InMemoryLedger struct {
	mu      sync.RWMutex
	events  map[domain.CaseID][]models.FactEvent
	factIDs map[domain.FactID]struct{}
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		events:  make(map[domain.CaseID][]models.FactEvent),
		factIDs: make(map[domain.FactID]struct{}),
	}
}

// Append stores fact at the next sequence number of caseID.
func (l *InMemoryLedger) Append(_ context.Context, caseID domain.CaseID, fact models.Fact) (int64, error) {
	if err := fact.Validate(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.factIDs[fact.ID]; dup {
		return 0, fmt.Errorf("append fact %s: %w", fact.ID, sentinel.ErrConflict)
	}
	seq := int64(len(l.events[caseID]) + 1)
	l.events[caseID] = append(l.events[caseID], models.FactEvent{Fact: fact, CaseID: caseID, SequenceNumber: seq})
	l.factIDs[fact.ID] = struct{}{}
	return seq, nil
}

// CurrentEventsFor returns the rows not superseded by a later constant row of
// the same person and fact type. Periodized rows are never superseded.
func (l *InMemoryLedger) CurrentEventsFor(_ context.Context, caseID domain.CaseID) ([]models.FactEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.events[caseID]
	out := make([]models.FactEvent, 0, len(all))
	for i, ev := range all {
		if ev.Fact.IsPeriodized() || !supersededIn(all[i+1:], ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func supersededIn(later []models.FactEvent, ev models.FactEvent) bool {
	for _, newer := range later {
		if !newer.Fact.IsPeriodized() &&
			newer.Fact.Type == ev.Fact.Type &&
			newer.Fact.PersonID == ev.Fact.PersonID {
			return true
		}
	}
	return false
}

// EventsFor returns the full history of caseID, optionally restricted to types.
func (l *InMemoryLedger) EventsFor(_ context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.FactEvent, 0, len(l.events[caseID]))
	for _, ev := range l.events[caseID] {
		if len(types) == 0 || slices.Contains(types, ev.Fact.Type) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// LatestSequence returns the highest sequence number of caseID, or 0.
func (l *InMemoryLedger) LatestSequence(_ context.Context, caseID domain.CaseID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.events[caseID])), nil
}
