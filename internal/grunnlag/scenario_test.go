package grunnlag_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grunnlag/internal/grunnlag/aggregate"
	"grunnlag/internal/grunnlag/dispatcher"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/projection"
	"grunnlag/internal/grunnlag/store"
	"grunnlag/internal/platform/database"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/platform/tx"
	"grunnlag/pkg/testutil"
)

// End-to-end scenarios over the SQLite ledger: aggregate writes, projection
// reads and dispatcher publication wired the way the server wires them.

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []models.Envelope
	closed    bool
}

func (p *recordingPublisher) Publish(_ context.Context, env models.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type harness struct {
	ledger      *store.SQLiteLedger
	factory     *aggregate.Factory
	projections *projection.Service
	dispatcher  *dispatcher.Dispatcher
	published   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.OpenSQLite(ctx, database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		ledger:    store.NewSQLiteLedger(db),
		published: &recordingPublisher{},
	}
	republisher, err := dispatcher.NewRepublisher(h.ledger, h.published, dispatcher.WithRepublisherLogger(logger))
	require.NoError(t, err)
	h.dispatcher, err = dispatcher.New(republisher, dispatcher.WithLogger(logger))
	require.NoError(t, err)
	h.factory, err = aggregate.NewFactory(h.ledger,
		aggregate.WithTxRunner(tx.NewSQLRunner(db, 0)),
		aggregate.WithNotifier(h.dispatcher),
		aggregate.WithLogger(logger),
	)
	require.NoError(t, err)
	h.projections, err = projection.NewService(h.ledger, projection.WithLogger(logger))
	require.NoError(t, err)
	return h
}

func (h *harness) appendFacts(t *testing.T, caseID domain.CaseID, facts ...models.Fact) {
	t.Helper()
	agg, err := h.factory.LoadOrCreate(context.Background(), caseID)
	require.NoError(t, err)
	require.NoError(t, agg.Append(context.Background(), facts))
}

func TestScenario_ConstantFactLatestWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const caseID domain.CaseID = 101

	testutil.Given(t, "a name written twice for the applicant", func(t *testing.T) {
		h.appendFacts(t, caseID, testutil.Roster(testutil.Applicant))
		h.appendFacts(t, caseID, testutil.Name(testutil.Applicant, "A", "Hansen"))
		h.appendFacts(t, caseID, testutil.Name(testutil.Applicant, "B", "Hansen"))
	})

	testutil.Then(t, "the projection shows only the latest name", func(t *testing.T) {
		g, err := h.projections.ProjectionFor(ctx, caseID, testutil.Applicant)
		require.NoError(t, err)

		slot, ok := g.Applicant[models.FactTypeName]
		require.True(t, ok)
		assert.Equal(t, models.KindConstant, slot.Kind)
		require.NotNil(t, slot.Current)
		assert.Equal(t, models.NameValue{First: "B", Last: "Hansen"}, slot.Current.Value)
		assert.Equal(t, int64(3), slot.Current.SequenceNumber)
		assert.Equal(t, int64(3), g.Metadata.LatestVersion)
	})

	testutil.And(t, "the ledger still holds both versions", func(t *testing.T) {
		history, err := h.ledger.EventsFor(ctx, caseID, models.FactTypeName)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.NameValue{First: "A", Last: "Hansen"}, history[0].Fact.Value)

		current, err := h.ledger.CurrentEventsFor(ctx, caseID)
		require.NoError(t, err)
		assert.Len(t, current, 2, "roster and latest name")
	})
}

func TestScenario_PeriodizedFactsAccumulate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const caseID domain.CaseID = 102

	testutil.Given(t, "two address intervals for the applicant", func(t *testing.T) {
		h.appendFacts(t, caseID,
			testutil.Roster(testutil.Applicant),
			testutil.Address(testutil.Applicant, "Storgata 1", "2020-01-01", "2020-06-01"),
			testutil.Address(testutil.Applicant, "Lillegata 2", "2020-06-02", ""),
		)
	})

	testutil.Then(t, "both intervals are exposed in append order", func(t *testing.T) {
		g, err := h.projections.ProjectionFor(ctx, caseID, testutil.Applicant)
		require.NoError(t, err)

		slot := g.Applicant[models.FactTypeAddress]
		assert.Equal(t, models.KindPeriodized, slot.Kind)
		assert.Nil(t, slot.Current)
		require.Len(t, slot.Periods, 2)

		assert.Equal(t, testutil.MustDate("2020-01-01"), slot.Periods[0].From)
		require.NotNil(t, slot.Periods[0].To)
		assert.Equal(t, testutil.MustDate("2020-06-01"), *slot.Periods[0].To)
		assert.Equal(t, models.AddressValue{Lines: []string{"Storgata 1"}}, slot.Periods[0].Value)

		assert.Equal(t, testutil.MustDate("2020-06-02"), slot.Periods[1].From)
		assert.Nil(t, slot.Periods[1].To)
	})
}

func TestScenario_LoadOrCreateOnUnknownCase(t *testing.T) {
	h := newHarness(t)

	agg, err := h.factory.LoadOrCreate(context.Background(), 103)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseID(103), agg.CaseID())
	assert.Zero(t, agg.Version())
	assert.Empty(t, agg.SerializableView().Events)

	_, err = h.projections.ProjectionForCase(context.Background(), 103)
	assert.ErrorIs(t, err, sentinel.ErrNotFound, "projection distinguishes an unknown case")
}

func TestScenario_DispatcherPublishesLedgerStateAtDequeue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	const caseID domain.CaseID = 104

	testutil.Given(t, "two writes queued before the worker runs", func(t *testing.T) {
		h.appendFacts(t, caseID, testutil.Roster(testutil.Applicant), testutil.Name(testutil.Applicant, "A", "Berg"))
		h.appendFacts(t, caseID, testutil.Name(testutil.Applicant, "B", "Berg"))
		assert.Equal(t, 2, h.dispatcher.Pending())
	})

	testutil.When(t, "the dispatcher drains and closes", func(t *testing.T) {
		runErr := make(chan error, 1)
		go func() { runErr <- h.dispatcher.Run(ctx) }()

		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, h.dispatcher.Close(closeCtx))
		require.NoError(t, <-runErr)
	})

	testutil.Then(t, "both notifications are published in order from the current ledger", func(t *testing.T) {
		h.published.mu.Lock()
		defer h.published.mu.Unlock()

		require.Len(t, h.published.envelopes, 2)
		first, second := h.published.envelopes[0], h.published.envelopes[1]
		assert.Equal(t, models.EventCreated, first.Kind)
		assert.Equal(t, models.EventFactsChanged, second.Kind)

		for _, env := range h.published.envelopes {
			assert.Equal(t, caseID, env.CaseID)
			assert.Equal(t, int64(3), env.Grunnlag.Metadata.LatestVersion,
				"the first snapshot already includes the later write")
			assert.Equal(t, models.NameValue{First: "B", Last: "Berg"},
				env.Grunnlag.Applicant[models.FactTypeName].Current.Value)
		}
		assert.True(t, h.published.closed)
		assert.Equal(t, dispatcher.StateStopped, h.dispatcher.State())
	})

	testutil.And(t, "later writes are rejected by the stopped dispatcher but still stored", func(t *testing.T) {
		h.appendFacts(t, caseID, testutil.Language("nb"))
		latest, err := h.ledger.LatestSequence(ctx, caseID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), latest)
	})
}
