package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"grunnlag/internal/grunnlag/aggregate"
	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/store"
	"grunnlag/internal/platform/database"
	"grunnlag/internal/platform/kafka"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/platform/tx"
	"grunnlag/pkg/requestcontext"
	fixtures "grunnlag/pkg/testutil"
)

// =============================================================================
// Ingest Handler Test Suite
// =============================================================================
// Justification for unit tests: the handler decides which inbound failures
// are skipped and which stop the consumer. Tests run against the SQLite ledger
// so redelivery hits the real uniqueness constraint and transaction rollback.

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) all() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.notes...)
}

type loaderFunc func(ctx context.Context, caseID domain.CaseID) (*aggregate.Aggregate, error)

func (f loaderFunc) LoadOrCreate(ctx context.Context, caseID domain.CaseID) (*aggregate.Aggregate, error) {
	return f(ctx, caseID)
}

type IngestSuite struct {
	suite.Suite
	ledger   *store.SQLiteLedger
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	handler  *Handler
	offset   int64
}

func TestIngestSuite(t *testing.T) {
	suite.Run(t, new(IngestSuite))
}

func (s *IngestSuite) SetupTest() {
	db, err := database.OpenSQLite(context.Background(), database.MemoryPath)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ledger = store.NewSQLiteLedger(db)
	s.notifier = &recordingNotifier{}
	s.metrics = metrics.New(nil)
	factory, err := aggregate.NewFactory(s.ledger,
		aggregate.WithTxRunner(tx.NewSQLRunner(db, 0)),
		aggregate.WithNotifier(s.notifier),
		aggregate.WithLogger(logger),
	)
	s.Require().NoError(err)
	s.handler, err = New(factory, WithMetrics(s.metrics), WithLogger(logger))
	s.Require().NoError(err)
	s.offset = 0
}

func (s *IngestSuite) message(v any) *kafka.Message {
	raw, ok := v.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(v)
		s.Require().NoError(err)
	}
	s.offset++
	return &kafka.Message{Topic: "grunnlag.fakta.v1", Partition: 0, Offset: s.offset, Value: raw}
}

func (s *IngestSuite) ingested(result string) float64 {
	return testutil.ToFloat64(s.metrics.IngestedBatches.WithLabelValues(result))
}

func (s *IngestSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
	s.Contains(err.Error(), "loader is required")
}

func (s *IngestSuite) TestHandle() {
	ctx := context.Background()

	s.Run("batch is appended and announced with the sender's actor", func() {
		s.SetupTest()
		batch := Batch{
			CaseID:    7,
			Actor:     "Z990001",
			RequestID: "req-7",
			Facts:     []models.Fact{fixtures.Language("NB"), fixtures.Name(fixtures.Applicant, "Kari", "Nordmann")},
		}

		s.Require().NoError(s.handler.Handle(ctx, s.message(batch)))

		latest, err := s.ledger.LatestSequence(ctx, 7)
		s.Require().NoError(err)
		s.Equal(int64(2), latest)
		notes := s.notifier.all()
		s.Require().Len(notes, 1)
		s.Equal(models.EventCreated, notes[0].Kind)
		s.Equal("Z990001", notes[0].Actor)
		s.Equal("req-7", notes[0].RequestID)
		s.Equal(1.0, s.ingested(ResultApplied))
	})

	s.Run("missing request id falls back to the record position", func() {
		s.SetupTest()
		msg := s.message(Batch{CaseID: 7, Facts: []models.Fact{fixtures.Language("NN")}})

		s.Require().NoError(s.handler.Handle(ctx, msg))

		notes := s.notifier.all()
		s.Require().Len(notes, 1)
		s.Equal("grunnlag.fakta.v1/0/1", notes[0].RequestID)
		s.Equal(requestcontext.SystemActor, notes[0].Actor)
	})

	s.Run("redelivered batch is acknowledged without writing twice", func() {
		s.SetupTest()
		batch := Batch{CaseID: 7, Facts: []models.Fact{fixtures.Language("NB"), fixtures.Language("SE")}}

		s.Require().NoError(s.handler.Handle(ctx, s.message(batch)))
		s.Require().NoError(s.handler.Handle(ctx, s.message(batch)))

		latest, err := s.ledger.LatestSequence(ctx, 7)
		s.Require().NoError(err)
		s.Equal(int64(2), latest)
		s.Len(s.notifier.all(), 1)
		s.Equal(1.0, s.ingested(ResultApplied))
		s.Equal(1.0, s.ingested(ResultDuplicate))
	})

	s.Run("abort batch announces without writing facts", func() {
		s.SetupTest()

		s.Require().NoError(s.handler.Handle(ctx, s.message(Batch{CaseID: 9, Abort: true})))

		latest, err := s.ledger.LatestSequence(ctx, 9)
		s.Require().NoError(err)
		s.Zero(latest)
		notes := s.notifier.all()
		s.Require().Len(notes, 1)
		s.Equal(models.EventAborted, notes[0].Kind)
	})

	s.Run("malformed batches are skipped", func() {
		s.SetupTest()
		invalid := fixtures.Language("NB")
		invalid.Type = ""

		for _, msg := range []*kafka.Message{
			s.message([]byte("{not json")),
			s.message(Batch{CaseID: 0, Facts: []models.Fact{fixtures.Language("NB")}}),
			s.message(Batch{CaseID: 7}),
			s.message(Batch{CaseID: 7, Abort: true, Facts: []models.Fact{fixtures.Language("NB")}}),
			s.message(Batch{CaseID: 7, Facts: []models.Fact{invalid}}),
		} {
			s.NoError(s.handler.Handle(ctx, msg))
		}

		latest, err := s.ledger.LatestSequence(ctx, 7)
		s.Require().NoError(err)
		s.Zero(latest)
		s.Empty(s.notifier.all())
		s.Equal(5.0, s.ingested(ResultRejected))
	})

	s.Run("storage failure stops the consumer", func() {
		s.SetupTest()
		h, err := New(loaderFunc(func(context.Context, domain.CaseID) (*aggregate.Aggregate, error) {
			return nil, sentinel.ErrUnavailable
		}), WithMetrics(s.metrics))
		s.Require().NoError(err)

		err = h.Handle(ctx, s.message(Batch{CaseID: 7, Facts: []models.Fact{fixtures.Language("NB")}}))
		s.ErrorIs(err, sentinel.ErrUnavailable)
		s.Contains(err.Error(), "apply batch for case 7")
		s.Equal(1.0, s.ingested(ResultFailed))
	})
}
