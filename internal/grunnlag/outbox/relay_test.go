package outbox_test

//go:generate mockgen -source=relay.go -destination=mocks/mocks.go -package=mocks Store,Republisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/outbox"
	"grunnlag/internal/grunnlag/outbox/mocks"
	"grunnlag/internal/grunnlag/projection"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

// =============================================================================
// Relay Test Suite
// =============================================================================
// Justification for unit tests: retry scheduling and dead-lettering are
// policy decisions made by the relay, independent of the SQL that stores them.

type RelaySuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	store       *mocks.MockStore
	republisher *mocks.MockRepublisher
	now         time.Time
	relay       *outbox.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.republisher = mocks.NewMockRepublisher(s.ctrl)
	s.now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	relay, err := outbox.NewRelay(s.store, s.republisher,
		outbox.WithBatchSize(10),
		outbox.WithMaxAttempts(3),
		outbox.WithClock(func() time.Time { return s.now }),
		outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.relay = relay
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func entry(caseID domain.CaseID, attempts int) outbox.Entry {
	return outbox.Entry{
		ID:           uuid.New(),
		Notification: models.Notification{CaseID: caseID, Kind: models.EventFactsChanged, Actor: "system"},
		Attempts:     attempts,
	}
}

func (s *RelaySuite) TestNewRelay() {
	_, err := outbox.NewRelay(nil, s.republisher)
	s.Require().Error(err)
	s.Contains(err.Error(), "store is required")

	_, err = outbox.NewRelay(s.store, nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "republisher is required")
}

func (s *RelaySuite) TestProcessOnce() {
	ctx := context.Background()

	s.Run("empty outbox", func() {
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return(nil, nil)
		n, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("published entries are marked processed", func() {
		a, b := entry(1, 0), entry(2, 0)
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return([]outbox.Entry{a, b}, nil)
		gomock.InOrder(
			s.republisher.EXPECT().Republish(gomock.Any(), a.Notification).Return(nil),
			s.store.EXPECT().MarkProcessed(gomock.Any(), a.ID, s.now).Return(nil),
			s.republisher.EXPECT().Republish(gomock.Any(), b.Notification).Return(nil),
			s.store.EXPECT().MarkProcessed(gomock.Any(), b.ID, s.now).Return(nil),
		)
		n, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("failure schedules a retry with backoff", func() {
		e := entry(3, 1)
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return([]outbox.Entry{e}, nil)
		s.republisher.EXPECT().Republish(gomock.Any(), e.Notification).Return(sentinel.ErrPublishFailed)
		s.store.EXPECT().MarkFailed(gomock.Any(), e.ID, 2, s.now.Add(2*time.Second), s.now, gomock.Any()).Return(nil)

		_, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
	})

	s.Run("exhausted attempts dead-letter", func() {
		e := entry(4, 2)
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return([]outbox.Entry{e}, nil)
		s.republisher.EXPECT().Republish(gomock.Any(), e.Notification).Return(sentinel.ErrPublishFailed)
		s.store.EXPECT().MarkFailed(gomock.Any(), e.ID, 3, time.Time{}, s.now, gomock.Any()).Return(nil)

		_, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
	})

	s.Run("invariant violation dead-letters immediately", func() {
		e := entry(5, 0)
		violation := &projection.InvariantError{CaseID: 5, FactType: models.FactTypeName}
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return([]outbox.Entry{e}, nil)
		s.republisher.EXPECT().Republish(gomock.Any(), e.Notification).Return(violation)
		s.store.EXPECT().MarkFailed(gomock.Any(), e.ID, 1, time.Time{}, s.now, gomock.Any()).Return(nil)

		_, err := s.relay.ProcessOnce(ctx)
		s.Require().NoError(err)
	})

	s.Run("store error stops the batch", func() {
		a, b := entry(6, 0), entry(7, 0)
		dbErr := errors.New("connection reset")
		s.store.EXPECT().Claim(gomock.Any(), s.now, 10).Return([]outbox.Entry{a, b}, nil)
		s.republisher.EXPECT().Republish(gomock.Any(), a.Notification).Return(nil)
		s.store.EXPECT().MarkProcessed(gomock.Any(), a.ID, s.now).Return(dbErr)

		_, err := s.relay.ProcessOnce(ctx)
		s.ErrorIs(err, dbErr)
	})
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	s.store.EXPECT().Claim(gomock.Any(), s.now, 10).DoAndReturn(
		func(context.Context, time.Time, int) ([]outbox.Entry, error) {
			cancel()
			return nil, nil
		}).MinTimes(1)

	s.NoError(s.relay.Run(ctx))
}

func (s *RelaySuite) TestBackoff() {
	s.Equal(time.Second, outbox.Backoff(0))
	s.Equal(time.Second, outbox.Backoff(1))
	s.Equal(4*time.Second, outbox.Backoff(3))
	s.Equal(256*time.Second, outbox.Backoff(9), "just under the cap")
	s.Equal(5*time.Minute, outbox.Backoff(10))
	s.Equal(5*time.Minute, outbox.Backoff(64))
}
