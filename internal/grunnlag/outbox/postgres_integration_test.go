//go:build integration

package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/outbox"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/platform/tx"
	"grunnlag/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *outbox.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = outbox.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostgresStoreSuite) notification(caseID int64, at time.Time) models.Notification {
	return models.Notification{CaseID: domain.CaseID(caseID), Kind: models.EventCreated, Actor: "Z990001", RequestID: "req", EnqueuedAt: at}
}

func (s *PostgresStoreSuite) TestEnqueueAndClaim() {
	ctx := context.Background()
	s.Require().NoError(s.store.Enqueue(ctx, s.notification(2, s.now.Add(-time.Second))))
	s.Require().NoError(s.store.Enqueue(ctx, s.notification(1, s.now.Add(-2*time.Second))))

	entries, err := s.store.Claim(ctx, s.now, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(domain.CaseID(1), entries[0].Notification.CaseID, "oldest first")
	s.Equal("Z990001", entries[0].Notification.Actor)

	s.Run("claimed rows are leased", func() {
		again, err := s.store.Claim(ctx, s.now, 10)
		s.Require().NoError(err)
		s.Empty(again)
	})

	s.Run("processed rows are counted", func() {
		s.Require().NoError(s.store.MarkProcessed(ctx, entries[0].ID, s.now))
		sum, err := s.store.Summary(ctx)
		s.Require().NoError(err)
		s.Equal(1, sum.Processed)
		s.Equal(1, sum.Pending)
		s.Require().NotNil(sum.OldestPendingAt)
	})

	s.Run("processing twice is rejected", func() {
		err := s.store.MarkProcessed(ctx, entries[0].ID, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestEnqueueJoinsTransaction() {
	ctx := context.Background()
	runner := tx.NewSQLRunner(s.postgres.DB, 0)
	boom := errors.New("boom")

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Enqueue(ctx, s.notification(1, s.now)); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	sum, err := s.store.Summary(ctx)
	s.Require().NoError(err)
	s.Zero(sum.Pending, "rolled back with the transaction")
}

func (s *PostgresStoreSuite) TestRetryDeadLetterAndRequeue() {
	ctx := context.Background()
	s.Require().NoError(s.store.Enqueue(ctx, s.notification(1, s.now.Add(-time.Minute))))
	entries, err := s.store.Claim(ctx, s.now, 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	id := entries[0].ID

	retryAt := s.now.Add(time.Second)
	s.Require().NoError(s.store.MarkFailed(ctx, id, 1, retryAt, s.now, "broker down"))

	notYet, err := s.store.Claim(ctx, s.now, 1)
	s.Require().NoError(err)
	s.Empty(notYet)

	due, err := s.store.Claim(ctx, retryAt, 1)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(1, due[0].Attempts)

	s.Require().NoError(s.store.MarkFailed(ctx, id, 2, time.Time{}, s.now, "broker down"))
	sum, err := s.store.Summary(ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Dead)
	s.Zero(sum.Pending + sum.Failed)

	n, err := s.store.Requeue(ctx, s.now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	revived, err := s.store.Claim(ctx, s.now, 1)
	s.Require().NoError(err)
	s.Require().Len(revived, 1)
	s.Zero(revived[0].Attempts)
}

func (s *PostgresStoreSuite) TestCorruptPayloadIsDeadLettered() {
	ctx := context.Background()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload)
		VALUES (gen_random_uuid(), 'sak', '1', 'grunnlag.created', '{"case_id":"not-a-number"}')
	`)
	s.Require().NoError(err)

	entries, err := s.store.Claim(ctx, s.now.Add(time.Second), 10)
	s.Require().NoError(err)
	s.Empty(entries)

	sum, err := s.store.Summary(ctx)
	s.Require().NoError(err)
	s.Equal(1, sum.Dead)
}
