package projection

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Ledger,SnapshotCache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/projection/mocks"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
	"grunnlag/pkg/testutil"
)

// =============================================================================
// Projection Service Test Suite
// =============================================================================
// Justification for unit tests: the service orders the version lookup, the
// snapshot cache and the ledger load. Tests verify NotFound handling, cache
// hit/miss paths, and that cache failures never fail a query.

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ledger  *mocks.MockLedger
	cache   *mocks.MockSnapshotCache
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.cache = mocks.NewMockSnapshotCache(s.ctrl)
	s.ctx = context.Background()

	var err error
	s.service, err = NewService(s.ledger,
		WithSnapshotCache(s.cache),
		WithMetrics(metrics.New(nil)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	_, err := NewService(nil)
	s.Error(err)
	s.Contains(err.Error(), "ledger is required")
}

func (s *ServiceSuite) TestProjectionFor() {
	events := testutil.Events(caseID,
		testutil.Name(testutil.Applicant, "A", "One"),
		testutil.Name(testutil.Applicant, "B", "Two"),
	)

	s.Run("unknown case is NotFound", func() {
		s.ledger.EXPECT().LatestSequence(gomock.Any(), domain.CaseID(caseID)).Return(int64(0), nil)

		_, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("cache miss projects and stores the snapshot", func() {
		s.ledger.EXPECT().LatestSequence(gomock.Any(), gomock.Any()).Return(int64(2), nil)
		s.cache.EXPECT().Get(gomock.Any(), gomock.Any(), testutil.Applicant, int64(2)).Return(models.Grunnlag{}, false, nil)
		s.ledger.EXPECT().CurrentEventsFor(gomock.Any(), gomock.Any()).Return(events[1:], nil)
		s.cache.EXPECT().Put(gomock.Any(), testutil.Applicant, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ any, g models.Grunnlag) error {
				s.Equal(int64(2), g.Metadata.LatestVersion)
				return nil
			})

		g, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.Require().NoError(err)
		s.Equal(models.NameValue{First: "B", Last: "Two"}, g.Applicant[models.FactTypeName].Current.Value)
	})

	s.Run("cache hit skips the ledger load", func() {
		cached := models.Grunnlag{Metadata: models.Metadata{CaseID: caseID, LatestVersion: 2}}
		s.ledger.EXPECT().LatestSequence(gomock.Any(), gomock.Any()).Return(int64(2), nil)
		s.cache.EXPECT().Get(gomock.Any(), gomock.Any(), testutil.Applicant, int64(2)).Return(cached, true, nil)

		g, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.Require().NoError(err)
		s.Equal(cached, g)
	})

	s.Run("cache failures are ignored", func() {
		s.ledger.EXPECT().LatestSequence(gomock.Any(), gomock.Any()).Return(int64(2), nil)
		s.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(models.Grunnlag{}, false, errors.New("redis down"))
		s.ledger.EXPECT().CurrentEventsFor(gomock.Any(), gomock.Any()).Return(events[1:], nil)
		s.cache.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		_, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.NoError(err)
	})

	s.Run("storage failure propagates unchanged", func() {
		s.ledger.EXPECT().LatestSequence(gomock.Any(), gomock.Any()).Return(int64(0), sentinel.ErrUnavailable)

		_, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("invariant violation aborts and is not cached", func() {
		mixed := testutil.Events(caseID,
			testutil.Address(testutil.Applicant, "x", "2020-01-01", ""),
			models.NewConstantFact(models.FactTypeAddress, testutil.Applicant, models.AddressValue{}, testutil.Source()),
		)
		s.ledger.EXPECT().LatestSequence(gomock.Any(), gomock.Any()).Return(int64(2), nil)
		s.cache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(models.Grunnlag{}, false, nil)
		s.ledger.EXPECT().CurrentEventsFor(gomock.Any(), gomock.Any()).Return(mixed, nil)

		_, err := s.service.ProjectionFor(s.ctx, caseID, testutil.Applicant)
		s.ErrorIs(err, sentinel.ErrInvariantViolation)
	})
}

func (s *ServiceSuite) TestProjectionForCase() {
	s.Run("derives the applicant from the roster", func() {
		events := testutil.Events(caseID,
			testutil.Roster(testutil.Applicant, testutil.Deceased),
			testutil.Name(testutil.Applicant, "A", "One"),
			testutil.Name(testutil.Deceased, "B", "Two"),
		)
		s.ledger.EXPECT().CurrentEventsFor(gomock.Any(), gomock.Any()).Return(events, nil)

		g, err := s.service.ProjectionForCase(s.ctx, caseID)
		s.Require().NoError(err)
		s.Contains(g.Applicant, models.FactTypeName)
		s.Len(g.Relatives, 1)
	})

	s.Run("empty case is NotFound", func() {
		s.ledger.EXPECT().CurrentEventsFor(gomock.Any(), gomock.Any()).Return(nil, nil)

		_, err := s.service.ProjectionForCase(s.ctx, caseID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
