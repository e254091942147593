//go:build integration

package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"grunnlag/internal/grunnlag/cache"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/projection"
	"grunnlag/pkg/testutil"
	"grunnlag/pkg/testutil/containers"
)

type RedisSnapshotCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisSnapshotCache
}

func TestRedisSnapshotCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSnapshotCacheSuite))
}

func (s *RedisSnapshotCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	c, err := cache.NewRedisSnapshotCache(s.redis.Client, time.Minute)
	s.Require().NoError(err)
	s.cache = c
}

func (s *RedisSnapshotCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSnapshotCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	events := testutil.Events(3,
		testutil.Roster(testutil.Applicant, testutil.Deceased),
		testutil.Name(testutil.Applicant, "Kari", "Nordmann"),
		testutil.Address(testutil.Deceased, "Storgata 1", "2010-01-01", "2015-12-31"),
		testutil.Address(testutil.Deceased, "Lillegata 2", "2016-01-01", ""),
	)
	g, err := projection.Project(models.RawGrunnlag{CaseID: 3, Events: events}, testutil.Applicant)
	s.Require().NoError(err)

	s.Require().NoError(s.cache.Put(ctx, testutil.Applicant, g))

	got, ok, err := s.cache.Get(ctx, 3, testutil.Applicant, g.Metadata.LatestVersion)
	s.Require().NoError(err)
	s.Require().True(ok)
	want, err := json.Marshal(g)
	s.Require().NoError(err)
	have, err := json.Marshal(got)
	s.Require().NoError(err)
	s.JSONEq(string(want), string(have))
	s.Equal(models.NameValue{First: "Kari", Last: "Nordmann"}, got.Applicant[models.FactTypeName].Current.Value)

	ttl, err := s.redis.Client.TTL(ctx, cache.Key(3, testutil.Applicant, g.Metadata.LatestVersion)).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisSnapshotCacheSuite) TestOtherVersionMisses() {
	ctx := context.Background()
	g, err := projection.Project(models.RawGrunnlag{CaseID: 4, Events: testutil.Events(4, testutil.Language("NB"))}, "")
	s.Require().NoError(err)
	s.Require().NoError(s.cache.Put(ctx, "", g))

	_, ok, err := s.cache.Get(ctx, 4, "", g.Metadata.LatestVersion+1)
	s.Require().NoError(err)
	s.False(ok)
}
