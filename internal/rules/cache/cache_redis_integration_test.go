//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"eventgate/internal/rules/cache"
	"eventgate/internal/rules/models"
	"eventgate/pkg/domain"
	"eventgate/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Redis
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) key(eventID, identityID string) cache.Key {
	event := domain.EntityRef{Type: "node", ID: eventID}
	if identityID == "" {
		return cache.NewKey(event, models.TriggerRegister, nil)
	}
	return cache.NewKey(event, models.TriggerRegister, &domain.EntityRef{Type: "user", ID: identityID})
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()

	_, hit, err := s.cache.Get(ctx, s.key("1", "alice"))
	s.Require().NoError(err)
	s.False(hit)

	s.Require().NoError(s.cache.Put(ctx, s.key("1", "alice"),
		models.NewOperationSet(models.OperationCreate, models.OperationView)))

	ops, hit, err := s.cache.Get(ctx, s.key("1", "alice"))
	s.Require().NoError(err)
	s.Require().True(hit)
	s.True(ops.Has(models.OperationCreate))
	s.True(ops.Has(models.OperationView))

	_, hit, err = s.cache.Get(ctx, s.key("1", "bob"))
	s.Require().NoError(err)
	s.False(hit, "a different identity misses")
}

func (s *RedisCacheSuite) TestEmptySetRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, s.key("1", "alice"), models.NewOperationSet()))

	ops, hit, err := s.cache.Get(ctx, s.key("1", "alice"))
	s.Require().NoError(err)
	s.Require().True(hit, "an empty grant set is a valid cached result")
	s.Equal(0, ops.Len())
}

func (s *RedisCacheSuite) TestInvalidateDropsWholeEvent() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, s.key("1", "alice"), models.NewOperationSet(models.OperationCreate)))
	s.Require().NoError(s.cache.Put(ctx, s.key("1", ""), models.NewOperationSet(models.OperationView)))
	s.Require().NoError(s.cache.Put(ctx, s.key("2", "alice"), models.NewOperationSet(models.OperationCreate)))

	s.Require().NoError(s.cache.Invalidate(ctx, domain.EntityRef{Type: "node", ID: "1"}))

	_, hit, err := s.cache.Get(ctx, s.key("1", "alice"))
	s.Require().NoError(err)
	s.False(hit)

	_, hit, err = s.cache.Get(ctx, s.key("1", ""))
	s.Require().NoError(err)
	s.False(hit)

	_, hit, err = s.cache.Get(ctx, s.key("2", "alice"))
	s.Require().NoError(err)
	s.True(hit, "other events keep their entries")
}

func (s *RedisCacheSuite) TestInvalidateType() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, s.key("1", "alice"), models.NewOperationSet(models.OperationCreate)))
	s.Require().NoError(s.cache.Put(ctx, s.key("2", "bob"), models.NewOperationSet(models.OperationCreate)))

	groupKey := cache.NewKey(domain.EntityRef{Type: "group", ID: "1"}, models.TriggerRegister, nil)
	s.Require().NoError(s.cache.Put(ctx, groupKey, models.NewOperationSet(models.OperationView)))

	s.Require().NoError(s.cache.InvalidateType(ctx, "node"))

	_, hit, err := s.cache.Get(ctx, s.key("1", "alice"))
	s.Require().NoError(err)
	s.False(hit)

	_, hit, err = s.cache.Get(ctx, s.key("2", "bob"))
	s.Require().NoError(err)
	s.False(hit)

	_, hit, err = s.cache.Get(ctx, groupKey)
	s.Require().NoError(err)
	s.True(hit, "entries of other entity types survive")
}

func (s *RedisCacheSuite) TestExpiry() {
	ctx := context.Background()
	shortLived := cache.NewRedis(s.redis.Client, time.Second)
	s.Require().NoError(shortLived.Put(ctx, s.key("1", "alice"), models.NewOperationSet(models.OperationCreate)))

	s.Require().Eventually(func() bool {
		_, hit, err := shortLived.Get(ctx, s.key("1", "alice"))
		return err == nil && !hit
	}, 5*time.Second, 100*time.Millisecond)
}
