package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

type stubCacheRepo struct {
	getErr  error
	sets    map[string]time.Duration
	deleted []string
}

func (s *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return s.getErr
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.sets == nil {
		s.sets = map[string]time.Duration{}
	}
	s.sets[key] = ttl
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	return nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, 0, nil, false)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.sets)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceMissAndFailure(t *testing.T) {
	repo := &stubCacheRepo{getErr: appErrors.ErrCacheMiss}
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)

	repo.getErr = errors.New("connection refused")
	hit, err = svc.Get(context.Background(), "k", &struct{}{})
	assert.Error(t, err)
	assert.False(t, hit)

	repo.getErr = nil
	hit, err = svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestCacheServiceDefaultTTLAndInvalidate(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, 3*time.Minute, nil, true)
	require.NoError(t, svc.Set(context.Background(), "risk:s:30d", 1, 0))
	assert.Equal(t, 3*time.Minute, repo.sets["risk:s:30d"])

	require.NoError(t, svc.Invalidate(context.Background(), "risk:s:*"))
	assert.Equal(t, []string{"risk:s:*"}, repo.deleted)
}
