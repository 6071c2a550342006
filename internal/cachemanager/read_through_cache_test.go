package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCacheManager struct {
	mock.Mock
}

func (m *mockCacheManager) Get(ctx context.Context, key string) (*resolved, bool) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*resolved), args.Bool(1)
}

func (m *mockCacheManager) Set(ctx context.Context, key string, value *resolved, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockCacheManager) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCacheManager) Count() int {
	return m.Called().Int(0)
}

type lookup struct {
	Tags []string
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	managerMock := &mockCacheManager{}

	cache := NewReadThroughCache[string, *resolved, lookup](
		managerMock,
		func(ctx context.Context, input lookup) (*resolved, error) {
			return &resolved{Name: input.Tags[0]}, nil
		},
		true,
	)

	got, hit, err := cache.Get(context.Background(), "Int", lookup{Tags: []string{"Int"}}, NoExpiration)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, &resolved{Name: "Int"}, got)
	managerMock.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestReadThroughCache_Get_WithValueInCache(t *testing.T) {
	managerMock := &mockCacheManager{}
	cached := &resolved{Name: "cached"}
	managerMock.On("Get", mock.Anything, "Int").Return(cached, true)

	calls := 0
	cache := NewReadThroughCache[string, *resolved, lookup](
		managerMock,
		func(ctx context.Context, input lookup) (*resolved, error) {
			calls++
			return &resolved{Name: "fresh"}, nil
		},
		false,
	)

	got, hit, err := cache.Get(context.Background(), "Int", lookup{}, NoExpiration)
	require.NoError(t, err)
	require.True(t, hit)
	require.Same(t, cached, got)
	require.Zero(t, calls)
	managerMock.AssertExpectations(t)
}

func TestReadThroughCache_Get_MissStoresValue(t *testing.T) {
	managerMock := &mockCacheManager{}
	managerMock.On("Get", mock.Anything, "Int").Return(nil, false)
	managerMock.On("Set", mock.Anything, "Int", &resolved{Name: "fresh"}, NoExpiration).Return()

	cache := NewReadThroughCache[string, *resolved, lookup](
		managerMock,
		func(ctx context.Context, input lookup) (*resolved, error) {
			return &resolved{Name: "fresh"}, nil
		},
		false,
	)

	got, hit, err := cache.Get(context.Background(), "Int", lookup{}, NoExpiration)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "fresh", got.Name)
	managerMock.AssertExpectations(t)
}

func TestReadThroughCache_Get_ErrorIsNotCached(t *testing.T) {
	managerMock := &mockCacheManager{}
	managerMock.On("Get", mock.Anything, "Str").Return(nil, false)

	boom := errors.New("no match")
	cache := NewReadThroughCache[string, *resolved, lookup](
		managerMock,
		func(ctx context.Context, input lookup) (*resolved, error) {
			return nil, boom
		},
		false,
	)

	_, _, err := cache.Get(context.Background(), "Str", lookup{}, NoExpiration)
	require.ErrorIs(t, err, boom)
	managerMock.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_InvalidateAndLen(t *testing.T) {
	inner := NewInMemoryCacheManager[string, *resolved]("resolution", DefaultExpiration, DefaultCleanupInterval)
	cache := NewReadThroughCache[string, *resolved, lookup](
		inner,
		func(ctx context.Context, input lookup) (*resolved, error) {
			return &resolved{Name: input.Tags[0]}, nil
		},
		false,
	)

	_, _, err := cache.Get(context.Background(), "Int", lookup{Tags: []string{"Int"}}, NoExpiration)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Invalidate(context.Background()))
	require.Zero(t, cache.Len())
}
