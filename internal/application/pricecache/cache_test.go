package pricecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
}

func (f *fakeFetcher) FetchPrices(_ context.Context, _ []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCache_WarmAndRead(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"tok-1": 0.55, "tok-2": 0.45}}
	cache := New(fetcher, 15*time.Second)

	require.NoError(t, cache.Warm(context.Background(), []string{"tok-1", "tok-2"}))

	price, age, ok := cache.Price("tok-1")
	require.True(t, ok)
	assert.Equal(t, 0.55, price)
	assert.Less(t, age, time.Second)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_UnknownToken(t *testing.T) {
	cache := New(&fakeFetcher{}, 15*time.Second)

	_, _, ok := cache.Price("missing")
	assert.False(t, ok)
}

func TestCache_IntervalGuard(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"tok-1": 0.55}}
	cache := New(fetcher, 15*time.Second)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Refresh(context.Background(), []string{"tok-1"}))
	assert.Equal(t, 1, fetcher.callCount())

	// dentro del intervalo: se salta, no se encola
	now = now.Add(5 * time.Second)
	require.NoError(t, cache.Refresh(context.Background(), []string{"tok-1"}))
	assert.Equal(t, 1, fetcher.callCount())

	// pasado el intervalo: refresca de nuevo
	now = now.Add(11 * time.Second)
	require.NoError(t, cache.Refresh(context.Background(), []string{"tok-1"}))
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCache_WarmBypassesInterval(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"tok-1": 0.55}}
	cache := New(fetcher, time.Hour)

	require.NoError(t, cache.Refresh(context.Background(), []string{"tok-1"}))
	require.NoError(t, cache.Warm(context.Background(), []string{"tok-1"}))

	assert.Equal(t, 2, fetcher.callCount())
}

func TestCache_StaleReadSurvivesFetchError(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"tok-1": 0.55}}
	cache := New(fetcher, time.Nanosecond)

	require.NoError(t, cache.Warm(context.Background(), []string{"tok-1"}))

	// el siguiente refresco falla; la lectura sigue sirviendo el valor viejo
	fetcher.mu.Lock()
	fetcher.err = errors.New("rate limited")
	fetcher.mu.Unlock()
	assert.Error(t, cache.Warm(context.Background(), []string{"tok-1"}))

	price, _, ok := cache.Price("tok-1")
	require.True(t, ok)
	assert.Equal(t, 0.55, price)
}

func TestCache_AgeReflectsObservationTime(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"tok-1": 0.55}}
	cache := New(fetcher, 15*time.Second)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Warm(context.Background(), []string{"tok-1"}))

	now = now.Add(42 * time.Second)
	_, age, ok := cache.Price("tok-1")
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, age)
}

func TestCache_EmptyTokenListIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{}
	cache := New(fetcher, 15*time.Second)

	require.NoError(t, cache.Warm(context.Background(), nil))
	assert.Equal(t, 0, fetcher.callCount())
}
