package repository

import (
	"context"
	"testing"
	"time"

	"golang-stock-backtester/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func fullHistory(ticker string, days int) *domain.Snapshot {
	snap := &domain.Snapshot{Ticker: ticker, AsOf: day(days - 1)}
	for i := 0; i < days; i++ {
		snap.Prices = append(snap.Prices, domain.PriceBar{
			Date: day(i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
		})
	}
	return snap
}

func TestMemoryProviderTruncatesAtAsOf(t *testing.T) {
	p, err := NewMemoryProvider(map[string]*domain.Snapshot{"7203": fullHistory("7203", 10)})
	require.NoError(t, err)

	snap, err := p.Get(context.Background(), "7203", day(4))
	require.NoError(t, err)
	assert.Len(t, snap.Prices, 5, "only bars up to the as-of date are visible")
	assert.Equal(t, day(4), snap.AsOf)
	for _, bar := range snap.Prices {
		assert.False(t, bar.Date.After(day(4)))
	}
}

func TestMemoryProviderUnknownTicker(t *testing.T) {
	p, err := NewMemoryProvider(map[string]*domain.Snapshot{"7203": fullHistory("7203", 10)})
	require.NoError(t, err)

	_, err = p.Get(context.Background(), "9999", day(4))
	assert.Error(t, err)
}

func TestMemoryProviderRejectsInvalidHistory(t *testing.T) {
	bad := fullHistory("7203", 10)
	bad.AsOf = day(3) // bars past the as-of date

	_, err := NewMemoryProvider(map[string]*domain.Snapshot{"7203": bad})
	assert.Error(t, err)

	_, err = NewMemoryProvider(map[string]*domain.Snapshot{"7203": nil})
	assert.Error(t, err)
}

// countingProvider tracks pass-throughs so cache hits are observable.
type countingProvider struct {
	inner SnapshotProvider
	calls int
}

func (c *countingProvider) Get(ctx context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error) {
	c.calls++
	return c.inner.Get(ctx, ticker, asOf)
}

func TestCachingProviderServesFromCache(t *testing.T) {
	inner, err := NewMemoryProvider(map[string]*domain.Snapshot{"7203": fullHistory("7203", 10)})
	require.NoError(t, err)
	counting := &countingProvider{inner: inner}
	p := NewCachingProvider(counting, time.Minute)

	first, err := p.Get(context.Background(), "7203", day(4))
	require.NoError(t, err)
	second, err := p.Get(context.Background(), "7203", day(4))
	require.NoError(t, err)

	assert.Equal(t, 1, counting.calls, "the second read is a cache hit")
	assert.Equal(t, first, second)

	// A different as-of date is a different cache key.
	_, err = p.Get(context.Background(), "7203", day(6))
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
}

func TestCachingProviderDoesNotCacheErrors(t *testing.T) {
	inner, err := NewMemoryProvider(map[string]*domain.Snapshot{})
	require.NoError(t, err)
	counting := &countingProvider{inner: inner}
	p := NewCachingProvider(counting, time.Minute)

	_, err = p.Get(context.Background(), "9999", day(4))
	require.Error(t, err)
	_, err = p.Get(context.Background(), "9999", day(4))
	require.Error(t, err)
	assert.Equal(t, 2, counting.calls, "failed lookups go back to the source")
}
