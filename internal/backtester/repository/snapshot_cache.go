package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/pkg/common"

	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
)

// cachingProvider wraps a SnapshotProvider with an in-process cache. The
// live path rebuilds the same (ticker, asOf) snapshot for entry and exit
// evaluation; caching keeps that to one database pass.
type cachingProvider struct {
	next  SnapshotProvider
	cache *gocache.Cache
}

// NewCachingProvider decorates a provider with an in-process cache.
func NewCachingProvider(next SnapshotProvider, ttl time.Duration) SnapshotProvider {
	return &cachingProvider{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (p *cachingProvider) Get(ctx context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error) {
	key := snapshotKey(ticker, asOf)
	if cached, found := p.cache.Get(key); found {
		return cached.(*domain.Snapshot), nil
	}
	snap, err := p.next.Get(ctx, ticker, asOf)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, snap, gocache.DefaultExpiration)
	return snap, nil
}

// redisCachingProvider shares snapshots across signal-service instances.
type redisCachingProvider struct {
	next   SnapshotProvider
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisCachingProvider decorates a provider with a Redis JSON cache.
func NewRedisCachingProvider(next SnapshotProvider, client *goredis.Client, ttl time.Duration) SnapshotProvider {
	return &redisCachingProvider{next: next, client: client, ttl: ttl}
}

func (p *redisCachingProvider) Get(ctx context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error) {
	key := snapshotKey(ticker, asOf)
	raw, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var snap domain.Snapshot
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
			return &snap, nil
		}
		// A corrupt cache entry falls through to the source.
	} else if err != goredis.Nil {
		return nil, fmt.Errorf("failed to read snapshot cache: %w", err)
	}

	snap, err := p.next.Get(ctx, ticker, asOf)
	if err != nil {
		return nil, err
	}
	if raw, jsonErr := json.Marshal(snap); jsonErr == nil {
		// Best effort: a failed cache write never fails the read.
		p.client.Set(ctx, key, raw, p.ttl)
	}
	return snap, nil
}

func snapshotKey(ticker string, asOf time.Time) string {
	return fmt.Sprintf("%s:%s:%s", common.SnapshotCacheKeyPrefix, ticker, asOf.Format("2006-01-02"))
}
