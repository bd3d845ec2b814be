package repository

import (
	"context"
	"fmt"
	"time"

	"golang-stock-backtester/internal/domain"
)

// SnapshotProvider supplies look-ahead-safe snapshots: no returned row may
// carry a timestamp past asOf, and series arrive pre-aligned by date.
type SnapshotProvider interface {
	Get(ctx context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error)
}

// memoryProvider serves snapshots from preloaded full histories. Used by
// tests and by runs fed from files.
type memoryProvider struct {
	snapshots map[string]*domain.Snapshot
}

// NewMemoryProvider validates each history once at construction.
func NewMemoryProvider(snapshots map[string]*domain.Snapshot) (SnapshotProvider, error) {
	for ticker, snap := range snapshots {
		if snap == nil {
			return nil, fmt.Errorf("nil snapshot for ticker %s", ticker)
		}
		if err := snap.Validate(); err != nil {
			return nil, err
		}
	}
	return &memoryProvider{snapshots: snapshots}, nil
}

func (p *memoryProvider) Get(_ context.Context, ticker string, asOf time.Time) (*domain.Snapshot, error) {
	full, ok := p.snapshots[ticker]
	if !ok {
		return nil, fmt.Errorf("no data for ticker %s", ticker)
	}
	return full.View(asOf), nil
}
