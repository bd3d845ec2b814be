package strategy

import (
	"golang-stock-backtester/internal/domain"
)

// EntryStrategy decides BUY or HOLD from a snapshot. Implementations are
// total functions: insufficient history yields HOLD with a reason, never an
// error, and identical snapshots always yield identical signals.
type EntryStrategy interface {
	Name() string
	DecideEntry(snap *domain.Snapshot) domain.EntrySignal
}

// ExitStrategy evaluates an open position against a snapshot and returns
// HOLD, REDUCE or EXIT. Implementations never mutate the position.
type ExitStrategy interface {
	Name() string
	EvaluateExit(pos *domain.Position, snap *domain.Snapshot) domain.ExitSignal
}

// ComponentScorer maps a snapshot to a 0-100 sub-score. ok is false when
// the snapshot lacks the lookback the component needs; callers substitute
// the neutral score.
type ComponentScorer interface {
	Name() string
	Score(snap *domain.Snapshot) (score float64, ok bool)
}

// neutralScore stands in for a component that cannot be computed.
const neutralScore = 50.0

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
