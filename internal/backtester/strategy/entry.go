package strategy

import (
	"fmt"

	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/indicator"
)

// minEntryLookback is the price history an entry decision needs; shorter
// snapshots always produce HOLD.
const minEntryLookback = 76

// ScoreEntryStrategy wraps a WeightedScorer with a BUY threshold.
type ScoreEntryStrategy struct {
	name      string
	scorer    *WeightedScorer
	threshold float64
}

// DefaultEntryThreshold is the composite score at which a BUY fires.
const DefaultEntryThreshold = 65.0

// NewScoreEntryStrategy validates the threshold at construction.
func NewScoreEntryStrategy(name string, scorer *WeightedScorer, threshold float64) (*ScoreEntryStrategy, error) {
	if scorer == nil {
		return nil, fmt.Errorf("entry strategy %q: scorer is required", name)
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("entry strategy %q: threshold %.2f out of range [0,100]", name, threshold)
	}
	return &ScoreEntryStrategy{name: name, scorer: scorer, threshold: threshold}, nil
}

func (s *ScoreEntryStrategy) Name() string { return s.name }

// DecideEntry buys when the composite reaches the threshold.
func (s *ScoreEntryStrategy) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	if !snap.HasLookback(minEntryLookback) {
		return domain.EntrySignal{
			Action:   domain.ActionHold,
			Strategy: s.name,
			Reasons:  []string{fmt.Sprintf("insufficient history: %d bars, need %d", len(snap.Prices), minEntryLookback)},
		}
	}
	score := s.scorer.Score(snap)
	if score.Composite >= s.threshold {
		return domain.EntrySignal{
			Action:     domain.ActionBuy,
			Confidence: score.Composite / 100,
			Strategy:   s.name,
			Score:      &score,
			Reasons:    []string{fmt.Sprintf("composite %.1f >= threshold %.1f", score.Composite, s.threshold)},
		}
	}
	return domain.EntrySignal{
		Action:   domain.ActionHold,
		Strategy: s.name,
		Score:    &score,
		Reasons:  []string{fmt.Sprintf("composite %.1f below threshold %.1f", score.Composite, s.threshold)},
	}
}

// TechnicalEntryStrategy buys on independent technical triggers without a
// composite score: uptrend alignment plus a healthy RSI band.
type TechnicalEntryStrategy struct {
	name string
}

// NewTechnicalEntryStrategy builds the trigger-based entry.
func NewTechnicalEntryStrategy(name string) *TechnicalEntryStrategy {
	return &TechnicalEntryStrategy{name: name}
}

func (s *TechnicalEntryStrategy) Name() string { return s.name }

// DecideEntry requires price above the 25-day average, the 25-day above the
// 75-day, positive 20-day momentum and RSI between 45 and 70.
func (s *TechnicalEntryStrategy) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	if !snap.HasLookback(minEntryLookback) {
		return domain.EntrySignal{
			Action:   domain.ActionHold,
			Strategy: s.name,
			Reasons:  []string{fmt.Sprintf("insufficient history: %d bars, need %d", len(snap.Prices), minEntryLookback)},
		}
	}
	closes := snap.Closes()
	price := closes[len(closes)-1]
	ma25 := indicator.SMA(closes, 25)
	ma75 := indicator.SMA(closes, 75)
	rsi := indicator.RSI(closes, 14)
	momentum := price/closes[len(closes)-21] - 1

	var blockers []string
	if price <= ma25 {
		blockers = append(blockers, "price below 25-day average")
	}
	if ma25 <= ma75 {
		blockers = append(blockers, "25-day average below 75-day average")
	}
	if momentum <= 0 {
		blockers = append(blockers, "20-day momentum not positive")
	}
	if rsi < 45 || rsi > 70 {
		blockers = append(blockers, fmt.Sprintf("RSI %.1f outside [45,70]", rsi))
	}
	if len(blockers) > 0 {
		return domain.EntrySignal{Action: domain.ActionHold, Strategy: s.name, Reasons: blockers}
	}
	return domain.EntrySignal{
		Action:     domain.ActionBuy,
		Confidence: 0.6,
		Strategy:   s.name,
		Reasons:    []string{fmt.Sprintf("uptrend aligned, momentum %.1f%%, RSI %.1f", momentum*100, rsi)},
	}
}

// CompositeMode selects AND or OR combination semantics.
type CompositeMode string

const (
	// ModeAnd buys only when every sub-strategy buys; confidence is the minimum.
	ModeAnd CompositeMode = "AND"
	// ModeOr buys when any sub-strategy buys; confidence is the maximum.
	ModeOr CompositeMode = "OR"
)

// CompositeEntryStrategy combines sub-strategies. It holds a list of
// EntryStrategy values rather than deriving from any of them.
type CompositeEntryStrategy struct {
	name string
	mode CompositeMode
	subs []EntryStrategy
}

// NewCompositeEntryStrategy validates the mode and sub-strategy list.
func NewCompositeEntryStrategy(name string, mode CompositeMode, subs []EntryStrategy) (*CompositeEntryStrategy, error) {
	if mode != ModeAnd && mode != ModeOr {
		return nil, fmt.Errorf("composite strategy %q: unknown mode %q", name, mode)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("composite strategy %q: at least one sub-strategy is required", name)
	}
	return &CompositeEntryStrategy{name: name, mode: mode, subs: subs}, nil
}

func (s *CompositeEntryStrategy) Name() string { return s.name }

// DecideEntry evaluates every sub-strategy and combines per the mode.
// Reasons concatenate all contributing sub-reasons, prefixed by sub name.
func (s *CompositeEntryStrategy) DecideEntry(snap *domain.Snapshot) domain.EntrySignal {
	var reasons []string
	buys := 0
	minConf, maxConf := 1.0, 0.0
	var bestScore *domain.ScoreResult

	for _, sub := range s.subs {
		sig := sub.DecideEntry(snap)
		for _, r := range sig.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s: %s", sub.Name(), r))
		}
		if sig.Action == domain.ActionBuy {
			buys++
			if sig.Confidence < minConf {
				minConf = sig.Confidence
			}
			if sig.Confidence > maxConf {
				maxConf = sig.Confidence
			}
			if bestScore == nil && sig.Score != nil {
				bestScore = sig.Score
			}
		}
	}

	buy := false
	confidence := 0.0
	switch s.mode {
	case ModeAnd:
		buy = buys == len(s.subs)
		confidence = minConf
	case ModeOr:
		buy = buys > 0
		confidence = maxConf
	}
	if !buy {
		return domain.EntrySignal{Action: domain.ActionHold, Strategy: s.name, Reasons: reasons}
	}
	return domain.EntrySignal{
		Action:     domain.ActionBuy,
		Confidence: confidence,
		Strategy:   s.name,
		Score:      bestScore,
		Reasons:    reasons,
	}
}
