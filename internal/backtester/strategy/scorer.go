package strategy

import (
	"fmt"
	"math"

	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/indicator"
)

// Component names used across scorers, floors and persisted breakdowns.
const (
	ComponentTechnical     = "technical"
	ComponentInstitutional = "institutional"
	ComponentFundamental   = "fundamental"
	ComponentVolatility    = "volatility"
)

// WeightedScorer combines disjoint component scorers into a composite
// 0-100 score. Weights are fixed per strategy and must sum to 1.
type WeightedScorer struct {
	name       string
	components []ComponentScorer
	weights    map[string]float64
}

// NewWeightedScorer validates the weights at construction: one weight per
// component, summing to 1 within 1e-9.
func NewWeightedScorer(name string, components []ComponentScorer, weights map[string]float64) (*WeightedScorer, error) {
	if name == "" {
		return nil, fmt.Errorf("scorer name must not be empty")
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("scorer %q: at least one component is required", name)
	}
	sum := 0.0
	for _, c := range components {
		w, ok := weights[c.Name()]
		if !ok {
			return nil, fmt.Errorf("scorer %q: missing weight for component %q", name, c.Name())
		}
		if w < 0 {
			return nil, fmt.Errorf("scorer %q: negative weight for component %q", name, c.Name())
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("scorer %q: weights sum to %.6f, want 1.0", name, sum)
	}
	return &WeightedScorer{name: name, components: components, weights: weights}, nil
}

// NewDefaultScorer builds the standard four-component scorer.
func NewDefaultScorer() (*WeightedScorer, error) {
	return NewWeightedScorer("weighted-default",
		[]ComponentScorer{
			&TechnicalScorer{},
			&InstitutionalFlowScorer{},
			&FundamentalScorer{},
			&VolatilityScorer{},
		},
		map[string]float64{
			ComponentTechnical:     0.35,
			ComponentInstitutional: 0.25,
			ComponentFundamental:   0.25,
			ComponentVolatility:    0.15,
		})
}

// Name returns the strategy identifier carried on score results.
func (s *WeightedScorer) Name() string { return s.name }

// Score computes the composite and its breakdown. A component without
// enough lookback contributes the neutral score.
func (s *WeightedScorer) Score(snap *domain.Snapshot) domain.ScoreResult {
	result := domain.ScoreResult{
		Components: make(map[string]float64, len(s.components)),
		Strategy:   s.name,
	}
	for _, c := range s.components {
		sub, ok := c.Score(snap)
		if !ok {
			sub = neutralScore
		}
		sub = clampScore(sub)
		result.Components[c.Name()] = sub
		result.Composite += s.weights[c.Name()] * sub
	}
	result.Composite = clampScore(result.Composite)
	return result
}

// TechnicalScorer scores trend, momentum and RSI posture.
type TechnicalScorer struct{}

func (t *TechnicalScorer) Name() string { return ComponentTechnical }

func (t *TechnicalScorer) Score(snap *domain.Snapshot) (float64, bool) {
	if !snap.HasLookback(76) {
		return neutralScore, false
	}
	closes := snap.Closes()
	price := closes[len(closes)-1]
	ma25 := indicator.SMA(closes, 25)
	ma75 := indicator.SMA(closes, 75)
	rsi := indicator.RSI(closes, 14)
	momentum := price/closes[len(closes)-21] - 1

	score := neutralScore
	if price > ma25 {
		score += 15
	} else {
		score -= 10
	}
	if ma25 > ma75 {
		score += 15
	} else {
		score -= 10
	}
	switch {
	case rsi >= 45 && rsi <= 70:
		score += 10
	case rsi > 80:
		score -= 15
	case rsi < 30:
		score -= 10
	}
	switch {
	case momentum > 0.05:
		score += 10
	case momentum < -0.05:
		score -= 10
	}
	return score, true
}

// InstitutionalFlowScorer scores the trailing four weeks of foreign plus
// trust-bank net flow against the ticker's traded value.
type InstitutionalFlowScorer struct{}

func (f *InstitutionalFlowScorer) Name() string { return ComponentInstitutional }

func (f *InstitutionalFlowScorer) Score(snap *domain.Snapshot) (float64, bool) {
	if len(snap.Flows) == 0 || !snap.HasLookback(20) {
		return neutralScore, false
	}
	instNet := snap.FlowSum(28, func(r domain.FlowRecord) float64 {
		return r.ForeignNet + r.TrustBankNet
	})

	// Normalize by roughly a month of traded value.
	turnover := 0.0
	for _, p := range snap.Prices[len(snap.Prices)-20:] {
		turnover += p.Close * p.Volume
	}
	if turnover <= 0 {
		return neutralScore, false
	}
	ratio := instNet / turnover
	return neutralScore + ratio*500, true
}

// FundamentalScorer scores guidance momentum and accounting quality from
// the latest disclosure.
type FundamentalScorer struct{}

func (f *FundamentalScorer) Name() string { return ComponentFundamental }

func (f *FundamentalScorer) Score(snap *domain.Snapshot) (float64, bool) {
	latest, ok := snap.LatestFundamental()
	if !ok {
		return neutralScore, false
	}
	if latest.AccountingFlag {
		return 5, true
	}
	score := neutralScore
	if latest.PriorGuidance != 0 {
		revision := (latest.Guidance - latest.PriorGuidance) / math.Abs(latest.PriorGuidance)
		score += clampContribution(revision*200, 30)
	}
	if latest.Guidance != 0 && latest.Actual != 0 {
		achievement := (latest.Actual - latest.Guidance) / math.Abs(latest.Guidance)
		score += clampContribution(achievement*100, 15)
	}
	return score, true
}

// VolatilityScorer maps ATR as a fraction of price onto a score band:
// calmer names score higher.
type VolatilityScorer struct{}

func (v *VolatilityScorer) Name() string { return ComponentVolatility }

func (v *VolatilityScorer) Score(snap *domain.Snapshot) (float64, bool) {
	if !snap.HasLookback(15) {
		return neutralScore, false
	}
	price := snap.LastClose()
	atr := indicator.ATR(snap.Prices, 14)
	if price <= 0 || atr <= 0 {
		return neutralScore, false
	}
	switch atrPct := atr / price; {
	case atrPct < 0.01:
		return 85, true
	case atrPct < 0.02:
		return 70, true
	case atrPct < 0.03:
		return 55, true
	case atrPct < 0.05:
		return 40, true
	default:
		return 25, true
	}
}

func clampContribution(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
