package strategy

import (
	"testing"

	"golang-stock-backtester/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedScorerValidation(t *testing.T) {
	components := []ComponentScorer{&fixedComponent{name: "a", score: 60}, &fixedComponent{name: "b", score: 40}}

	_, err := NewWeightedScorer("s", components, map[string]float64{"a": 0.5, "b": 0.5})
	require.NoError(t, err)

	_, err = NewWeightedScorer("s", components, map[string]float64{"a": 0.6, "b": 0.5})
	assert.Error(t, err, "weights must sum to 1")

	_, err = NewWeightedScorer("s", components, map[string]float64{"a": 1.0})
	assert.Error(t, err, "every component needs a weight")

	_, err = NewWeightedScorer("s", components, map[string]float64{"a": 1.5, "b": -0.5})
	assert.Error(t, err, "negative weights are rejected")

	_, err = NewWeightedScorer("s", nil, nil)
	assert.Error(t, err, "at least one component is required")
}

func TestWeightedScorerComposite(t *testing.T) {
	scorer, err := NewWeightedScorer("s",
		[]ComponentScorer{&fixedComponent{name: "a", score: 80}, &fixedComponent{name: "b", score: 40}},
		map[string]float64{"a": 0.75, "b": 0.25})
	require.NoError(t, err)

	result := scorer.Score(&domain.Snapshot{})
	assert.InDelta(t, 70.0, result.Composite, 1e-9)
	assert.Equal(t, 80.0, result.Components["a"])
	assert.Equal(t, 40.0, result.Components["b"])
	assert.Equal(t, "s", result.Strategy)
}

// shortComponent reports insufficient lookback.
type shortComponent struct{ name string }

func (s *shortComponent) Name() string { return s.name }

func (s *shortComponent) Score(*domain.Snapshot) (float64, bool) { return 0, false }

func TestWeightedScorerNeutralSubstitution(t *testing.T) {
	scorer, err := NewWeightedScorer("s",
		[]ComponentScorer{&fixedComponent{name: "a", score: 90}, &shortComponent{name: "b"}},
		map[string]float64{"a": 0.5, "b": 0.5})
	require.NoError(t, err)

	result := scorer.Score(&domain.Snapshot{})
	assert.Equal(t, 50.0, result.Components["b"], "missing lookback falls back to neutral")
	assert.InDelta(t, 70.0, result.Composite, 1e-9)
}

func TestWeightedScorerClampsComponents(t *testing.T) {
	scorer, err := NewWeightedScorer("s",
		[]ComponentScorer{&fixedComponent{name: "a", score: 140}},
		map[string]float64{"a": 1.0})
	require.NoError(t, err)

	result := scorer.Score(&domain.Snapshot{})
	assert.Equal(t, 100.0, result.Components["a"])
	assert.Equal(t, 100.0, result.Composite)
}

func TestFundamentalScorerAccountingFlag(t *testing.T) {
	snap := flatSnapshot(20, 1000)
	snap.Fundamentals = []domain.FundamentalRecord{
		{DisclosedAt: snap.AsOf, Guidance: 200, PriorGuidance: 100, AccountingFlag: true},
	}
	score, ok := (&FundamentalScorer{}).Score(snap)
	require.True(t, ok)
	assert.Equal(t, 5.0, score, "an accounting flag floors the score regardless of guidance")
}

func TestFundamentalScorerRevisions(t *testing.T) {
	snap := flatSnapshot(20, 1000)
	snap.Fundamentals = []domain.FundamentalRecord{
		{DisclosedAt: snap.AsOf, Guidance: 110, PriorGuidance: 100},
	}
	score, ok := (&FundamentalScorer{}).Score(snap)
	require.True(t, ok)
	assert.InDelta(t, 70.0, score, 1e-9, "a 10 percent upward revision adds 20 points")

	// A huge revision saturates at +30.
	snap.Fundamentals[0].Guidance = 200
	score, _ = (&FundamentalScorer{}).Score(snap)
	assert.InDelta(t, 80.0, score, 1e-9)
}

func TestFundamentalScorerNoDisclosures(t *testing.T) {
	snap := flatSnapshot(20, 1000)
	_, ok := (&FundamentalScorer{}).Score(snap)
	assert.False(t, ok)
}

func TestVolatilityScorerBands(t *testing.T) {
	cases := []struct {
		atr  float64
		want float64
	}{
		{5, 85},   // 0.5% of price
		{15, 70},  // 1.5%
		{25, 55},  // 2.5%
		{40, 40},  // 4%
		{80, 25},  // 8%
	}
	for _, tc := range cases {
		snap := trendingSnapshot(30, 1000, tc.atr)
		score, ok := (&VolatilityScorer{}).Score(snap)
		require.True(t, ok)
		assert.Equal(t, tc.want, score, "ATR %.0f", tc.atr)
	}
}

func TestVolatilityScorerShortHistory(t *testing.T) {
	snap := flatSnapshot(10, 1000)
	_, ok := (&VolatilityScorer{}).Score(snap)
	assert.False(t, ok)
}

func TestTechnicalScorerShortHistory(t *testing.T) {
	snap := flatSnapshot(50, 1000)
	_, ok := (&TechnicalScorer{}).Score(snap)
	assert.False(t, ok)
}

func TestInstitutionalFlowScorer(t *testing.T) {
	snap := flatSnapshot(40, 1000)
	snap.Flows = []domain.FlowRecord{
		{Date: snap.AsOf.AddDate(0, 0, -5), ForeignNet: 2_000_000, TrustBankNet: 0},
	}
	// Turnover is 20 * 1000 * 1000 = 2e7, so the ratio is 0.1 and the
	// score lands at 50 + 0.1*500 = 100.
	score, ok := (&InstitutionalFlowScorer{}).Score(snap)
	require.True(t, ok)
	assert.InDelta(t, 100.0, score, 1e-9)

	snap.Flows[0].ForeignNet = -2_000_000
	score, _ = (&InstitutionalFlowScorer{}).Score(snap)
	assert.InDelta(t, 0.0, score, 1e-9)
}
