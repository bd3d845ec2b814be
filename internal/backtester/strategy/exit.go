package strategy

import (
	"fmt"

	"golang-stock-backtester/internal/domain"
	"golang-stock-backtester/internal/indicator"
)

// Cascade layer identifiers carried on exit signals.
const (
	LayerEmergency      = "emergency"
	LayerScoreDecay     = "score-deterioration"
	LayerComponentDecay = "component-deterioration"
	LayerMarketCultural = "market-cultural"
	LayerTrailingStop   = "trailing-stop"
	LayerTimeReview     = "time-review"
)

// ExitConfig holds the cascade thresholds. Zero values take defaults.
type ExitConfig struct {
	// Emergency layer.
	GuidanceCutPct       float64 // sequential guidance cut treated as emergency
	InstitutionalSellYen float64 // net institutional selling over the trailing 2 weeks
	GapDownPct           float64 // overnight gap down
	LongMAPeriod         int     // long moving average for the breakdown check
	VolumeMultiple       float64 // volume spike multiple over the average
	VolumeAvgPeriod      int

	// Trailing-stop layer.
	ATRPeriod         int
	BaseStopMultiple  float64
	TightStopMultiple float64
	WideStopMultiple  float64
	TightenGainPct    float64 // gain at which the stop tightens
	TightenFloorPct   float64 // stop floor once tightened
	BaseFloorPct      float64 // stop floor in the base regime
	ATRRegimeMultiple float64 // current/entry ATR ratio that widens the stop
}

// DefaultExitConfig returns the production thresholds.
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		GuidanceCutPct:       0.10,
		InstitutionalSellYen: 1_000_000_000,
		GapDownPct:           0.10,
		LongMAPeriod:         200,
		VolumeMultiple:       2.0,
		VolumeAvgPeriod:      20,
		ATRPeriod:            14,
		BaseStopMultiple:     2.0,
		TightStopMultiple:    1.5,
		WideStopMultiple:     3.0,
		TightenGainPct:       0.15,
		TightenFloorPct:      1.05,
		BaseFloorPct:         0.93,
		ATRRegimeMultiple:    1.5,
	}
}

func (c *ExitConfig) applyDefaults() {
	d := DefaultExitConfig()
	if c.GuidanceCutPct == 0 {
		c.GuidanceCutPct = d.GuidanceCutPct
	}
	if c.InstitutionalSellYen == 0 {
		c.InstitutionalSellYen = d.InstitutionalSellYen
	}
	if c.GapDownPct == 0 {
		c.GapDownPct = d.GapDownPct
	}
	if c.LongMAPeriod == 0 {
		c.LongMAPeriod = d.LongMAPeriod
	}
	if c.VolumeMultiple == 0 {
		c.VolumeMultiple = d.VolumeMultiple
	}
	if c.VolumeAvgPeriod == 0 {
		c.VolumeAvgPeriod = d.VolumeAvgPeriod
	}
	if c.ATRPeriod == 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	if c.BaseStopMultiple == 0 {
		c.BaseStopMultiple = d.BaseStopMultiple
	}
	if c.TightStopMultiple == 0 {
		c.TightStopMultiple = d.TightStopMultiple
	}
	if c.WideStopMultiple == 0 {
		c.WideStopMultiple = d.WideStopMultiple
	}
	if c.TightenGainPct == 0 {
		c.TightenGainPct = d.TightenGainPct
	}
	if c.TightenFloorPct == 0 {
		c.TightenFloorPct = d.TightenFloorPct
	}
	if c.BaseFloorPct == 0 {
		c.BaseFloorPct = d.BaseFloorPct
	}
	if c.ATRRegimeMultiple == 0 {
		c.ATRRegimeMultiple = d.ATRRegimeMultiple
	}
}

func (c ExitConfig) validate() error {
	if c.GuidanceCutPct < 0 || c.GuidanceCutPct > 1 {
		return fmt.Errorf("guidance cut pct %.3f out of range (0,1]", c.GuidanceCutPct)
	}
	if c.InstitutionalSellYen < 0 {
		return fmt.Errorf("institutional sell threshold must be positive, got %.0f", c.InstitutionalSellYen)
	}
	if c.TightStopMultiple > c.BaseStopMultiple || c.BaseStopMultiple > c.WideStopMultiple {
		return fmt.Errorf("stop multiples must order tight <= base <= wide, got %.2f/%.2f/%.2f",
			c.TightStopMultiple, c.BaseStopMultiple, c.WideStopMultiple)
	}
	return nil
}

// ExitEngine is the six-layer exit cascade. Layers are evaluated in strict
// order and the first match wins. Evaluation is deterministic: identical
// (position, snapshot) pairs always yield identical signals.
type ExitEngine struct {
	name   string
	scorer *WeightedScorer
	cfg    ExitConfig
}

// NewExitEngine validates the configuration before any simulated day runs.
func NewExitEngine(name string, scorer *WeightedScorer, cfg ExitConfig) (*ExitEngine, error) {
	if scorer == nil {
		return nil, fmt.Errorf("exit engine %q: scorer is required", name)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("exit engine %q: %w", name, err)
	}
	return &ExitEngine{name: name, scorer: scorer, cfg: cfg}, nil
}

func (e *ExitEngine) Name() string { return e.name }

// EvaluateExit walks the cascade top to bottom.
func (e *ExitEngine) EvaluateExit(pos *domain.Position, snap *domain.Snapshot) domain.ExitSignal {
	bar, ok := snap.LastBar()
	if !ok {
		return domain.ExitSignal{
			Action:  domain.ActionHold,
			Urgency: domain.UrgencyLow,
			Layer:   "none",
			Reasons: []string{"no price data as of date"},
		}
	}
	price := bar.Close
	holdingDays := pos.HoldingDays(snap.AsOf)
	score := e.scorer.Score(snap)

	if sig, matched := e.evaluateEmergency(snap, bar); matched {
		return sig
	}
	if sig, matched := e.evaluateScoreDeterioration(pos, score, holdingDays); matched {
		return sig
	}
	if sig, matched := e.evaluateComponentFloors(score); matched {
		return sig
	}
	if sig, matched := e.evaluateMarketCultural(snap, score); matched {
		return sig
	}
	if sig, matched := e.evaluateTrailingStop(pos, snap, price); matched {
		return sig
	}
	if sig, matched := e.evaluateTimeReview(pos, score, price, holdingDays); matched {
		return sig
	}
	return domain.HoldExit()
}

// Layer 1: conditions severe enough to leave immediately regardless of score.
func (e *ExitEngine) evaluateEmergency(snap *domain.Snapshot, bar domain.PriceBar) (domain.ExitSignal, bool) {
	var reasons []string

	if latest, ok := snap.LatestFundamental(); ok {
		if latest.PriorGuidance > 0 {
			cut := (latest.PriorGuidance - latest.Guidance) / latest.PriorGuidance
			if cut > e.cfg.GuidanceCutPct {
				reasons = append(reasons, fmt.Sprintf("guidance cut %.1f%% exceeds %.0f%%", cut*100, e.cfg.GuidanceCutPct*100))
			}
		}
		if latest.AccountingFlag {
			reasons = append(reasons, "accounting irregularity flagged")
		}
	}

	instNet := snap.FlowSum(14, func(r domain.FlowRecord) float64 {
		return r.ForeignNet + r.TrustBankNet
	})
	if instNet <= -e.cfg.InstitutionalSellYen {
		reasons = append(reasons, fmt.Sprintf("net institutional selling %.0f yen over 2 weeks", -instNet))
	}

	foreignPrev := snap.FlowSumBetween(7, 14, func(r domain.FlowRecord) float64 { return r.ForeignNet })
	foreignLast := snap.FlowSum(7, func(r domain.FlowRecord) float64 { return r.ForeignNet })
	trustPrev := snap.FlowSumBetween(7, 14, func(r domain.FlowRecord) float64 { return r.TrustBankNet })
	trustLast := snap.FlowSum(7, func(r domain.FlowRecord) float64 { return r.TrustBankNet })
	if foreignPrev > 0 && trustPrev > 0 && foreignLast < 0 && trustLast < 0 {
		reasons = append(reasons, "simultaneous reversal of foreign and trust-bank flow")
	}

	if snap.HasLookback(e.cfg.LongMAPeriod) {
		closes := snap.Closes()
		longMA := indicator.SMA(closes, e.cfg.LongMAPeriod)
		avgVol := avgVolume(snap.Prices, e.cfg.VolumeAvgPeriod)
		if bar.Close < longMA && avgVol > 0 && bar.Volume >= e.cfg.VolumeMultiple*avgVol {
			reasons = append(reasons, fmt.Sprintf("close below %d-day average on %.1fx volume",
				e.cfg.LongMAPeriod, bar.Volume/avgVol))
		}
	}

	if len(snap.Prices) >= 2 {
		prevClose := snap.Prices[len(snap.Prices)-2].Close
		if prevClose > 0 {
			gap := bar.Open/prevClose - 1
			if gap < -e.cfg.GapDownPct {
				reasons = append(reasons, fmt.Sprintf("overnight gap down %.1f%%", -gap*100))
			}
		}
	}

	if d := snap.DaysToEarnings(); d >= 0 && d <= 1 {
		reasons = append(reasons, "earnings within 24 hours")
	}

	if flaggedMajorHolderSelling(snap) {
		reasons = append(reasons, "major shareholder selling flagged")
	}

	if len(reasons) == 0 {
		return domain.ExitSignal{}, false
	}
	return domain.ExitSignal{
		Action:  domain.ActionExit,
		Urgency: domain.UrgencyEmergency,
		Layer:   LayerEmergency,
		Reasons: reasons,
	}, true
}

// ExitThreshold derives the layer-2 threshold from the entry score and the
// holding duration. ok is false when the layer is inactive for the entry
// score. The threshold only tightens as holding days grow.
func ExitThreshold(entryScore float64, holdingDays int) (float64, bool) {
	var threshold float64
	switch {
	case entryScore >= 80:
		threshold = 60
	case entryScore >= 65:
		threshold = 55
	default:
		return 0, false
	}
	if holdingDays > 90 {
		threshold += 5
	}
	if holdingDays > 180 {
		threshold += 5
	}
	return threshold, true
}

// Layer 2: the thesis decayed, composite fell below the entry-derived floor.
func (e *ExitEngine) evaluateScoreDeterioration(pos *domain.Position, score domain.ScoreResult, holdingDays int) (domain.ExitSignal, bool) {
	threshold, active := ExitThreshold(pos.EntryScore, holdingDays)
	if !active || score.Composite >= threshold {
		return domain.ExitSignal{}, false
	}
	return domain.ExitSignal{
		Action:  domain.ActionExit,
		Urgency: domain.UrgencyHigh,
		Layer:   LayerScoreDecay,
		Reasons: []string{fmt.Sprintf("composite %.1f below exit threshold %.1f (entry %.1f, held %d days)",
			score.Composite, threshold, pos.EntryScore, holdingDays)},
	}, true
}

// Layer 3: a single component collapsed even though the composite held up.
func (e *ExitEngine) evaluateComponentFloors(score domain.ScoreResult) (domain.ExitSignal, bool) {
	floors := []struct {
		component string
		floor     float64
		urgency   domain.Urgency
	}{
		{ComponentInstitutional, 25, domain.UrgencyHigh},
		{ComponentFundamental, 35, domain.UrgencyMedium},
		{ComponentTechnical, 30, domain.UrgencyMedium},
		{ComponentVolatility, 25, domain.UrgencyHigh},
	}
	for _, f := range floors {
		sub, ok := score.Components[f.component]
		if !ok {
			continue
		}
		if sub < f.floor {
			return domain.ExitSignal{
				Action:  domain.ActionExit,
				Urgency: f.urgency,
				Layer:   LayerComponentDecay,
				Reasons: []string{fmt.Sprintf("%s score %.1f below floor %.0f", f.component, sub, f.floor)},
			}, true
		}
	}
	return domain.ExitSignal{}, false
}

// Layer 4: market-cultural triggers, checked in fixed order: earnings
// proximity, guidance revision, retail divergence.
func (e *ExitEngine) evaluateMarketCultural(snap *domain.Snapshot, score domain.ScoreResult) (domain.ExitSignal, bool) {
	if d := snap.DaysToEarnings(); d >= 0 {
		switch {
		case d <= 1:
			return domain.ExitSignal{
				Action:  domain.ActionExit,
				Urgency: domain.UrgencyHigh,
				Layer:   LayerMarketCultural,
				Reasons: []string{"earnings within 1 day: exit all"},
			}, true
		case d <= 3 && score.Composite < 75:
			return domain.ExitSignal{
				Action:  domain.ActionReduce,
				Urgency: domain.UrgencyMedium,
				Layer:   LayerMarketCultural,
				Reasons: []string{fmt.Sprintf("earnings in %d days with composite %.1f: reduce half", d, score.Composite)},
			}, true
		case d <= 7 && score.Composite < 70:
			return domain.ExitSignal{
				Action:      domain.ActionHold,
				Urgency:     domain.UrgencyLow,
				Layer:       LayerMarketCultural,
				TightenStop: true,
				Reasons:     []string{fmt.Sprintf("earnings in %d days with composite %.1f: tightening trailing stop", d, score.Composite)},
			}, true
		}
	}

	if latest, ok := snap.LatestFundamental(); ok && latest.PriorGuidance > 0 {
		decline := (latest.PriorGuidance - latest.Guidance) / latest.PriorGuidance
		if decline > 0.05 {
			return domain.ExitSignal{
				Action:  domain.ActionExit,
				Urgency: domain.UrgencyMedium,
				Layer:   LayerMarketCultural,
				Reasons: []string{fmt.Sprintf("sequential guidance decline %.1f%%", decline*100)},
			}, true
		}
		if latest.Actual > 0 {
			miss := (latest.PriorGuidance - latest.Actual) / latest.PriorGuidance
			if miss > 0.02 {
				return domain.ExitSignal{
					Action:  domain.ActionExit,
					Urgency: domain.UrgencyMedium,
					Layer:   LayerMarketCultural,
					Reasons: []string{fmt.Sprintf("missed own guidance by %.1f%%", miss*100)},
				}, true
			}
		}
	}

	retail := snap.FlowSum(28, func(r domain.FlowRecord) float64 { return r.RetailNet })
	foreign := snap.FlowSum(28, func(r domain.FlowRecord) float64 { return r.ForeignNet })
	if retail > 0 && foreign < 0 && retail > -foreign/2 {
		return domain.ExitSignal{
			Action:  domain.ActionReduce,
			Urgency: domain.UrgencyMedium,
			Layer:   LayerMarketCultural,
			Reasons: []string{"retail buying against foreign selling: reduce half"},
		}, true
	}
	return domain.ExitSignal{}, false
}

// Layer 5: ATR trailing stop off the peak price since entry.
func (e *ExitEngine) evaluateTrailingStop(pos *domain.Position, snap *domain.Snapshot, price float64) (domain.ExitSignal, bool) {
	atr := indicator.ATR(snap.Prices, e.cfg.ATRPeriod)
	if atr <= 0 {
		return domain.ExitSignal{}, false
	}

	multiple := e.cfg.BaseStopMultiple
	floor := pos.EntryPrice * e.cfg.BaseFloorPct
	if pos.GainPct(price) >= e.cfg.TightenGainPct {
		multiple = e.cfg.TightStopMultiple
		floor = pos.EntryPrice * e.cfg.TightenFloorPct
	} else if pos.StopTightened {
		multiple = e.cfg.TightStopMultiple
	}
	if pos.EntryATR > 0 && atr > e.cfg.ATRRegimeMultiple*pos.EntryATR {
		multiple = e.cfg.WideStopMultiple
	}

	stop := pos.PeakPrice - multiple*atr
	if stop < floor {
		stop = floor
	}
	if price > stop {
		return domain.ExitSignal{}, false
	}
	return domain.ExitSignal{
		Action:  domain.ActionExit,
		Urgency: domain.UrgencyMedium,
		Layer:   LayerTrailingStop,
		Reasons: []string{fmt.Sprintf("price %.1f at or below trailing stop %.1f (peak %.1f, %.1fxATR %.1f)",
			price, stop, pos.PeakPrice, multiple, atr)},
	}, true
}

// Layer 6: scheduled review on exact 90-day multiples of the holding period.
func (e *ExitEngine) evaluateTimeReview(pos *domain.Position, score domain.ScoreResult, price float64, holdingDays int) (domain.ExitSignal, bool) {
	if holdingDays <= 0 || holdingDays%90 != 0 {
		return domain.ExitSignal{}, false
	}
	gain := pos.GainPct(price)
	switch {
	case score.Composite >= 70 && gain > 0.05:
		return domain.ExitSignal{
			Action:  domain.ActionHold,
			Urgency: domain.UrgencyLow,
			Layer:   LayerTimeReview,
			Reasons: []string{fmt.Sprintf("day-%d review passed: composite %.1f, gain %.1f%%", holdingDays, score.Composite, gain*100)},
		}, true
	case score.Composite >= 60 && gain > 0:
		return domain.ExitSignal{
			Action:  domain.ActionHold,
			Urgency: domain.UrgencyLow,
			Layer:   LayerTimeReview,
			Reasons: []string{fmt.Sprintf("day-%d review passed: composite %.1f, gain %.1f%%", holdingDays, score.Composite, gain*100)},
		}, true
	case score.Composite >= 55:
		return domain.ExitSignal{
			Action:  domain.ActionReduce,
			Urgency: domain.UrgencyMedium,
			Layer:   LayerTimeReview,
			Reasons: []string{fmt.Sprintf("day-%d review: composite %.1f stagnant, reduce half", holdingDays, score.Composite)},
		}, true
	default:
		return domain.ExitSignal{
			Action:  domain.ActionExit,
			Urgency: domain.UrgencyMedium,
			Layer:   LayerTimeReview,
			Reasons: []string{fmt.Sprintf("day-%d review failed: composite %.1f", holdingDays, score.Composite)},
		}, true
	}
}

func avgVolume(bars []domain.PriceBar, period int) float64 {
	if len(bars) < 2 {
		return 0
	}
	// Exclude the current bar so a spike is measured against its baseline.
	volumes := make([]float64, 0, len(bars)-1)
	for _, b := range bars[:len(bars)-1] {
		volumes = append(volumes, b.Volume)
	}
	return indicator.AvgVolume(volumes, period)
}

func flaggedMajorHolderSelling(snap *domain.Snapshot) bool {
	from := snap.AsOf.AddDate(0, 0, -7)
	for _, f := range snap.Flows {
		if f.Date.After(from) && f.MajorHolderSelling {
			return true
		}
	}
	return false
}
