package strategy

import (
	"fmt"
)

// EntryFactory builds an entry strategy from free-form parameters.
type EntryFactory func(r *Registry, params map[string]interface{}) (EntryStrategy, error)

// ExitFactory builds an exit strategy from free-form parameters.
type ExitFactory func(r *Registry, params map[string]interface{}) (ExitStrategy, error)

// Registry is the single name-to-implementation table consulted by both the
// live signal path and the backtest path. One registry is constructed per
// run and torn down with it; there are no process-wide strategy caches.
type Registry struct {
	entries map[string]EntryFactory
	exits   map[string]ExitFactory
}

// Built-in strategy names.
const (
	EntryScore        = "score"
	EntryTechnical    = "technical"
	EntryCompositeAnd = "composite-and"
	EntryCompositeOr  = "composite-or"
	ExitLayered       = "layered"
)

// NewRegistry creates a registry with the built-in strategies registered.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string]EntryFactory),
		exits:   make(map[string]ExitFactory),
	}
	r.entries[EntryScore] = newScoreEntry
	r.entries[EntryTechnical] = newTechnicalEntry
	r.entries[EntryCompositeAnd] = newCompositeEntry(ModeAnd)
	r.entries[EntryCompositeOr] = newCompositeEntry(ModeOr)
	r.exits[ExitLayered] = newLayeredExit
	return r
}

// RegisterEntry adds a custom entry factory. Duplicate names are rejected.
func (r *Registry) RegisterEntry(name string, factory EntryFactory) error {
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("entry strategy %q already registered", name)
	}
	r.entries[name] = factory
	return nil
}

// RegisterExit adds a custom exit factory. Duplicate names are rejected.
func (r *Registry) RegisterExit(name string, factory ExitFactory) error {
	if _, exists := r.exits[name]; exists {
		return fmt.Errorf("exit strategy %q already registered", name)
	}
	r.exits[name] = factory
	return nil
}

// NewEntry builds a named entry strategy. Unknown names and malformed
// parameters fail here, before any simulated day runs.
func (r *Registry) NewEntry(name string, params map[string]interface{}) (EntryStrategy, error) {
	factory, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown entry strategy %q", name)
	}
	return factory(r, params)
}

// NewExit builds a named exit strategy.
func (r *Registry) NewExit(name string, params map[string]interface{}) (ExitStrategy, error) {
	factory, ok := r.exits[name]
	if !ok {
		return nil, fmt.Errorf("unknown exit strategy %q", name)
	}
	return factory(r, params)
}

func newScoreEntry(_ *Registry, params map[string]interface{}) (EntryStrategy, error) {
	threshold, err := floatParam(params, "threshold", DefaultEntryThreshold)
	if err != nil {
		return nil, err
	}
	scorer, err := scorerFromParams(params)
	if err != nil {
		return nil, err
	}
	return NewScoreEntryStrategy(EntryScore, scorer, threshold)
}

func newTechnicalEntry(_ *Registry, _ map[string]interface{}) (EntryStrategy, error) {
	return NewTechnicalEntryStrategy(EntryTechnical), nil
}

func newCompositeEntry(mode CompositeMode) EntryFactory {
	return func(r *Registry, params map[string]interface{}) (EntryStrategy, error) {
		raw, ok := params["strategies"]
		if !ok {
			return nil, fmt.Errorf("composite strategy requires a \"strategies\" parameter")
		}
		names, err := stringSliceParam(raw)
		if err != nil {
			return nil, fmt.Errorf("composite strategy: %w", err)
		}
		subs := make([]EntryStrategy, 0, len(names))
		for _, name := range names {
			sub, err := r.NewEntry(name, nil)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		name := EntryCompositeAnd
		if mode == ModeOr {
			name = EntryCompositeOr
		}
		return NewCompositeEntryStrategy(name, mode, subs)
	}
}

func newLayeredExit(_ *Registry, params map[string]interface{}) (ExitStrategy, error) {
	scorer, err := scorerFromParams(params)
	if err != nil {
		return nil, err
	}
	cfg := DefaultExitConfig()
	if v, err := floatParam(params, "guidance_cut_pct", cfg.GuidanceCutPct); err != nil {
		return nil, err
	} else {
		cfg.GuidanceCutPct = v
	}
	if v, err := floatParam(params, "institutional_sell_yen", cfg.InstitutionalSellYen); err != nil {
		return nil, err
	} else {
		cfg.InstitutionalSellYen = v
	}
	if v, err := floatParam(params, "gap_down_pct", cfg.GapDownPct); err != nil {
		return nil, err
	} else {
		cfg.GapDownPct = v
	}
	return NewExitEngine(ExitLayered, scorer, cfg)
}

func scorerFromParams(params map[string]interface{}) (*WeightedScorer, error) {
	raw, ok := params["weights"]
	if !ok {
		return NewDefaultScorer()
	}
	weightsRaw, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("\"weights\" must be a map of component name to weight")
	}
	weights := make(map[string]float64, len(weightsRaw))
	for name, v := range weightsRaw {
		w, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", name, err)
		}
		weights[name] = w
	}
	return NewWeightedScorer("weighted-custom",
		[]ComponentScorer{
			&TechnicalScorer{},
			&InstitutionalFlowScorer{},
			&FundamentalScorer{},
			&VolatilityScorer{},
		}, weights)
}

func floatParam(params map[string]interface{}, key string, fallback float64) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}
	v, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}
	return v, nil
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
}

func stringSliceParam(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", item)
			}
			names = append(names, s)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("expected a list of strategy names, got %T", raw)
	}
}
