package domain

// ScoreResult is a composite 0-100 score with its component breakdown.
// The composite is the weighted sum of the components, weights summing to 1.
type ScoreResult struct {
	Composite  float64            `json:"composite"`
	Components map[string]float64 `json:"components"`
	Strategy   string             `json:"strategy"`
}

// Component returns a sub-score by name, or 0 when absent.
func (s ScoreResult) Component(name string) float64 {
	return s.Components[name]
}
