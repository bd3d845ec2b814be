package domain

// Action is a trading decision.
type Action string

const (
	ActionBuy    Action = "BUY"
	ActionHold   Action = "HOLD"
	ActionReduce Action = "REDUCE"
	ActionExit   Action = "EXIT"
)

// Urgency grades how quickly an exit signal should be acted on.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// EntrySignal is the outcome of an entry strategy for one snapshot.
type EntrySignal struct {
	Action     Action       `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasons    []string     `json:"reasons"`
	Strategy   string       `json:"strategy"`
	Score      *ScoreResult `json:"score,omitempty"`
}

// ExitSignal is the outcome of the exit cascade for one snapshot.
// Layer identifies the cascade layer that produced the signal.
// TightenStop asks the position owner to switch the trailing stop to the
// tightened multiplier from the next evaluation on.
type ExitSignal struct {
	Action      Action   `json:"action"`
	Urgency     Urgency  `json:"urgency"`
	Reasons     []string `json:"reasons"`
	Layer       string   `json:"layer"`
	TightenStop bool     `json:"tighten_stop,omitempty"`
}

// HoldExit is the default no-trigger outcome.
func HoldExit() ExitSignal {
	return ExitSignal{Action: ActionHold, Urgency: UrgencyLow, Layer: "none"}
}
