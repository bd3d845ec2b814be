package domain

import (
	"encoding/json"
	"fmt"
)

// InvariantViolationError is fatal: it aborts the run carrying a full dump
// of the offending state. Violations are never silently clamped.
type InvariantViolationError struct {
	Invariant string
	StateDump string
}

// NewInvariantViolation builds the error with a JSON dump of state.
func NewInvariantViolation(invariant string, state interface{}) *InvariantViolationError {
	dump, err := json.Marshal(state)
	if err != nil {
		dump = []byte(fmt.Sprintf("%+v", state))
	}
	return &InvariantViolationError{Invariant: invariant, StateDump: string(dump)}
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s; state: %s", e.Invariant, e.StateDump)
}
