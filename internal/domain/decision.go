package domain

import "time"

// Action is what a persona chose to do with one market snapshot.
type Action string

const (
	ActionBuyYes Action = "BUY_YES"
	ActionBuyNo  Action = "BUY_NO"
	ActionSkip   Action = "SKIP"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionBuyYes, ActionBuyNo, ActionSkip:
		return true
	}
	return false
}

// DecisionStatus separates reasoned decisions from transport or invariant
// failures. A FAILED decision is settled like a SKIP but counted separately,
// so a crashed persona is never misread as a deliberate abstention.
type DecisionStatus string

const (
	DecisionOK     DecisionStatus = "ok"
	DecisionFailed DecisionStatus = "failed"
)

// Decision is one persona's committed action for one market and window.
type Decision struct {
	Persona    string
	Ticker     string
	Window     WindowLabel
	Action     Action
	Stake      float64 // dollars; 0 for SKIP and FAILED
	Rationale  string
	Status     DecisionStatus
	FailReason string // set only when Status == DecisionFailed
	DecidedAt  time.Time
}

// FailedDecision builds the explicit placeholder recorded when a persona's
// request errored, timed out, or produced an unusable reply.
func FailedDecision(persona, ticker string, window WindowLabel, reason string, at time.Time) Decision {
	return Decision{
		Persona:    persona,
		Ticker:     ticker,
		Window:     window,
		Action:     ActionSkip,
		Status:     DecisionFailed,
		FailReason: reason,
		DecidedAt:  at,
	}
}

// IsFailed reports whether the decision is a failure placeholder.
func (d Decision) IsFailed() bool {
	return d.Status == DecisionFailed
}

// TakesPosition reports whether the decision commits money to a side. Only OK
// buy decisions count; SKIP and FAILED never do.
func (d Decision) TakesPosition() bool {
	return d.Status == DecisionOK && (d.Action == ActionBuyYes || d.Action == ActionBuyNo)
}

// RoundRecord is one whole blind round: every persona's decision (success or
// FAILED) for a single market and window, in canonical persona order. Rounds
// are appended to the decision log as one atomic unit before any settlement.
// The YES price the round was decided on is carried in the record so that
// settlement can be replayed from the log alone, without re-slicing.
type RoundRecord struct {
	RoundID   string
	RunID     string
	Ticker    string
	Window    WindowLabel
	YesCents  int
	SampledAt time.Time
	Decisions []Decision
	LoggedAt  time.Time
}
