package domain

import "time"

// Confidence grades how sure an agent claims to be that it already knows a
// market's outcome.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceNone, ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Recommendation is the contamination rule's advisory output. The final
// benchmark set is curated by a human from these records; the rule is never
// re-evaluated at simulation time.
type Recommendation string

const (
	RecommendAdmit   Recommendation = "admit"
	RecommendExclude Recommendation = "exclude"
	RecommendFlag    Recommendation = "flag"
)

// ContaminationVerdict is the result of probing whether a decision agent
// already knows a market's outcome. Produced once per candidate market,
// offline, before the market may enter the benchmark set.
type ContaminationVerdict struct {
	Ticker         string
	KnowsOutcome   bool
	Confidence     Confidence
	GuessedOutcome string // agent's self-reported guess, free text, may be empty
	Rationale      string
	Recommendation Recommendation
	CheckedAt      time.Time
}
