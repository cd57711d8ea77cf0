package domain

import "time"

// Outcome is the final resolution of a binary market.
type Outcome string

const (
	OutcomeYesWon Outcome = "YES_WON"
	OutcomeNoWon  Outcome = "NO_WON"
)

// Valid reports whether o is one of the two known resolutions.
func (o Outcome) Valid() bool {
	return o == OutcomeYesWon || o == OutcomeNoWon
}

// PricePoint is a single sample of a market's YES price.
type PricePoint struct {
	Timestamp  time.Time
	PriceCents int // [0,100]
}

// MarketRecord is the full, validated representation of one resolved binary
// market. It is the only type in the system that carries the outcome and any
// post-close data; it must never be handed to a decision-making agent. The
// only path from a MarketRecord to something an agent may see is
// slicer.Slice, which produces a MarketSnapshot.
//
// Records are built once by the ingest layer and never mutated afterwards.
type MarketRecord struct {
	Ticker      string
	Title       string
	Question    string
	Description string
	Category    string
	OpenedAt    time.Time
	ClosedAt    time.Time
	Prices      []PricePoint // ordered by timestamp ascending
	Outcome     Outcome
}

// PriceSpan returns the timestamps of the first and last price samples.
// Both are zero when the record carries no samples.
func (m *MarketRecord) PriceSpan() (first, last time.Time) {
	if len(m.Prices) == 0 {
		return time.Time{}, time.Time{}
	}
	return m.Prices[0].Timestamp, m.Prices[len(m.Prices)-1].Timestamp
}
