package domain

import (
	"fmt"
	"time"
)

// MarketSnapshot is the outcome-free view of one market at one window. It is
// everything a decision-making agent is allowed to see. The type deliberately
// shares no fields or embedding with MarketRecord that could encode the
// resolution: no outcome, no close time, no post-window prices.
//
// Snapshots are constructed only by the slicer package; nothing in the
// decision path builds one by hand.
type MarketSnapshot struct {
	Ticker      string
	Title       string
	Question    string
	Description string
	Category    string

	YesCents int // YES price in cents at the window
	NoCents  int // 100 - YesCents

	Window    WindowLabel
	SampledAt time.Time // wall-clock time the price sample was taken
}

// Validate checks the structural invariants of a snapshot: complementary
// prices summing to 100 and both sides within [0,100].
func (s MarketSnapshot) Validate() error {
	if s.YesCents < 0 || s.YesCents > 100 {
		return fmt.Errorf("snapshot %s/%s: yes price %d out of range: %w",
			s.Ticker, s.Window, s.YesCents, ErrInvalidSnapshot)
	}
	if s.YesCents+s.NoCents != 100 {
		return fmt.Errorf("snapshot %s/%s: yes %d + no %d != 100: %w",
			s.Ticker, s.Window, s.YesCents, s.NoCents, ErrInvalidSnapshot)
	}
	if !s.Window.Valid() {
		return fmt.Errorf("snapshot %s: unknown window %q: %w", s.Ticker, s.Window, ErrInvalidSnapshot)
	}
	return nil
}
