// Package slicer derives outcome-free market snapshots from full market
// records. It is the single conversion point between the two representations
// and the sole owner of the window/offset arithmetic, so the decision path
// can never see anything a snapshot does not carry.
package slicer

import (
	"fmt"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

// Tolerances bounds how far (in either direction) the nearest price sample
// may sit from a window's target time. Liquidity is denser near resolution,
// so late windows get tighter defaults than early ones.
type Tolerances map[domain.WindowLabel]time.Duration

// DefaultTolerances returns the per-window matching tolerances used when the
// configuration does not override them.
func DefaultTolerances() Tolerances {
	return Tolerances{
		domain.Window7D: 24 * time.Hour,
		domain.Window3D: 12 * time.Hour,
		domain.Window1D: 6 * time.Hour,
		domain.Window6H: 2 * time.Hour,
		domain.Window1H: 30 * time.Minute,
	}
}

// Slicer converts MarketRecords into MarketSnapshots for named windows.
// For a fixed record, label, and configuration the result is always
// identical: no randomness, no dependence on call order.
type Slicer struct {
	tolerances Tolerances
	bandLow    int
	bandHigh   int
}

// Option adjusts a Slicer at construction time.
type Option func(*Slicer)

// WithTolerances overrides the per-window matching tolerances. Labels missing
// from t keep their defaults.
func WithTolerances(t Tolerances) Option {
	return func(s *Slicer) {
		for label, d := range t {
			if d > 0 {
				s.tolerances[label] = d
			}
		}
	}
}

// WithInterestingBand overrides the [low,high] cent band outside which a
// matched price is rejected as suspicious convergence.
func WithInterestingBand(low, high int) Option {
	return func(s *Slicer) {
		s.bandLow = low
		s.bandHigh = high
	}
}

// New creates a Slicer with the default tolerances and a [5,95] cent
// interesting band.
func New(opts ...Option) *Slicer {
	s := &Slicer{
		tolerances: DefaultTolerances(),
		bandLow:    5,
		bandHigh:   95,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slice produces the outcome-free snapshot of record at the given window.
//
// The target time is the record's close minus the window offset. The price
// series is searched for the sample closest (absolute gap) to the target; the
// match is accepted only when the gap is within the window's tolerance,
// otherwise Slice fails with domain.ErrNoPriceData. A matched price outside
// the interesting band fails with domain.ErrSuspiciousConvergence; the caller
// decides whether to drop the market, drop the window, or fall back to an
// earlier window.
func (s *Slicer) Slice(record *domain.MarketRecord, label domain.WindowLabel) (domain.MarketSnapshot, error) {
	if !label.Valid() {
		return domain.MarketSnapshot{}, fmt.Errorf("slicer: unknown window %q", label)
	}
	if len(record.Prices) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("slicer: %s at %s: empty price series: %w",
			record.Ticker, label, domain.ErrNoPriceData)
	}

	target := record.ClosedAt.Add(-label.Offset())
	point, gap := nearest(record.Prices, target)

	tolerance := s.tolerances[label]
	if gap > tolerance {
		return domain.MarketSnapshot{}, fmt.Errorf(
			"slicer: %s at %s: nearest sample %s off target (tolerance %s): %w",
			record.Ticker, label, gap, tolerance, domain.ErrNoPriceData)
	}
	if point.PriceCents < s.bandLow || point.PriceCents > s.bandHigh {
		return domain.MarketSnapshot{}, fmt.Errorf(
			"slicer: %s at %s: price %d outside [%d,%d]: %w",
			record.Ticker, label, point.PriceCents, s.bandLow, s.bandHigh,
			domain.ErrSuspiciousConvergence)
	}

	snap := domain.MarketSnapshot{
		Ticker:      record.Ticker,
		Title:       record.Title,
		Question:    record.Question,
		Description: record.Description,
		Category:    record.Category,
		YesCents:    point.PriceCents,
		NoCents:     100 - point.PriceCents,
		Window:      label,
		SampledAt:   point.Timestamp,
	}
	if err := snap.Validate(); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("slicer: %s at %s: %w", record.Ticker, label, err)
	}
	return snap, nil
}

// nearest returns the sample closest to target and its absolute gap. Ties on
// distance resolve to the earlier sample, which keeps results deterministic.
// The series is ordered, so a binary search bounds the candidates to the two
// samples straddling the target.
func nearest(prices []domain.PricePoint, target time.Time) (domain.PricePoint, time.Duration) {
	lo, hi := 0, len(prices)
	for lo < hi {
		mid := (lo + hi) / 2
		if prices[mid].Timestamp.Before(target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	// lo is the first sample at or after target.
	best := prices[min(lo, len(prices)-1)]
	if lo > 0 {
		before := prices[lo-1]
		if absGap(before.Timestamp, target) <= absGap(best.Timestamp, target) {
			best = before
		}
	}
	return best, absGap(best.Timestamp, target)
}

func absGap(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
