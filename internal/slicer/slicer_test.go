package slicer

import (
	"errors"
	"testing"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

var closeAt = time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)

func record(prices ...domain.PricePoint) *domain.MarketRecord {
	return &domain.MarketRecord{
		Ticker:   "FED-DEC",
		Title:    "Fed cuts in December?",
		Question: "Will the Fed cut rates at the December meeting?",
		Category: "economics",
		OpenedAt: closeAt.AddDate(0, -2, 0),
		ClosedAt: closeAt,
		Prices:   prices,
		Outcome:  domain.OutcomeYesWon,
	}
}

func at(offset time.Duration, cents int) domain.PricePoint {
	return domain.PricePoint{Timestamp: closeAt.Add(-offset), PriceCents: cents}
}

func TestSliceNearestWithinTolerance(t *testing.T) {
	rec := record(
		at(7*24*time.Hour+3*time.Hour, 40), // 3h off the 7d target
		at(24*time.Hour+time.Hour, 72),     // 1h off the 1d target
		at(30*time.Minute, 85),
	)

	snap, err := New().Slice(rec, domain.Window1D)
	if err != nil {
		t.Fatalf("unexpected slice error: %v", err)
	}
	if snap.YesCents != 72 || snap.NoCents != 28 {
		t.Fatalf("expected 72/28, got %d/%d", snap.YesCents, snap.NoCents)
	}
	if snap.Window != domain.Window1D {
		t.Fatalf("expected window 1d, got %s", snap.Window)
	}
	if !snap.SampledAt.Equal(closeAt.Add(-25 * time.Hour)) {
		t.Fatalf("snapshot must carry the matched sample time, got %s", snap.SampledAt)
	}
}

func TestSliceDeterministic(t *testing.T) {
	rec := record(
		at(26*time.Hour, 70),
		at(22*time.Hour, 74), // equidistant from the 1d target
	)

	first, err := New().Slice(rec, domain.Window1D)
	if err != nil {
		t.Fatalf("unexpected slice error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := New().Slice(rec, domain.Window1D)
		if err != nil {
			t.Fatalf("unexpected slice error on repeat %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("slice is not deterministic: %+v vs %+v", again, first)
		}
	}
	// Ties resolve to the earlier sample.
	if first.YesCents != 70 {
		t.Fatalf("tie should resolve to the earlier sample, got %d cents", first.YesCents)
	}
}

func TestSliceToleranceMiss(t *testing.T) {
	rec := record(at(24*time.Hour+7*time.Hour, 50)) // 7h off, default 1d tolerance is 6h

	_, err := New().Slice(rec, domain.Window1D)
	if !errors.Is(err, domain.ErrNoPriceData) {
		t.Fatalf("expected ErrNoPriceData, got %v", err)
	}
}

func TestSliceEmptySeries(t *testing.T) {
	_, err := New().Slice(record(), domain.Window1D)
	if !errors.Is(err, domain.ErrNoPriceData) {
		t.Fatalf("expected ErrNoPriceData, got %v", err)
	}
}

func TestSliceSuspiciousConvergence(t *testing.T) {
	rec := record(at(24*time.Hour, 98))

	_, err := New().Slice(rec, domain.Window1D)
	if !errors.Is(err, domain.ErrSuspiciousConvergence) {
		t.Fatalf("expected ErrSuspiciousConvergence, got %v", err)
	}
}

func TestSliceCustomBand(t *testing.T) {
	rec := record(at(24*time.Hour, 98))

	snap, err := New(WithInterestingBand(1, 99)).Slice(rec, domain.Window1D)
	if err != nil {
		t.Fatalf("unexpected slice error with widened band: %v", err)
	}
	if snap.YesCents != 98 {
		t.Fatalf("expected 98 cents, got %d", snap.YesCents)
	}
}

func TestSliceCustomTolerance(t *testing.T) {
	rec := record(at(24*time.Hour+7*time.Hour, 50))

	sl := New(WithTolerances(Tolerances{domain.Window1D: 8 * time.Hour}))
	if _, err := sl.Slice(rec, domain.Window1D); err != nil {
		t.Fatalf("widened tolerance should admit the sample: %v", err)
	}
	// Other windows keep their defaults.
	farRec := record(at(7*24*time.Hour+30*time.Hour, 50))
	if _, err := sl.Slice(farRec, domain.Window7D); !errors.Is(err, domain.ErrNoPriceData) {
		t.Fatalf("7d default tolerance should still apply, got %v", err)
	}
}

// Two records identical except for their outcome must slice to identical
// snapshots at every window: the snapshot carries nothing the outcome can
// influence.
func TestSliceOutcomeInvisible(t *testing.T) {
	prices := []domain.PricePoint{
		at(7*24*time.Hour, 40),
		at(3*24*time.Hour, 55),
		at(24*time.Hour, 72),
		at(6*time.Hour, 80),
		at(time.Hour, 88),
	}
	yes := record(prices...)
	no := record(prices...)
	no.Outcome = domain.OutcomeNoWon

	sl := New()
	for _, label := range domain.AllWindows {
		snapYes, errYes := sl.Slice(yes, label)
		snapNo, errNo := sl.Slice(no, label)
		if (errYes == nil) != (errNo == nil) {
			t.Fatalf("%s: outcome changed slice failure: %v vs %v", label, errYes, errNo)
		}
		if snapYes != snapNo {
			t.Fatalf("%s: outcome leaked into snapshot: %+v vs %+v", label, snapYes, snapNo)
		}
	}
}

func TestSliceUnknownWindow(t *testing.T) {
	rec := record(at(24*time.Hour, 50))
	if _, err := New().Slice(rec, domain.WindowLabel("2d")); err == nil {
		t.Fatalf("expected error for unknown window")
	}
}
