package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSnapshotValidate(t *testing.T) {
	good := MarketSnapshot{Ticker: "T", YesCents: 72, NoCents: 28, Window: Window1D}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	cases := []MarketSnapshot{
		{Ticker: "T", YesCents: 72, NoCents: 30, Window: Window1D}, // sum != 100
		{Ticker: "T", YesCents: -1, NoCents: 101, Window: Window1D},
		{Ticker: "T", YesCents: 101, NoCents: -1, Window: Window1D},
		{Ticker: "T", YesCents: 50, NoCents: 50, Window: "2d"},
	}
	for i, snap := range cases {
		if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
			t.Fatalf("case %d: expected ErrInvalidSnapshot, got %v", i, err)
		}
	}
}

func TestWindowsInOrder(t *testing.T) {
	got := WindowsInOrder([]WindowLabel{Window1H, Window7D, Window1D, "bogus"})
	want := []WindowLabel{Window7D, Window1D, Window1H}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWindowOffsetsDescendTowardResolution(t *testing.T) {
	for i := 1; i < len(AllWindows); i++ {
		if AllWindows[i-1].Offset() <= AllWindows[i].Offset() {
			t.Fatalf("window order broken at %s -> %s", AllWindows[i-1], AllWindows[i])
		}
	}
}

func TestDecisionTakesPosition(t *testing.T) {
	buy := Decision{Action: ActionBuyYes, Stake: 10, Status: DecisionOK}
	if !buy.TakesPosition() {
		t.Fatalf("OK buy must take a position")
	}
	skip := Decision{Action: ActionSkip, Status: DecisionOK}
	if skip.TakesPosition() {
		t.Fatalf("skip must not take a position")
	}
	failed := FailedDecision("p", "t", Window1D, "timeout", time.Now())
	if failed.TakesPosition() {
		t.Fatalf("FAILED must not take a position")
	}
	if !failed.IsFailed() || failed.Action != ActionSkip || failed.Stake != 0 {
		t.Fatalf("failure placeholder malformed: %+v", failed)
	}
}
