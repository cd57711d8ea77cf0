package persona

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func testPersona() Persona {
	return Persona{
		ID:       "contrarian",
		Name:     "The Contrarian",
		Traits:   []string{"skeptical", "patient"},
		Style:    "fades consensus at extreme prices",
		MaxStake: 25,
	}
}

func testSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Ticker:    "FED-DEC",
		Title:     "Fed cuts in December?",
		Question:  "Will the Fed cut rates at the December meeting?",
		YesCents:  72,
		NoCents:   28,
		Window:    domain.Window1D,
		SampledAt: time.Date(2024, 12, 17, 12, 0, 0, 0, time.UTC),
	}
}

func TestProposeBuildsDecision(t *testing.T) {
	completer := &fakeCompleter{reply: `{"action": "BUY_NO", "stake_usd": 10, "rationale": "market too sure"}`}
	producer := NewProducer(completer, testLogger)

	d, err := producer.Propose(context.Background(), testPersona(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected propose error: %v", err)
	}
	if d.Persona != "contrarian" || d.Ticker != "FED-DEC" || d.Window != domain.Window1D {
		t.Fatalf("decision identity wrong: %+v", d)
	}
	if d.Action != domain.ActionBuyNo || d.Stake != 10 || d.Status != domain.DecisionOK {
		t.Fatalf("decision content wrong: %+v", d)
	}
}

func TestProposeClampsStakeToMaxStake(t *testing.T) {
	completer := &fakeCompleter{reply: `{"action": "BUY_YES", "stake_usd": 500, "rationale": "all in"}`}
	producer := NewProducer(completer, testLogger)

	d, err := producer.Propose(context.Background(), testPersona(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected propose error: %v", err)
	}
	if d.Stake != 25 {
		t.Fatalf("stake should clamp to max_stake 25, got %.2f", d.Stake)
	}
}

func TestProposeReturnsTransportError(t *testing.T) {
	wantErr := errors.New("rate limited")
	producer := NewProducer(&fakeCompleter{err: wantErr}, testLogger)

	if _, err := producer.Propose(context.Background(), testPersona(), testSnapshot()); !errors.Is(err, wantErr) {
		t.Fatalf("expected transport error to surface, got %v", err)
	}
}

func TestPromptsCarryOnlySnapshotFields(t *testing.T) {
	completer := &fakeCompleter{reply: `{"action": "SKIP", "stake_usd": 0, "rationale": "pass"}`}
	producer := NewProducer(completer, testLogger)

	snap := testSnapshot()
	if _, err := producer.Propose(context.Background(), testPersona(), snap); err != nil {
		t.Fatalf("unexpected propose error: %v", err)
	}

	if !strings.Contains(completer.user, "YES 72 cents") || !strings.Contains(completer.user, snap.Question) {
		t.Fatalf("user prompt missing snapshot data:\n%s", completer.user)
	}
	for _, forbidden := range []string{"YES_WON", "NO_WON", "outcome", "resolved"} {
		if strings.Contains(completer.user, forbidden) || strings.Contains(completer.system, forbidden) {
			t.Fatalf("prompt leaks resolution vocabulary %q", forbidden)
		}
	}
	if !strings.Contains(completer.system, "The Contrarian") {
		t.Fatalf("system prompt missing persona identity:\n%s", completer.system)
	}
}
