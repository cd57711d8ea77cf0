package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/persona"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeProducer returns scripted decisions per persona id. A nil entry makes
// the persona hang until its context expires.
type fakeProducer struct {
	mu      sync.Mutex
	replies map[string]func(snap domain.MarketSnapshot) (domain.Decision, error)
	calls   []string
}

func (f *fakeProducer) Propose(ctx context.Context, p persona.Persona, snap domain.MarketSnapshot) (domain.Decision, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p.ID)
	reply := f.replies[p.ID]
	f.mu.Unlock()

	if reply == nil {
		<-ctx.Done()
		return domain.Decision{}, ctx.Err()
	}
	return reply(snap)
}

type memLog struct {
	mu     sync.Mutex
	rounds []domain.RoundRecord
}

func (l *memLog) AppendRound(ctx context.Context, rec domain.RoundRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rounds = append(l.rounds, rec)
	return nil
}

func (l *memLog) Rounds(ctx context.Context, runID string) ([]domain.RoundRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.RoundRecord(nil), l.rounds...), nil
}

func (l *memLog) RunIDs(ctx context.Context) ([]string, error) { return nil, nil }

func buyReply(action domain.Action, stake float64) func(domain.MarketSnapshot) (domain.Decision, error) {
	return func(snap domain.MarketSnapshot) (domain.Decision, error) {
		return domain.Decision{
			Ticker: snap.Ticker,
			Window: snap.Window,
			Action: action,
			Stake:  stake,
			Status: domain.DecisionOK,
		}, nil
	}
}

func personaSet(ids ...string) []persona.Persona {
	out := make([]persona.Persona, len(ids))
	for i, id := range ids {
		out[i] = persona.Persona{ID: id, Name: id, Style: "test", MaxStake: 100}
	}
	return out
}

func snapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Ticker:    "FED-DEC",
		Title:     "Fed cuts in December?",
		YesCents:  72,
		NoCents:   28,
		Window:    domain.Window1D,
		SampledAt: time.Date(2024, 12, 17, 12, 0, 0, 0, time.UTC),
	}
}

// stamp fills the Persona field the way the producer does after parsing.
func stamped(id string, reply func(domain.MarketSnapshot) (domain.Decision, error)) func(domain.MarketSnapshot) (domain.Decision, error) {
	return func(snap domain.MarketSnapshot) (domain.Decision, error) {
		d, err := reply(snap)
		d.Persona = id
		return d, err
	}
}

func TestRunCollectsCanonicalOrder(t *testing.T) {
	producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
		"a-contrarian": stamped("a-contrarian", buyReply(domain.ActionBuyYes, 10)),
		"b-follower":   stamped("b-follower", buyReply(domain.ActionBuyNo, 5)),
		"c-skeptic":    stamped("c-skeptic", buyReply(domain.ActionSkip, 0)),
	}}
	log := &memLog{}
	coord := New(producer, log, time.Second, testLogger)

	rec, err := coord.Run(context.Background(), "run-1", snapshot(), personaSet("a-contrarian", "b-follower", "c-skeptic"))
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(rec.Decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(rec.Decisions))
	}
	order := []string{"a-contrarian", "b-follower", "c-skeptic"}
	for i, want := range order {
		if rec.Decisions[i].Persona != want {
			t.Fatalf("slot %d: expected %s, got %s", i, want, rec.Decisions[i].Persona)
		}
	}
	if rec.YesCents != 72 || rec.Ticker != "FED-DEC" || rec.Window != domain.Window1D {
		t.Fatalf("round record does not carry the snapshot identity: %+v", rec)
	}
	if rec.RoundID == "" {
		t.Fatalf("round id missing")
	}
}

func TestRunTimeoutBecomesFailedPlaceholder(t *testing.T) {
	producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
		"a": stamped("a", buyReply(domain.ActionBuyYes, 10)),
		// "b" missing: hangs until its per-request timeout.
		"c": stamped("c", buyReply(domain.ActionSkip, 0)),
		"d": stamped("d", buyReply(domain.ActionBuyNo, 3)),
	}}
	log := &memLog{}
	coord := New(producer, log, 20*time.Millisecond, testLogger)

	rec, err := coord.Run(context.Background(), "run-1", snapshot(), personaSet("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	if len(rec.Decisions) != 4 {
		t.Fatalf("expected 4 decisions, got %d", len(rec.Decisions))
	}
	failed := rec.Decisions[1]
	if !failed.IsFailed() || failed.Persona != "b" {
		t.Fatalf("slot 1 should be b's FAILED placeholder, got %+v", failed)
	}
	if failed.FailReason != "timeout" {
		t.Fatalf("expected timeout reason, got %q", failed.FailReason)
	}
	for _, i := range []int{0, 2, 3} {
		if rec.Decisions[i].IsFailed() {
			t.Fatalf("slot %d should have succeeded: %+v", i, rec.Decisions[i])
		}
	}
}

func TestRunLogsBeforeReturn(t *testing.T) {
	producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
		"a": stamped("a", buyReply(domain.ActionBuyYes, 10)),
	}}
	log := &memLog{}
	coord := New(producer, log, time.Second, testLogger)

	rec, err := coord.Run(context.Background(), "run-1", snapshot(), personaSet("a"))
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(log.rounds) != 1 || log.rounds[0].RoundID != rec.RoundID {
		t.Fatalf("round must be in the log before Run returns")
	}
}

// ctxLog refuses appends on a dead context, like the sqlite log does.
type ctxLog struct {
	memLog
}

func (l *ctxLog) AppendRound(ctx context.Context, rec domain.RoundRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.memLog.AppendRound(ctx, rec)
}

func TestRunCancelledRoundIsStillLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
		"a": func(snap domain.MarketSnapshot) (domain.Decision, error) {
			// Cancel the round after this persona has its decision; "b" is
			// still blocked and must become a FAILED placeholder.
			d, err := stamped("a", buyReply(domain.ActionBuyYes, 10))(snap)
			cancel()
			return d, err
		},
		// "b" missing: hangs until the round-level cancellation.
	}}
	log := &ctxLog{}
	coord := New(producer, log, time.Minute, testLogger)

	rec, err := coord.Run(ctx, "run-1", snapshot(), personaSet("a", "b"))
	if err != nil {
		t.Fatalf("cancelled round must still append: %v", err)
	}

	if rec.Decisions[0].IsFailed() || rec.Decisions[0].Persona != "a" {
		t.Fatalf("a's returned decision must survive cancellation, got %+v", rec.Decisions[0])
	}
	if !rec.Decisions[1].IsFailed() || rec.Decisions[1].FailReason != "cancelled" {
		t.Fatalf("b should be a FAILED cancellation placeholder, got %+v", rec.Decisions[1])
	}

	logged, err := log.Rounds(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(logged) != 1 || logged[0].RoundID != rec.RoundID {
		t.Fatalf("the completed round must reach the durable log, got %d rounds", len(logged))
	}
}

func TestRunAppendFailureFailsTheRound(t *testing.T) {
	producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
		"a": stamped("a", buyReply(domain.ActionBuyYes, 10)),
	}}
	coord := New(producer, failingLog{}, time.Second, testLogger)

	if _, err := coord.Run(context.Background(), "run-1", snapshot(), personaSet("a")); err == nil {
		t.Fatalf("expected error when the log append fails")
	}
}

type failingLog struct{}

func (failingLog) AppendRound(ctx context.Context, rec domain.RoundRecord) error {
	return errors.New("disk full")
}
func (failingLog) Rounds(ctx context.Context, runID string) ([]domain.RoundRecord, error) {
	return nil, nil
}
func (failingLog) RunIDs(ctx context.Context) ([]string, error) { return nil, nil }

func TestRunRejectsInvalidSnapshot(t *testing.T) {
	coord := New(&fakeProducer{}, &memLog{}, time.Second, testLogger)

	bad := snapshot()
	bad.NoCents = 50 // 72 + 50 != 100
	if _, err := coord.Run(context.Background(), "run-1", bad, personaSet("a")); !errors.Is(err, domain.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestNormalizeRejectsMalformedDecisions(t *testing.T) {
	cases := []struct {
		name  string
		reply func(domain.MarketSnapshot) (domain.Decision, error)
	}{
		{"wrong persona", stamped("intruder", buyReply(domain.ActionBuyYes, 10))},
		{"wrong ticker", func(snap domain.MarketSnapshot) (domain.Decision, error) {
			return domain.Decision{Persona: "a", Ticker: "OTHER", Window: snap.Window, Action: domain.ActionBuyYes, Stake: 10, Status: domain.DecisionOK}, nil
		}},
		{"invalid action", func(snap domain.MarketSnapshot) (domain.Decision, error) {
			return domain.Decision{Persona: "a", Ticker: snap.Ticker, Window: snap.Window, Action: "HOLD", Stake: 10, Status: domain.DecisionOK}, nil
		}},
		{"negative stake", func(snap domain.MarketSnapshot) (domain.Decision, error) {
			return domain.Decision{Persona: "a", Ticker: snap.Ticker, Window: snap.Window, Action: domain.ActionBuyYes, Stake: -1, Status: domain.DecisionOK}, nil
		}},
		{"zero stake buy", func(snap domain.MarketSnapshot) (domain.Decision, error) {
			return domain.Decision{Persona: "a", Ticker: snap.Ticker, Window: snap.Window, Action: domain.ActionBuyYes, Stake: 0, Status: domain.DecisionOK}, nil
		}},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			producer := &fakeProducer{replies: map[string]func(domain.MarketSnapshot) (domain.Decision, error){
				"a": tc.reply,
			}}
			coord := New(producer, &memLog{}, time.Second, testLogger)
			rec, err := coord.Run(context.Background(), fmt.Sprintf("run-%d", i), snapshot(), personaSet("a"))
			if err != nil {
				t.Fatalf("unexpected run error: %v", err)
			}
			if !rec.Decisions[0].IsFailed() {
				t.Fatalf("malformed decision should become FAILED, got %+v", rec.Decisions[0])
			}
		})
	}
}
