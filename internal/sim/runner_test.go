package sim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/ingest"
	"github.com/dwhitley/personabench/internal/persona"
	"github.com/dwhitley/personabench/internal/round"
	"github.com/dwhitley/personabench/internal/settle"
	"github.com/dwhitley/personabench/internal/slicer"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

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
	var out []domain.RoundRecord
	for _, r := range l.rounds {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memLog) RunIDs(ctx context.Context) ([]string, error) { return nil, nil }

// alwaysYes stakes a fixed amount on YES for every snapshot it sees.
type alwaysYes struct{ stake float64 }

func (a alwaysYes) Propose(ctx context.Context, p persona.Persona, snap domain.MarketSnapshot) (domain.Decision, error) {
	return domain.Decision{
		Persona: p.ID,
		Ticker:  snap.Ticker,
		Window:  snap.Window,
		Action:  domain.ActionBuyYes,
		Stake:   a.stake,
		Status:  domain.DecisionOK,
	}, nil
}

func testMarket(ticker string, closedAt time.Time, outcome domain.Outcome, windows ...domain.WindowLabel) *domain.MarketRecord {
	rec := &domain.MarketRecord{
		Ticker:   ticker,
		Title:    ticker,
		Question: "?",
		OpenedAt: closedAt.AddDate(0, -1, 0),
		ClosedAt: closedAt,
		Outcome:  outcome,
	}
	for _, w := range windows {
		rec.Prices = append(rec.Prices, domain.PricePoint{
			Timestamp:  closedAt.Add(-w.Offset()),
			PriceCents: 50,
		})
	}
	return rec
}

func testRunner(t *testing.T, log domain.DecisionLog, records []*domain.MarketRecord, windows []domain.WindowLabel, parallel int) (*Runner, *settle.Engine) {
	t.Helper()
	personas := []persona.Persona{
		{ID: "a", Style: "x", MaxStake: 100},
		{ID: "b", Style: "y", MaxStake: 100},
	}
	engine := settle.NewEngine([]string{"a", "b"}, 100, testLogger)
	coord := round.New(alwaysYes{stake: 10}, log, time.Second, testLogger)
	runner := NewRunner(Config{
		Markets:  ingest.NewMemoryStore(records),
		Slicer:   slicer.New(),
		Rounds:   coord,
		Engine:   engine,
		Personas: personas,
		Windows:  windows,
		Parallel: parallel,
	}, testLogger)
	return runner, engine
}

func TestRunSettlesInResolutionOrder(t *testing.T) {
	early := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	late := time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)
	records := []*domain.MarketRecord{
		testMarket("LATE", late, domain.OutcomeYesWon, domain.Window1D),
		testMarket("EARLY", early, domain.OutcomeNoWon, domain.Window1D),
	}
	log := &memLog{}
	runner, engine := testRunner(t, log, records, []domain.WindowLabel{domain.Window1D}, 2)

	if err := runner.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	points := engine.BalancePoints()
	if len(points) != 4 {
		t.Fatalf("expected 4 balance points (2 personas x 2 markets), got %d", len(points))
	}
	// Seq 0 must be the earlier-resolving market regardless of blind-phase
	// scheduling.
	for _, pt := range points {
		if pt.Seq == 0 && pt.Ticker != "EARLY" {
			t.Fatalf("seq 0 should be EARLY, got %s", pt.Ticker)
		}
		if pt.Seq == 1 && pt.Ticker != "LATE" {
			t.Fatalf("seq 1 should be LATE, got %s", pt.Ticker)
		}
	}
}

func TestRunDropsUnsliceableWindowOnly(t *testing.T) {
	closedAt := time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)
	// Only a 1d sample exists; the 7d window has nothing within tolerance.
	records := []*domain.MarketRecord{
		testMarket("FED-DEC", closedAt, domain.OutcomeYesWon, domain.Window1D),
	}
	log := &memLog{}
	runner, engine := testRunner(t, log, records,
		[]domain.WindowLabel{domain.Window7D, domain.Window1D}, 1)

	if err := runner.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(log.rounds) != 1 {
		t.Fatalf("expected 1 logged round (7d dropped), got %d", len(log.rounds))
	}
	if log.rounds[0].Window != domain.Window1D {
		t.Fatalf("surviving round should be 1d, got %s", log.rounds[0].Window)
	}
	pf := engine.Portfolios()[0]
	if pf.Entered != 1 {
		t.Fatalf("market should still settle from its surviving window, entered=%d", pf.Entered)
	}
}

func TestSettleFromLogMatchesLiveRun(t *testing.T) {
	closedAt := time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)
	records := []*domain.MarketRecord{
		testMarket("FED-DEC", closedAt, domain.OutcomeYesWon, domain.Window1D),
	}
	log := &memLog{}
	liveRunner, liveEngine := testRunner(t, log, records, []domain.WindowLabel{domain.Window1D}, 1)
	if err := liveRunner.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("live run: %v", err)
	}

	rounds, err := log.Rounds(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	replayEngine := settle.NewEngine([]string{"a", "b"}, 100, testLogger)
	replayRunner := NewRunner(Config{
		Markets: ingest.NewMemoryStore(records),
		Engine:  replayEngine,
	}, testLogger)
	if err := replayRunner.SettleFromLog(rounds); err != nil {
		t.Fatalf("replay: %v", err)
	}

	livePf := liveEngine.Portfolios()
	replayPf := replayEngine.Portfolios()
	for i := range livePf {
		if math.Abs(livePf[i].Balance-replayPf[i].Balance) > 1e-9 {
			t.Fatalf("replay balance diverged for %s: %.4f vs %.4f",
				livePf[i].Persona, livePf[i].Balance, replayPf[i].Balance)
		}
	}
}

func TestSettleFromLogUnknownTickerFails(t *testing.T) {
	replayEngine := settle.NewEngine([]string{"a"}, 100, testLogger)
	runner := NewRunner(Config{
		Markets: ingest.NewMemoryStore(nil),
		Engine:  replayEngine,
	}, testLogger)

	rounds := []domain.RoundRecord{{
		RoundID:  "r1",
		RunID:    "run-1",
		Ticker:   "GHOST",
		Window:   domain.Window1D,
		YesCents: 50,
		Decisions: []domain.Decision{{
			Persona: "a", Ticker: "GHOST", Window: domain.Window1D,
			Action: domain.ActionBuyYes, Stake: 5, Status: domain.DecisionOK,
		}},
	}}
	if err := runner.SettleFromLog(rounds); err == nil {
		t.Fatalf("expected error for logged market missing from the store")
	}
}
