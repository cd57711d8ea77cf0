// Package settle converts committed decisions plus eventual outcomes into
// realized profit/loss on per-persona portfolios, and derives the run's
// calibration statistics. It is pure computation over already-available data:
// no decision-producer, no I/O, no suspension.
package settle

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

// Engine owns every PortfolioState in a run. Nothing else may mutate them,
// and each persona/market pair settles exactly once.
type Engine struct {
	mu         sync.Mutex
	personas   []string // canonical order
	portfolios map[string]*domain.PortfolioState
	settled    map[string]bool // persona + "\x00" + ticker
	points     []domain.BalancePoint
	seq        int
	logger     *slog.Logger
}

// NewEngine creates an Engine with one portfolio per persona, each starting
// at startingBalance dollars.
func NewEngine(personaIDs []string, startingBalance float64, logger *slog.Logger) *Engine {
	ids := append([]string(nil), personaIDs...)
	sort.Strings(ids)

	portfolios := make(map[string]*domain.PortfolioState, len(ids))
	for _, id := range ids {
		portfolios[id] = &domain.PortfolioState{
			Persona:         id,
			StartingBalance: startingBalance,
			Balance:         startingBalance,
		}
	}
	return &Engine{
		personas:   ids,
		portfolios: portfolios,
		settled:    make(map[string]bool),
		logger:     logger.With(slog.String("component", "settle")),
	}
}

// commit picks a persona's final committed decision from its decisions across
// a market's windows, which must be given in window order. The last decision
// that takes a position wins; each later position fully replaces the earlier
// one, side and stake both. SKIP and FAILED never displace a position.
func commit(decisions []domain.Decision) (domain.Decision, bool) {
	var committed domain.Decision
	found := false
	for _, d := range decisions {
		if d.TakesPosition() {
			committed = d
			found = true
		}
	}
	return committed, found
}

// SettleMarket settles one market for every persona from the market's logged
// rounds. Rounds may arrive in any order; they are sorted into window order
// before commitment. Each persona's pair (persona, market) transitions
// NO_POSITION -> COMMITTED -> SETTLED here; a second call for the same market
// fails with domain.ErrAlreadySettled and changes nothing.
func (e *Engine) SettleMarket(record *domain.MarketRecord, rounds []domain.RoundRecord) error {
	if !record.Outcome.Valid() {
		return fmt.Errorf("settle: %s: invalid outcome %q", record.Ticker, record.Outcome)
	}

	ordered := append([]domain.RoundRecord(nil), rounds...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Window.Offset() > ordered[j].Window.Offset()
	})

	type perPersona struct {
		decisions []domain.Decision
		prices    []int // YES cents of the round each decision came from
	}
	byPersona := make(map[string]*perPersona)
	for _, r := range ordered {
		if r.Ticker != record.Ticker {
			return fmt.Errorf("settle: round %s is for %s, not %s", r.RoundID, r.Ticker, record.Ticker)
		}
		for _, d := range r.Decisions {
			pp := byPersona[d.Persona]
			if pp == nil {
				pp = &perPersona{}
				byPersona[d.Persona] = pp
			}
			pp.decisions = append(pp.decisions, d)
			pp.prices = append(pp.prices, r.YesCents)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Refuse the whole market on replay rather than double-applying any
	// persona.
	for _, id := range e.personas {
		if e.settled[settleKey(id, record.Ticker)] {
			return fmt.Errorf("settle: %s/%s: %w", id, record.Ticker, domain.ErrAlreadySettled)
		}
	}

	for _, id := range e.personas {
		pf := e.portfolios[id]
		pp := byPersona[id]

		var decisions []domain.Decision
		var prices []int
		if pp != nil {
			decisions, prices = pp.decisions, pp.prices
		}
		e.settleOneLocked(pf, record, decisions, prices)
		e.settled[settleKey(id, record.Ticker)] = true

		e.points = append(e.points, domain.BalancePoint{
			Persona:    id,
			Ticker:     record.Ticker,
			Seq:        e.seq,
			Balance:    pf.Balance,
			ProfitLoss: lastPnL(pf, record.Ticker),
			ResolvedAt: record.ClosedAt,
		})
	}
	e.seq++
	return nil
}

// settleOneLocked applies one persona's committed decision for one market.
// The caller holds e.mu.
func (e *Engine) settleOneLocked(pf *domain.PortfolioState, record *domain.MarketRecord, decisions []domain.Decision, prices []int) {
	committed, found := commit(decisions)
	if !found {
		// No position. An intentional abstention (any OK decision among the
		// windows) counts as a skip; a persona whose rounds all failed counts
		// under the failure counter. No decisions at all means no round ever
		// ran for this market (every window dropped before dispatch) — a data
		// gap, not a persona failure, so neither counter moves.
		switch {
		case len(decisions) == 0:
		case anyOK(decisions):
			pf.Skipped++
		default:
			pf.Failed++
		}
		return
	}

	priceCents := 0
	for i, d := range decisions {
		if d == committed {
			priceCents = prices[i]
		}
	}
	if committed.Action == domain.ActionBuyNo {
		priceCents = 100 - priceCents
	}

	// Defensive re-checks. The slicer filters degenerate prices and the
	// round normalizes stakes, but a committed decision crosses a trust
	// boundary (it may come from a replayed log), so the engine rejects
	// again instead of assuming.
	if priceCents <= 0 || priceCents >= 100 {
		e.rejectLocked(pf, record.Ticker, fmt.Sprintf("degenerate price %d cents", priceCents))
		return
	}
	if committed.Stake > pf.Balance {
		e.rejectLocked(pf, record.Ticker, fmt.Sprintf("stake %.2f exceeds balance %.2f", committed.Stake, pf.Balance))
		return
	}

	won := (committed.Action == domain.ActionBuyYes && record.Outcome == domain.OutcomeYesWon) ||
		(committed.Action == domain.ActionBuyNo && record.Outcome == domain.OutcomeNoWon)

	contracts, pnl, err := payout(committed.Stake, priceCents, won)
	if err != nil {
		e.rejectLocked(pf, record.Ticker, err.Error())
		return
	}

	pf.Balance += pnl
	pf.Entered++
	pf.Trades = append(pf.Trades, domain.SettledTrade{
		Ticker:     record.Ticker,
		Window:     committed.Window,
		Action:     committed.Action,
		Stake:      committed.Stake,
		PriceCents: priceCents,
		Contracts:  contracts,
		ProfitLoss: pnl,
		Won:        won,
		Outcome:    record.Outcome,
		SettledAt:  time.Now().UTC(),
	})

	e.logger.Debug("settled",
		slog.String("persona", pf.Persona),
		slog.String("ticker", record.Ticker),
		slog.String("action", string(committed.Action)),
		slog.Float64("stake", committed.Stake),
		slog.Int("price_cents", priceCents),
		slog.Bool("won", won),
		slog.Float64("pnl", pnl),
		slog.Float64("balance", pf.Balance),
	)
}

// rejectLocked records an invariant-violating committed decision as a failure
// without touching the balance. These indicate a bug or tampered input and
// are surfaced loudly in the log.
func (e *Engine) rejectLocked(pf *domain.PortfolioState, ticker, reason string) {
	pf.Failed++
	e.logger.Error("committed decision rejected at settlement",
		slog.String("persona", pf.Persona),
		slog.String("ticker", ticker),
		slog.String("reason", reason),
	)
}

// Portfolios returns the portfolios in canonical persona order.
func (e *Engine) Portfolios() []*domain.PortfolioState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.PortfolioState, 0, len(e.personas))
	for _, id := range e.personas {
		out = append(out, e.portfolios[id])
	}
	return out
}

// BalancePoints returns every persona's balance curve in market-resolution
// order, suitable for plotting by an external reporter.
func (e *Engine) BalancePoints() []domain.BalancePoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.BalancePoint(nil), e.points...)
}

func settleKey(persona, ticker string) string {
	return persona + "\x00" + ticker
}

func anyOK(decisions []domain.Decision) bool {
	for _, d := range decisions {
		if !d.IsFailed() {
			return true
		}
	}
	return false
}

func lastPnL(pf *domain.PortfolioState, ticker string) float64 {
	for i := len(pf.Trades) - 1; i >= 0; i-- {
		if pf.Trades[i].Ticker == ticker {
			return pf.Trades[i].ProfitLoss
		}
	}
	return 0
}
