// Package sim drives a benchmark run: it walks the admitted markets, slices
// each window, runs blind rounds, and hands the logged rounds to the
// settlement engine in market-resolution order.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/persona"
	"github.com/dwhitley/personabench/internal/round"
	"github.com/dwhitley/personabench/internal/settle"
	"github.com/dwhitley/personabench/internal/slicer"
)

// Runner executes one full simulation run.
type Runner struct {
	markets  domain.MarketStore
	slicer   *slicer.Slicer
	rounds   *round.Coordinator
	engine   *settle.Engine
	personas []persona.Persona
	windows  []domain.WindowLabel
	parallel int
	logger   *slog.Logger
}

// Config bundles the Runner's collaborators.
type Config struct {
	Markets  domain.MarketStore
	Slicer   *slicer.Slicer
	Rounds   *round.Coordinator
	Engine   *settle.Engine
	Personas []persona.Persona
	Windows  []domain.WindowLabel
	// Parallel bounds how many markets run their rounds concurrently.
	// Each market's windows stay strictly sequential regardless.
	Parallel int
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	parallel := cfg.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	return &Runner{
		markets:  cfg.Markets,
		slicer:   cfg.Slicer,
		rounds:   cfg.Rounds,
		engine:   cfg.Engine,
		personas: cfg.Personas,
		windows:  domain.WindowsInOrder(cfg.Windows),
		parallel: parallel,
		logger:   logger.With(slog.String("component", "sim")),
	}
}

// Run executes the blind phase for every market, then settles everything in
// market-resolution order. Rounds are durably logged by the coordinator
// before settlement sees them.
func (r *Runner) Run(ctx context.Context, runID string) error {
	records := r.markets.List()
	if len(records) == 0 {
		return fmt.Errorf("sim: no markets admitted to run")
	}
	if len(r.windows) == 0 {
		return fmt.Errorf("sim: no windows configured")
	}

	r.logger.Info("run starting",
		slog.String("run_id", runID),
		slog.Int("markets", len(records)),
		slog.Int("personas", len(r.personas)),
		slog.Int("windows", len(r.windows)),
		slog.Int("parallel", r.parallel),
	)

	// Blind phase. Markets may race each other; results land in slots
	// indexed by market position so the settlement phase below is
	// deterministic.
	roundsByMarket := make([][]domain.RoundRecord, len(records))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, record := range records {
		g.Go(func() error {
			collected, err := r.runMarket(gctx, runID, record)
			if err != nil {
				return err
			}
			mu.Lock()
			roundsByMarket[i] = collected
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sim: blind phase: %w", err)
	}

	// Settlement phase, strictly in resolution order.
	for i, record := range records {
		if err := r.engine.SettleMarket(record, roundsByMarket[i]); err != nil {
			return fmt.Errorf("sim: settle %s: %w", record.Ticker, err)
		}
	}

	r.logger.Info("run complete", slog.String("run_id", runID))
	return nil
}

// runMarket runs this market's windows in order, earliest first. A window
// that cannot be sliced degrades that window only: the market stays in the
// run with whatever windows produced snapshots.
func (r *Runner) runMarket(ctx context.Context, runID string, record *domain.MarketRecord) ([]domain.RoundRecord, error) {
	var collected []domain.RoundRecord
	for _, label := range r.windows {
		snap, err := r.slicer.Slice(record, label)
		switch {
		case errors.Is(err, domain.ErrNoPriceData), errors.Is(err, domain.ErrSuspiciousConvergence):
			r.logger.Warn("window dropped",
				slog.String("ticker", record.Ticker),
				slog.String("window", string(label)),
				slog.String("reason", err.Error()),
			)
			continue
		case err != nil:
			return nil, err
		}

		rec, err := r.rounds.Run(ctx, runID, snap, r.personas)
		if err != nil {
			return nil, err
		}
		collected = append(collected, rec)
	}
	return collected, nil
}

// SettleFromLog settles a run purely from previously logged rounds, with no
// decision-producer involved. Rounds are grouped per market and applied in
// resolution order; markets in the log but missing from the store fail
// loudly rather than being skipped.
func (r *Runner) SettleFromLog(rounds []domain.RoundRecord) error {
	byTicker := make(map[string][]domain.RoundRecord)
	for _, rec := range rounds {
		byTicker[rec.Ticker] = append(byTicker[rec.Ticker], rec)
	}

	for _, record := range r.markets.List() {
		marketRounds, ok := byTicker[record.Ticker]
		if !ok {
			continue
		}
		delete(byTicker, record.Ticker)
		if err := r.engine.SettleMarket(record, marketRounds); err != nil {
			return fmt.Errorf("sim: replay settle %s: %w", record.Ticker, err)
		}
	}

	if len(byTicker) > 0 {
		for ticker := range byTicker {
			return fmt.Errorf("sim: logged market %s not in market store: %w", ticker, domain.ErrNotFound)
		}
	}
	return nil
}
