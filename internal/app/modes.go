package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/gate"
	"github.com/dwhitley/personabench/internal/ingest"
	"github.com/dwhitley/personabench/internal/persona"
	"github.com/dwhitley/personabench/internal/report"
	"github.com/dwhitley/personabench/internal/round"
	"github.com/dwhitley/personabench/internal/settle"
	"github.com/dwhitley/personabench/internal/sim"
	"github.com/dwhitley/personabench/internal/slicer"
)

// ScreenMode runs the contamination gate over every candidate market and
// persists the verdicts. A failed probe degrades that market only; the rest
// of the batch continues.
func (a *App) ScreenMode(ctx context.Context, deps *Dependencies) error {
	records, err := ingest.LoadFile(a.cfg.Run.MarketsPath, a.logger)
	if err != nil {
		return fmt.Errorf("screen: load markets: %w", err)
	}

	g := gate.New(deps.Completer, a.logger)
	var failed, excluded, flagged int
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := g.Check(ctx, record)
		if err != nil {
			failed++
			a.logger.Error("contamination probe failed",
				slog.String("ticker", record.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		switch v.Recommendation {
		case domain.RecommendExclude:
			excluded++
		case domain.RecommendFlag:
			flagged++
		}
		if err := deps.Verdicts.Put(ctx, v); err != nil {
			return fmt.Errorf("screen: store verdict %s: %w", record.Ticker, err)
		}
	}

	a.logger.Info("screen complete",
		slog.Int("markets", len(records)),
		slog.Int("probe_failures", failed),
		slog.Int("excluded", excluded),
		slog.Int("flagged", flagged),
	)
	deps.Reporter.ScreenCompleted(ctx, len(records), excluded, flagged)

	verdicts, err := deps.Verdicts.List(ctx)
	if err != nil {
		return fmt.Errorf("screen: list verdicts: %w", err)
	}
	if deps.Results != nil {
		if err := deps.Results.InsertVerdicts(ctx, verdicts); err != nil {
			return fmt.Errorf("screen: mirror verdicts: %w", err)
		}
	}
	exporter, err := report.NewExporter(a.cfg.Run.ExportDir, a.logger)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	return exporter.WriteVerdicts(verdicts)
}

// SimulateMode runs the full benchmark: admitted markets are sliced into
// windows, every window gets one blind round, and the logged rounds are
// settled in market-resolution order. Results are exported and optionally
// mirrored and archived.
func (a *App) SimulateMode(ctx context.Context, deps *Dependencies) error {
	records, err := a.admittedMarkets(ctx, deps)
	if err != nil {
		return err
	}

	personas, err := persona.LoadFile(a.cfg.Run.PersonasPath)
	if err != nil {
		return fmt.Errorf("simulate: load personas: %w", err)
	}
	windows, err := a.cfg.WindowLabels()
	if err != nil {
		return err
	}

	engine := settle.NewEngine(personaIDs(personas), a.cfg.Run.StartingBalance, a.logger)
	producer := persona.NewProducer(deps.Completer, a.logger)
	coordinator := round.New(producer, deps.DecisionLog, a.cfg.LLM.RequestTimeout.Duration, a.logger)

	sl, err := a.buildSlicer()
	if err != nil {
		return err
	}

	runner := sim.NewRunner(sim.Config{
		Markets:  ingest.NewMemoryStore(records),
		Slicer:   sl,
		Rounds:   coordinator,
		Engine:   engine,
		Personas: personas,
		Windows:  windows,
		Parallel: a.cfg.Run.ParallelMarkets,
	}, a.logger)

	runID := a.cfg.Run.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	a.logger.Info("simulation starting",
		slog.String("run_id", runID),
		slog.Int("markets", len(records)),
		slog.Int("personas", len(personas)),
	)

	if err := runner.Run(ctx, runID); err != nil {
		deps.Reporter.RunFailed(ctx, runID, err)
		return err
	}
	if err := a.publishResults(ctx, deps, runID, engine); err != nil {
		return err
	}
	deps.Reporter.RunCompleted(ctx, runID, engine.Metrics())
	return nil
}

// ReplayMode rebuilds settlement purely from a previously logged run. No
// decision producer is involved; the log carries everything settlement needs.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	runID, rounds, err := a.loadRun(ctx, deps)
	if err != nil {
		return err
	}

	records, err := ingest.LoadFile(a.cfg.Run.MarketsPath, a.logger)
	if err != nil {
		return fmt.Errorf("replay: load markets: %w", err)
	}

	engine := settle.NewEngine(loggedPersonas(rounds), a.cfg.Run.StartingBalance, a.logger)
	runner := sim.NewRunner(sim.Config{
		Markets: ingest.NewMemoryStore(records),
		Engine:  engine,
	}, a.logger)

	a.logger.Info("replay starting",
		slog.String("run_id", runID),
		slog.Int("rounds", len(rounds)),
	)
	if err := runner.SettleFromLog(rounds); err != nil {
		deps.Reporter.RunFailed(ctx, runID, err)
		return err
	}
	if err := a.publishResults(ctx, deps, runID, engine); err != nil {
		return err
	}
	deps.Reporter.RunCompleted(ctx, runID, engine.Metrics())
	return nil
}

// ExportMode regenerates report artifacts from stored state: contamination
// verdicts always, plus balance curves and metrics replayed from the log when
// it holds at least one run. Nothing is mirrored or archived.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	exporter, err := report.NewExporter(a.cfg.Run.ExportDir, a.logger)
	if err != nil {
		return err
	}

	verdicts, err := deps.Verdicts.List(ctx)
	if err != nil {
		return fmt.Errorf("export: list verdicts: %w", err)
	}
	if err := exporter.WriteVerdicts(verdicts); err != nil {
		return err
	}

	runID, rounds, err := a.loadRun(ctx, deps)
	if errors.Is(err, domain.ErrNotFound) {
		a.logger.Info("no logged runs; exported verdicts only")
		return nil
	}
	if err != nil {
		return err
	}

	records, err := ingest.LoadFile(a.cfg.Run.MarketsPath, a.logger)
	if err != nil {
		return fmt.Errorf("export: load markets: %w", err)
	}
	engine := settle.NewEngine(loggedPersonas(rounds), a.cfg.Run.StartingBalance, a.logger)
	runner := sim.NewRunner(sim.Config{
		Markets: ingest.NewMemoryStore(records),
		Engine:  engine,
	}, a.logger)
	if err := runner.SettleFromLog(rounds); err != nil {
		return err
	}

	if err := exporter.WriteBalanceCurves(engine.BalancePoints()); err != nil {
		return err
	}
	if err := exporter.WriteMetrics(engine.Metrics()); err != nil {
		return err
	}
	a.logger.Info("export complete", slog.String("run_id", runID))
	return nil
}

// admittedMarkets loads the market file and applies the stored contamination
// verdicts: excluded markets are dropped, flagged markets stay with a
// warning, markets without a verdict are admitted.
func (a *App) admittedMarkets(ctx context.Context, deps *Dependencies) ([]*domain.MarketRecord, error) {
	records, err := ingest.LoadFile(a.cfg.Run.MarketsPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}

	admitted := make([]*domain.MarketRecord, 0, len(records))
	for _, record := range records {
		v, err := deps.Verdicts.Get(ctx, record.Ticker)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			admitted = append(admitted, record)
			continue
		case err != nil:
			return nil, fmt.Errorf("verdict lookup %s: %w", record.Ticker, err)
		}

		switch v.Recommendation {
		case domain.RecommendExclude:
			a.logger.Warn("market excluded by contamination verdict",
				slog.String("ticker", record.Ticker),
				slog.String("confidence", string(v.Confidence)),
			)
		case domain.RecommendFlag:
			a.logger.Warn("market flagged by contamination verdict, keeping",
				slog.String("ticker", record.Ticker),
			)
			admitted = append(admitted, record)
		default:
			admitted = append(admitted, record)
		}
	}
	if len(admitted) == 0 {
		return nil, fmt.Errorf("no admitted markets after contamination screening")
	}
	return admitted, nil
}

// loadRun resolves which logged run to use (configured replay_run_id, or the
// most recent) and reads its rounds. Returns domain.ErrNotFound when the log
// holds no runs.
func (a *App) loadRun(ctx context.Context, deps *Dependencies) (string, []domain.RoundRecord, error) {
	runID := a.cfg.Run.ReplayRunID
	if runID == "" {
		ids, err := deps.DecisionLog.RunIDs(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("list runs: %w", err)
		}
		if len(ids) == 0 {
			return "", nil, fmt.Errorf("decision log holds no runs: %w", domain.ErrNotFound)
		}
		runID = ids[len(ids)-1]
	}

	rounds, err := deps.DecisionLog.Rounds(ctx, runID)
	if err != nil {
		return "", nil, fmt.Errorf("read rounds for run %s: %w", runID, err)
	}
	if len(rounds) == 0 {
		return "", nil, fmt.Errorf("run %s has no logged rounds: %w", runID, domain.ErrNotFound)
	}
	return runID, rounds, nil
}

// publishResults writes the local export files and, when wired, mirrors the
// aggregates to postgres and archives the artifacts to object storage.
func (a *App) publishResults(ctx context.Context, deps *Dependencies, runID string, engine *settle.Engine) error {
	exporter, err := report.NewExporter(a.cfg.Run.ExportDir, a.logger)
	if err != nil {
		return err
	}
	points := engine.BalancePoints()
	metrics := engine.Metrics()

	if err := exporter.WriteBalanceCurves(points); err != nil {
		return err
	}
	if err := exporter.WriteMetrics(metrics); err != nil {
		return err
	}

	if deps.Results != nil {
		ids := make([]string, 0, len(metrics))
		for _, m := range metrics {
			ids = append(ids, m.Persona)
		}
		if err := deps.Results.CreateRun(ctx, runID, ids); err != nil {
			return fmt.Errorf("mirror run: %w", err)
		}
		if err := deps.Results.InsertBalancePoints(ctx, runID, points); err != nil {
			return fmt.Errorf("mirror balance points: %w", err)
		}
		if err := deps.Results.InsertMetrics(ctx, runID, metrics); err != nil {
			return fmt.Errorf("mirror metrics: %w", err)
		}
	}

	if deps.Archiver != nil {
		paths := append(exporter.Paths(), a.cfg.Log.Path)
		n, err := deps.Archiver.ArchiveRun(ctx, runID, paths)
		if err != nil {
			a.logger.Error("artifact archival failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		} else {
			a.logger.Info("artifacts archived",
				slog.String("run_id", runID),
				slog.Int("objects", n),
			)
		}
	}

	a.logger.Info("results published",
		slog.String("run_id", runID),
		slog.Int("balance_points", len(points)),
		slog.Time("finished_at", time.Now().UTC()),
	)
	return nil
}

// personaIDs extracts the canonical persona identifier list.
func personaIDs(personas []persona.Persona) []string {
	ids := make([]string, len(personas))
	for i, p := range personas {
		ids[i] = p.ID
	}
	return ids
}

// loggedPersonas derives the persona set of a logged run from its rounds, in
// canonical order.
func loggedPersonas(rounds []domain.RoundRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range rounds {
		for _, d := range rec.Decisions {
			if !seen[d.Persona] {
				seen[d.Persona] = true
				ids = append(ids, d.Persona)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// buildSlicer constructs the window slicer with configured tolerances merged
// over the defaults.
func (a *App) buildSlicer() (*slicer.Slicer, error) {
	overrides, err := a.cfg.Tolerances()
	if err != nil {
		return nil, err
	}
	return slicer.New(
		slicer.WithTolerances(slicer.Tolerances(overrides)),
		slicer.WithInterestingBand(a.cfg.Slicer.BandLow, a.cfg.Slicer.BandHigh),
	), nil
}
