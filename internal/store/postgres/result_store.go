package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwhitley/personabench/internal/domain"
)

// ResultStore implements domain.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a ResultStore backed by the given connection pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// CreateRun registers a run and its persona set. Re-registering the same run
// is a no-op so replays can mirror into the same row.
func (s *ResultStore) CreateRun(ctx context.Context, runID string, personas []string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, personas) VALUES ($1, $2)
		ON CONFLICT (run_id) DO NOTHING`,
		runID, personas,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", runID, err)
	}
	return nil
}

// InsertBalancePoints inserts balance-curve points using a pgx batch.
// Duplicate (run, persona, seq) rows are skipped so replays are idempotent.
func (s *ResultStore) InsertBalancePoints(ctx context.Context, runID string, points []domain.BalancePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO balance_points (run_id, persona, seq, ticker, balance, profit_loss, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, persona, seq) DO NOTHING`
	for _, p := range points {
		batch.Queue(query, runID, p.Persona, p.Seq, p.Ticker, p.Balance, p.ProfitLoss, p.ResolvedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert balance point %d: %w", i, err)
		}
	}
	return nil
}

// InsertMetrics upserts per-persona metrics for a run.
func (s *ResultStore) InsertMetrics(ctx context.Context, runID string, metrics []domain.PersonaMetrics) error {
	batch := &pgx.Batch{}
	const query = `
		INSERT INTO persona_metrics (run_id, persona, final_balance, total_pnl,
			entered, skipped, failed, wins, losses, win_rate, brier_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, persona) DO UPDATE SET
			final_balance = excluded.final_balance,
			total_pnl     = excluded.total_pnl,
			entered       = excluded.entered,
			skipped       = excluded.skipped,
			failed        = excluded.failed,
			wins          = excluded.wins,
			losses        = excluded.losses,
			win_rate      = excluded.win_rate,
			brier_score   = excluded.brier_score`
	for _, m := range metrics {
		batch.Queue(query, runID, m.Persona, m.FinalBalance, m.TotalPnL,
			m.Entered, m.Skipped, m.Failed, m.Wins, m.Losses, m.WinRate, m.BrierScore)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range metrics {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert metrics %d: %w", i, err)
		}
	}
	return nil
}

// InsertVerdicts upserts contamination verdicts.
func (s *ResultStore) InsertVerdicts(ctx context.Context, verdicts []domain.ContaminationVerdict) error {
	batch := &pgx.Batch{}
	const query = `
		INSERT INTO contamination_verdicts (ticker, knows_outcome, confidence,
			guessed_outcome, rationale, recommendation, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker) DO UPDATE SET
			knows_outcome   = excluded.knows_outcome,
			confidence      = excluded.confidence,
			guessed_outcome = excluded.guessed_outcome,
			rationale       = excluded.rationale,
			recommendation  = excluded.recommendation,
			checked_at      = excluded.checked_at`
	for _, v := range verdicts {
		batch.Queue(query, v.Ticker, v.KnowsOutcome, string(v.Confidence),
			v.GuessedOutcome, v.Rationale, string(v.Recommendation), v.CheckedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range verdicts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert verdict %d: %w", i, err)
		}
	}
	return nil
}
