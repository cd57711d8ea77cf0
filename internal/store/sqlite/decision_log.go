package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dwhitley/personabench/internal/domain"
)

// DecisionLog implements domain.DecisionLog. Whole rounds are appended in a
// single transaction so a crash can never leave a partial round behind, and
// concurrent markets can never interleave their batches.
type DecisionLog struct {
	db *sql.DB
}

// NewDecisionLog creates a DecisionLog backed by the given store.
func NewDecisionLog(s *Store) *DecisionLog {
	return &DecisionLog{db: s.db}
}

// AppendRound atomically appends one round and all its decisions.
func (l *DecisionLog) AppendRound(ctx context.Context, rec domain.RoundRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin round append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rounds (round_id, run_id, ticker, window, yes_cents, sampled_at, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RoundID, rec.RunID, rec.Ticker, string(rec.Window),
		rec.YesCents, rec.SampledAt, rec.LoggedAt,
	); err != nil {
		return fmt.Errorf("sqlite: insert round %s: %w", rec.RoundID, err)
	}

	for i, d := range rec.Decisions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO decisions (round_id, ord, persona, action, stake, rationale, status, fail_reason, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RoundID, i, d.Persona, string(d.Action), d.Stake,
			d.Rationale, string(d.Status), d.FailReason, d.DecidedAt,
		); err != nil {
			return fmt.Errorf("sqlite: insert decision %s/%s: %w", rec.RoundID, d.Persona, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit round %s: %w", rec.RoundID, err)
	}
	return nil
}

// Rounds returns every round of a run in append order, decisions in their
// canonical round order.
func (l *DecisionLog) Rounds(ctx context.Context, runID string) ([]domain.RoundRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT round_id, run_id, ticker, window, yes_cents, sampled_at, logged_at
		FROM rounds WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list rounds for %s: %w", runID, err)
	}
	defer rows.Close()

	var records []domain.RoundRecord
	for rows.Next() {
		var rec domain.RoundRecord
		var window string
		if err := rows.Scan(&rec.RoundID, &rec.RunID, &rec.Ticker, &window,
			&rec.YesCents, &rec.SampledAt, &rec.LoggedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan round: %w", err)
		}
		rec.Window = domain.WindowLabel(window)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate rounds: %w", err)
	}

	for i := range records {
		decisions, err := l.roundDecisions(ctx, records[i].RoundID, records[i].Ticker, records[i].Window)
		if err != nil {
			return nil, err
		}
		records[i].Decisions = decisions
	}
	return records, nil
}

func (l *DecisionLog) roundDecisions(ctx context.Context, roundID, ticker string, window domain.WindowLabel) ([]domain.Decision, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT persona, action, stake, rationale, status, fail_reason, decided_at
		FROM decisions WHERE round_id = ? ORDER BY ord`, roundID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list decisions for %s: %w", roundID, err)
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var action, status string
		if err := rows.Scan(&d.Persona, &action, &d.Stake, &d.Rationale,
			&status, &d.FailReason, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan decision: %w", err)
		}
		d.Action = domain.Action(action)
		d.Status = domain.DecisionStatus(status)
		d.Ticker = ticker
		d.Window = window
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// RunIDs returns the distinct run IDs present in the log, oldest first.
func (l *DecisionLog) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id FROM rounds GROUP BY run_id ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list run ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
