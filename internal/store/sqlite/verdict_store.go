package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dwhitley/personabench/internal/domain"
)

// VerdictStore implements domain.VerdictStore. One row per candidate market;
// re-probing a market replaces its verdict.
type VerdictStore struct {
	db *sql.DB
}

// NewVerdictStore creates a VerdictStore backed by the given store.
func NewVerdictStore(s *Store) *VerdictStore {
	return &VerdictStore{db: s.db}
}

// Put inserts or replaces the verdict for a market.
func (vs *VerdictStore) Put(ctx context.Context, v domain.ContaminationVerdict) error {
	_, err := vs.db.ExecContext(ctx, `
		INSERT INTO verdicts (ticker, knows_outcome, confidence, guessed_outcome, rationale, recommendation, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			knows_outcome  = excluded.knows_outcome,
			confidence     = excluded.confidence,
			guessed_outcome = excluded.guessed_outcome,
			rationale      = excluded.rationale,
			recommendation = excluded.recommendation,
			checked_at     = excluded.checked_at`,
		v.Ticker, v.KnowsOutcome, string(v.Confidence), v.GuessedOutcome,
		v.Rationale, string(v.Recommendation), v.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put verdict %s: %w", v.Ticker, err)
	}
	return nil
}

// Get returns the verdict for ticker or domain.ErrNotFound.
func (vs *VerdictStore) Get(ctx context.Context, ticker string) (domain.ContaminationVerdict, error) {
	row := vs.db.QueryRowContext(ctx, `
		SELECT ticker, knows_outcome, confidence, guessed_outcome, rationale, recommendation, checked_at
		FROM verdicts WHERE ticker = ?`, ticker)

	v, err := scanVerdict(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContaminationVerdict{}, fmt.Errorf("verdict %s: %w", ticker, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ContaminationVerdict{}, fmt.Errorf("sqlite: get verdict %s: %w", ticker, err)
	}
	return v, nil
}

// List returns all verdicts ordered by ticker.
func (vs *VerdictStore) List(ctx context.Context) ([]domain.ContaminationVerdict, error) {
	rows, err := vs.db.QueryContext(ctx, `
		SELECT ticker, knows_outcome, confidence, guessed_outcome, rationale, recommendation, checked_at
		FROM verdicts ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []domain.ContaminationVerdict
	for rows.Next() {
		v, err := scanVerdict(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan verdict: %w", err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

func scanVerdict(scan func(dest ...any) error) (domain.ContaminationVerdict, error) {
	var v domain.ContaminationVerdict
	var conf, rec string
	if err := scan(&v.Ticker, &v.KnowsOutcome, &conf, &v.GuessedOutcome,
		&v.Rationale, &rec, &v.CheckedAt); err != nil {
		return domain.ContaminationVerdict{}, err
	}
	v.Confidence = domain.Confidence(conf)
	v.Recommendation = domain.Recommendation(rec)
	return v, nil
}
