package domain

import "context"

// MarketStore holds the validated market records admitted to a run. Records
// are read-only once stored; implementations must be safe for concurrent
// readers.
type MarketStore interface {
	Get(ticker string) (*MarketRecord, error)
	List() []*MarketRecord
	Count() int
}

// DecisionLog is the durable, append-only record of blind rounds. A whole
// round is appended atomically; settlement is replayable from the log alone,
// with no decision-producer involved.
type DecisionLog interface {
	AppendRound(ctx context.Context, rec RoundRecord) error
	Rounds(ctx context.Context, runID string) ([]RoundRecord, error)
	RunIDs(ctx context.Context) ([]string, error)
}

// VerdictStore persists contamination verdicts for offline curation.
type VerdictStore interface {
	Put(ctx context.Context, v ContaminationVerdict) error
	Get(ctx context.Context, ticker string) (ContaminationVerdict, error)
	List(ctx context.Context) ([]ContaminationVerdict, error)
}

// ResultStore persists finished-run aggregates to a shared database so runs
// can be compared across machines. Optional; the sqlite log remains the
// source of truth.
type ResultStore interface {
	CreateRun(ctx context.Context, runID string, personas []string) error
	InsertBalancePoints(ctx context.Context, runID string, points []BalancePoint) error
	InsertMetrics(ctx context.Context, runID string, metrics []PersonaMetrics) error
	InsertVerdicts(ctx context.Context, verdicts []ContaminationVerdict) error
}
