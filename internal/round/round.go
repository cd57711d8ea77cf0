// Package round runs blind decision rounds: one market snapshot, N personas,
// N concurrent mutually-invisible decision requests, one atomic batch out.
package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/persona"
)

// Producer is the decision capability consumed by the coordinator.
type Producer interface {
	Propose(ctx context.Context, p persona.Persona, snap domain.MarketSnapshot) (domain.Decision, error)
}

// Coordinator issues one decision request per persona concurrently and
// collects the results behind a barrier. No result is released downstream
// until every request has either returned a decision or exhausted its own
// failure handling, and the whole round is durably logged first.
type Coordinator struct {
	producer Producer
	log      domain.DecisionLog
	timeout  time.Duration // per persona request
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Coordinator. timeout bounds each individual persona request;
// a timed-out persona becomes a FAILED decision without delaying the others.
func New(producer Producer, log domain.DecisionLog, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Coordinator{
		producer: producer,
		log:      log,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "round")),
		now:      time.Now,
	}
}

// Run executes one blind round for the given snapshot and personas.
//
// All requests are dispatched concurrently; each worker writes its single
// result into a pre-allocated slot indexed by persona position, so the
// collected order is the canonical persona order regardless of which request
// returned first. Workers share no mutable state with each other. The
// completed round (successes and FAILED placeholders alike) is appended to
// the decision log as one atomic unit before Run returns.
func (c *Coordinator) Run(ctx context.Context, runID string, snap domain.MarketSnapshot, personas []persona.Persona) (domain.RoundRecord, error) {
	if len(personas) == 0 {
		return domain.RoundRecord{}, fmt.Errorf("round: no personas")
	}
	if err := snap.Validate(); err != nil {
		return domain.RoundRecord{}, fmt.Errorf("round: %w", err)
	}

	decisions := make([]domain.Decision, len(personas))

	g := new(errgroup.Group)
	for i, p := range personas {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			d, err := c.producer.Propose(pctx, p, snap)
			if err != nil {
				decisions[i] = domain.FailedDecision(p.ID, snap.Ticker, snap.Window, failReason(err), c.now().UTC())
				c.logger.Warn("persona request failed",
					slog.String("persona", p.ID),
					slog.String("ticker", snap.Ticker),
					slog.String("window", string(snap.Window)),
					slog.String("reason", failReason(err)),
				)
				return nil
			}
			decisions[i] = normalize(d, p, snap, c.now().UTC())
			return nil
		})
	}
	// Barrier: nothing is observable downstream until every slot is filled.
	_ = g.Wait()

	rec := domain.RoundRecord{
		RoundID:   uuid.NewString(),
		RunID:     runID,
		Ticker:    snap.Ticker,
		Window:    snap.Window,
		YesCents:  snap.YesCents,
		SampledAt: snap.SampledAt,
		Decisions: decisions,
		LoggedAt:  c.now().UTC(),
	}

	// The append must survive round-level cancellation: a cancelled request
	// becomes a FAILED decision in the record, and the decisions that did
	// return still have to reach the durable log.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.log.AppendRound(logCtx, rec); err != nil {
		return domain.RoundRecord{}, fmt.Errorf("round: append %s/%s: %w", snap.Ticker, snap.Window, err)
	}

	c.logger.Info("round complete",
		slog.String("round_id", rec.RoundID),
		slog.String("ticker", snap.Ticker),
		slog.String("window", string(snap.Window)),
		slog.Int("personas", len(personas)),
		slog.Int("failed", countFailed(decisions)),
	)
	return rec, nil
}

// normalize rejects decisions the producer should not have emitted. The
// producer is untrusted: a malformed stake or mismatched identity becomes a
// FAILED placeholder rather than corrupting the log.
func normalize(d domain.Decision, p persona.Persona, snap domain.MarketSnapshot, at time.Time) domain.Decision {
	switch {
	case d.Persona != p.ID:
		return domain.FailedDecision(p.ID, snap.Ticker, snap.Window, "producer returned wrong persona id", at)
	case d.Ticker != snap.Ticker || d.Window != snap.Window:
		return domain.FailedDecision(p.ID, snap.Ticker, snap.Window, "producer returned wrong market or window", at)
	case !d.Action.Valid():
		return domain.FailedDecision(p.ID, snap.Ticker, snap.Window, fmt.Sprintf("invalid action %q", d.Action), at)
	case math.IsNaN(d.Stake) || math.IsInf(d.Stake, 0) || d.Stake < 0:
		return domain.FailedDecision(p.ID, snap.Ticker, snap.Window, fmt.Sprintf("invalid stake %v", d.Stake), at)
	case d.Action != domain.ActionSkip && d.Stake == 0:
		return domain.FailedDecision(p.ID, snap.Ticker, snap.Window, "zero stake on buy", at)
	}
	if d.Action == domain.ActionSkip {
		d.Stake = 0
	}
	return d
}

func failReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

func countFailed(decisions []domain.Decision) int {
	n := 0
	for _, d := range decisions {
		if d.IsFailed() {
			n++
		}
	}
	return n
}
