package persona

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

// Completer is the narrow LLM capability the producer consumes: one
// system+user prompt in, one completion out, no shared state between calls.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Producer turns snapshots into decisions by prompting the model as a given
// persona. It is stateless; every call is independent.
type Producer struct {
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// NewProducer creates a Producer on top of the given completion capability.
func NewProducer(completer Completer, logger *slog.Logger) *Producer {
	return &Producer{
		completer: completer,
		logger:    logger.With(slog.String("component", "producer")),
		now:       time.Now,
	}
}

// Propose asks one persona for its decision on one snapshot. Errors are
// returned to the caller, which records them as FAILED decisions; Propose
// itself never fabricates a placeholder.
func (pr *Producer) Propose(ctx context.Context, p Persona, snap domain.MarketSnapshot) (domain.Decision, error) {
	raw, err := pr.completer.Complete(ctx, systemPrompt(p), userPrompt(snap))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("persona %s: %w", p.ID, err)
	}

	action, stake, rationale, err := parseReply(raw)
	if err != nil {
		pr.logger.Warn("unparseable persona reply",
			slog.String("persona", p.ID),
			slog.String("ticker", snap.Ticker),
			slog.String("window", string(snap.Window)),
		)
		return domain.Decision{}, err
	}

	if p.MaxStake > 0 && stake > p.MaxStake {
		// The persona exceeded its own brief; clamp rather than fail, the
		// balance invariant is enforced again at settlement.
		stake = p.MaxStake
	}

	return domain.Decision{
		Persona:   p.ID,
		Ticker:    snap.Ticker,
		Window:    snap.Window,
		Action:    action,
		Stake:     stake,
		Rationale: rationale,
		Status:    domain.DecisionOK,
		DecidedAt: pr.now().UTC(),
	}, nil
}
