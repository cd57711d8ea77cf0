// Package notify delivers end-of-run summaries to chat channels. A benchmark
// run takes long enough that operators walk away from it; the reporter tells
// them when it finished and how the personas did, and stays silent when no
// channel is configured.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwhitley/personabench/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Reporter formats run events into messages and dispatches them to every
// configured sender. Delivery failures are logged, never fatal: a lost
// notification must not fail a finished run.
type Reporter struct {
	senders []Sender
	logger  *slog.Logger
}

// NewReporter creates a Reporter delivering to the given senders. A Reporter
// with no senders is valid and does nothing.
func NewReporter(senders []Sender, logger *slog.Logger) *Reporter {
	return &Reporter{
		senders: senders,
		logger:  logger.With(slog.String("component", "reporter")),
	}
}

// RunCompleted announces a finished benchmark run with a per-persona final
// balance summary.
func (r *Reporter) RunCompleted(ctx context.Context, runID string, metrics []domain.PersonaMetrics) {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s settled, %d personas\n", runID, len(metrics))
	for _, m := range metrics {
		fmt.Fprintf(&b, "%s: $%.2f (%d-%d, skip %d, fail %d)\n",
			m.Persona, m.FinalBalance, m.Wins, m.Losses, m.Skipped, m.Failed)
	}
	r.dispatch(ctx, "benchmark run complete", b.String())
}

// RunFailed announces a run that aborted before settlement finished.
func (r *Reporter) RunFailed(ctx context.Context, runID string, runErr error) {
	r.dispatch(ctx, "benchmark run failed",
		fmt.Sprintf("run %s aborted: %v", runID, runErr))
}

// ScreenCompleted announces a finished contamination screening batch.
func (r *Reporter) ScreenCompleted(ctx context.Context, total, excluded, flagged int) {
	r.dispatch(ctx, "contamination screen complete",
		fmt.Sprintf("%d markets probed: %d excluded, %d flagged", total, excluded, flagged))
}

func (r *Reporter) dispatch(ctx context.Context, title, message string) {
	for _, s := range r.senders {
		if err := s.Send(ctx, title, message); err != nil {
			r.logger.Error("notification failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}
