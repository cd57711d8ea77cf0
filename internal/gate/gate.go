// Package gate estimates whether a decision-making agent already knows a
// market's outcome, before the market is admitted to the benchmark set. The
// probe is run once per candidate market, offline; its verdicts feed a
// human-curated selection step and are never recomputed during a simulation.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

// Completer is the narrow LLM capability the gate consumes.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Gate probes an agent for prior knowledge of market outcomes.
type Gate struct {
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Gate.
func New(completer Completer, logger *slog.Logger) *Gate {
	return &Gate{
		completer: completer,
		logger:    logger.With(slog.String("component", "gate")),
		now:       time.Now,
	}
}

const probeSystem = `You are being asked whether you already know how a prediction market resolved.
Answer honestly about your own knowledge. Reply with a single JSON object and nothing else:
{"knows_outcome": true|false, "confidence": "none"|"low"|"medium"|"high", "guessed_outcome": "<YES or NO or empty>", "rationale": "<1-3 sentences>"}`

// probeUser renders the probe. Only title, question, category, and close date
// are shown; price data is deliberately withheld so the probe itself cannot
// leak price-based hints.
func probeUser(record *domain.MarketRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market title: %s\n", record.Title)
	fmt.Fprintf(&sb, "Question: %s\n", record.Question)
	if record.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", record.Category)
	}
	fmt.Fprintf(&sb, "Close date: %s\n", record.ClosedAt.UTC().Format("2006-01-02"))
	sb.WriteString("\nDo you already know, from your training data, how this market resolved?")
	return sb.String()
}

type probeReply struct {
	KnowsOutcome   bool   `json:"knows_outcome"`
	Confidence     string `json:"confidence"`
	GuessedOutcome string `json:"guessed_outcome"`
	Rationale      string `json:"rationale"`
}

// Check probes one candidate market and returns its verdict, including the
// decision rule's recommendation. The admit/exclude decision for the final
// benchmark set is recorded as curated data elsewhere; Check only advises.
func (g *Gate) Check(ctx context.Context, record *domain.MarketRecord) (domain.ContaminationVerdict, error) {
	raw, err := g.completer.Complete(ctx, probeSystem, probeUser(record))
	if err != nil {
		return domain.ContaminationVerdict{}, fmt.Errorf("gate: probe %s: %w", record.Ticker, err)
	}

	body := extractJSON(raw)
	if body == "" {
		return domain.ContaminationVerdict{}, fmt.Errorf("gate: %s: no JSON object in probe reply", record.Ticker)
	}
	var r probeReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return domain.ContaminationVerdict{}, fmt.Errorf("gate: %s: unmarshal probe reply: %w", record.Ticker, err)
	}

	conf := domain.Confidence(strings.ToLower(strings.TrimSpace(r.Confidence)))
	if !conf.Valid() {
		conf = domain.ConfidenceNone
	}

	v := domain.ContaminationVerdict{
		Ticker:         record.Ticker,
		KnowsOutcome:   r.KnowsOutcome,
		Confidence:     conf,
		GuessedOutcome: strings.TrimSpace(r.GuessedOutcome),
		Rationale:      strings.TrimSpace(r.Rationale),
		Recommendation: Recommend(r.KnowsOutcome, conf),
		CheckedAt:      g.now().UTC(),
	}

	g.logger.Info("contamination verdict",
		slog.String("ticker", v.Ticker),
		slog.Bool("knows_outcome", v.KnowsOutcome),
		slog.String("confidence", string(v.Confidence)),
		slog.String("recommendation", string(v.Recommendation)),
	)
	return v, nil
}

// Recommend applies the decision rule: claimed knowledge at high confidence
// excludes the market, at medium confidence flags it for manual review, and
// anything else admits it.
func Recommend(knows bool, conf domain.Confidence) domain.Recommendation {
	switch {
	case knows && conf == domain.ConfidenceHigh:
		return domain.RecommendExclude
	case knows && conf == domain.ConfidenceMedium:
		return domain.RecommendFlag
	default:
		return domain.RecommendAdmit
	}
}

// extractJSON returns the first balanced top-level JSON object in s, or "".
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
