// Package report writes run artifacts for external consumers: per-persona
// balance curves in market-resolution order for plotting, aggregate metrics,
// and contamination verdicts for the curation step.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dwhitley/personabench/internal/domain"
)

// Exporter writes artifacts into a target directory.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// NewExporter creates an Exporter writing into dir, creating it if needed.
func NewExporter(dir string, logger *slog.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create export dir %s: %w", dir, err)
	}
	return &Exporter{
		dir:    dir,
		logger: logger.With(slog.String("component", "report")),
	}, nil
}

// WriteBalanceCurves writes the balance points as both CSV (for plotting
// tools) and JSON. Points are written in the order given, which the
// settlement engine guarantees is market-resolution order.
func (e *Exporter) WriteBalanceCurves(points []domain.BalancePoint) error {
	csvPath := filepath.Join(e.dir, "balance_curves.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", csvPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"persona", "seq", "ticker", "balance", "profit_loss", "resolved_at"}); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, p := range points {
		row := []string{
			p.Persona,
			strconv.Itoa(p.Seq),
			p.Ticker,
			strconv.FormatFloat(p.Balance, 'f', 2, 64),
			strconv.FormatFloat(p.ProfitLoss, 'f', 2, 64),
			p.ResolvedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}

	if err := e.writeJSON("balance_curves.json", points); err != nil {
		return err
	}

	e.logger.Info("balance curves exported",
		slog.String("dir", e.dir),
		slog.Int("points", len(points)),
	)
	return nil
}

// WriteMetrics writes the per-persona metrics summary.
func (e *Exporter) WriteMetrics(metrics []domain.PersonaMetrics) error {
	return e.writeJSON("metrics.json", metrics)
}

// WriteVerdicts writes the contamination verdicts for curation.
func (e *Exporter) WriteVerdicts(verdicts []domain.ContaminationVerdict) error {
	return e.writeJSON("verdicts.json", verdicts)
}

// Paths returns the absolute paths of the artifacts this exporter produces,
// for archival. Only files that exist are returned.
func (e *Exporter) Paths() []string {
	names := []string{"balance_curves.csv", "balance_curves.json", "metrics.json", "verdicts.json"}
	var out []string
	for _, n := range names {
		p := filepath.Join(e.dir, n)
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func (e *Exporter) writeJSON(name string, v any) error {
	path := filepath.Join(e.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
