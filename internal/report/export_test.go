package report

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestWriteBalanceCurves(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	points := []domain.BalancePoint{
		{Persona: "a", Ticker: "M1", Seq: 0, Balance: 107.78, ProfitLoss: 7.78,
			ResolvedAt: time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)},
		{Persona: "b", Ticker: "M1", Seq: 0, Balance: 80, ProfitLoss: -20,
			ResolvedAt: time.Date(2024, 12, 18, 12, 0, 0, 0, time.UTC)},
	}
	if err := e.WriteBalanceCurves(points); err != nil {
		t.Fatalf("write curves: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "balance_curves.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "a" || rows[1][3] != "107.78" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}

	raw, err := os.ReadFile(filepath.Join(dir, "balance_curves.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []domain.BalancePoint
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Balance != 80 {
		t.Fatalf("json artifact wrong: %+v", decoded)
	}
}

func TestPathsReturnsOnlyExistingArtifacts(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if got := e.Paths(); len(got) != 0 {
		t.Fatalf("no artifacts written yet, got %v", got)
	}

	if err := e.WriteMetrics([]domain.PersonaMetrics{{Persona: "a", FinalBalance: 100}}); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if err := e.WriteVerdicts(nil); err != nil {
		t.Fatalf("write verdicts: %v", err)
	}

	got := e.Paths()
	if len(got) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", got)
	}
}
