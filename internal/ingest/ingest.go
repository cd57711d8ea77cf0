// Package ingest loads the pre-fetched raw market source, validates it, and
// builds the immutable MarketRecords a run operates on. The core makes no
// live network calls; everything arrives through files parsed here.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dwhitley/personabench/internal/domain"
)

// rawPrice is one sample in the source file.
type rawPrice struct {
	Timestamp time.Time `json:"ts" validate:"required"`
	YesCents  int       `json:"yes_cents" validate:"min=0,max=100"`
}

// rawMarket mirrors the source file schema for one resolved market.
type rawMarket struct {
	Ticker      string     `json:"ticker" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Question    string     `json:"question" validate:"required"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	OpenedAt    time.Time  `json:"opened_at" validate:"required"`
	ClosedAt    time.Time  `json:"closed_at" validate:"required"`
	Outcome     string     `json:"outcome" validate:"required,oneof=YES_WON NO_WON"`
	Prices      []rawPrice `json:"prices" validate:"required,min=1,dive"`
}

type rawFile struct {
	Markets []rawMarket `json:"markets" validate:"required,min=1,dive"`
}

// LoadFile reads and validates a raw market source file and returns the
// records it defines. Records are immutable from here on.
func LoadFile(path string, logger *slog.Logger) ([]*domain.MarketRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	var f rawFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}

	validate := validator.New()
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("ingest: validate %s: %w", path, err)
	}

	records := make([]*domain.MarketRecord, 0, len(f.Markets))
	seen := make(map[string]bool, len(f.Markets))
	for _, m := range f.Markets {
		if seen[m.Ticker] {
			return nil, fmt.Errorf("ingest: duplicate ticker %q in %s", m.Ticker, path)
		}
		seen[m.Ticker] = true

		rec, err := buildRecord(m)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s: %w", m.Ticker, err)
		}
		records = append(records, rec)
	}

	logger.Info("market source loaded",
		slog.String("path", path),
		slog.Int("markets", len(records)),
	)
	return records, nil
}

func buildRecord(m rawMarket) (*domain.MarketRecord, error) {
	if !m.ClosedAt.After(m.OpenedAt) {
		return nil, fmt.Errorf("closed_at %s not after opened_at %s", m.ClosedAt, m.OpenedAt)
	}

	prices := make([]domain.PricePoint, 0, len(m.Prices))
	for _, p := range m.Prices {
		prices = append(prices, domain.PricePoint{
			Timestamp:  p.Timestamp.UTC(),
			PriceCents: p.YesCents,
		})
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})
	for _, p := range prices {
		if p.Timestamp.After(m.ClosedAt) {
			return nil, fmt.Errorf("price sample at %s is after close %s", p.Timestamp, m.ClosedAt)
		}
	}

	return &domain.MarketRecord{
		Ticker:      m.Ticker,
		Title:       m.Title,
		Question:    m.Question,
		Description: m.Description,
		Category:    m.Category,
		OpenedAt:    m.OpenedAt.UTC(),
		ClosedAt:    m.ClosedAt.UTC(),
		Prices:      prices,
		Outcome:     domain.Outcome(m.Outcome),
	}, nil
}
