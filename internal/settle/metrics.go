package settle

import "github.com/dwhitley/personabench/internal/domain"

// Metrics derives per-persona calibration and profitability statistics from
// the settled portfolios, in canonical persona order.
//
// Brier score treats the price paid for the chosen side as the persona's
// implied probability: entering YES at 72 cents is an implicit 0.72 forecast,
// scored against whether that side actually won. Lower is better; a persona
// that only ever skips has no score and reports zero.
func (e *Engine) Metrics() []domain.PersonaMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.PersonaMetrics, 0, len(e.personas))
	for _, id := range e.personas {
		pf := e.portfolios[id]

		m := domain.PersonaMetrics{
			Persona:      id,
			FinalBalance: pf.Balance,
			TotalPnL:     pf.Balance - pf.StartingBalance,
			Entered:      pf.Entered,
			Skipped:      pf.Skipped,
			Failed:       pf.Failed,
		}

		var brierSum float64
		for _, t := range pf.Trades {
			if t.Won {
				m.Wins++
			} else {
				m.Losses++
			}
			implied := float64(t.PriceCents) / 100.0
			actual := 0.0
			if t.Won {
				actual = 1.0
			}
			diff := implied - actual
			brierSum += diff * diff
		}
		if m.Entered > 0 {
			m.WinRate = float64(m.Wins) / float64(m.Entered)
			m.BrierScore = brierSum / float64(len(pf.Trades))
		}
		out = append(out, m)
	}
	return out
}
