package domain

import "time"

// SettledTrade is one realized position: a committed decision joined with the
// market's eventual outcome.
type SettledTrade struct {
	Ticker     string
	Window     WindowLabel
	Action     Action
	Stake      float64
	PriceCents int     // price of the side bought, at the window used
	Contracts  float64 // stake / (price/100)
	ProfitLoss float64 // signed; -Stake on a loss, never more
	Won        bool
	Outcome    Outcome
	SettledAt  time.Time
}

// PortfolioState is a persona's running book. It is created by the settlement
// engine and mutated only there, exactly once per market.
type PortfolioState struct {
	Persona         string
	StartingBalance float64
	Balance         float64
	Trades          []SettledTrade // in settlement order
	Entered         int
	Skipped         int
	Failed          int
}

// BalancePoint is one point on a persona's balance curve: the balance after a
// given market settled, in market-resolution order.
type BalancePoint struct {
	Persona    string
	Ticker     string
	Seq        int // 0-based position in resolution order
	Balance    float64
	ProfitLoss float64
	ResolvedAt time.Time
}

// PersonaMetrics aggregates calibration and profitability statistics for one
// persona over a finished run.
type PersonaMetrics struct {
	Persona      string
	FinalBalance float64
	TotalPnL     float64
	Entered      int
	Skipped      int
	Failed       int
	Wins         int
	Losses       int
	WinRate      float64 // wins / entered, 0 when no entries
	BrierScore   float64 // mean squared error of implied probability vs outcome
}
