package settle

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/dwhitley/personabench/internal/domain"
)

// decCtx carries enough precision that cent-level results are exact for any
// realistic stake.
var decCtx = apd.BaseContext.WithPrecision(25)

// payout computes the contract count and signed profit/loss for one committed
// bet, using the real contract economics:
//
//	contracts = stake / (p/100)
//	win:  profit = contracts x $1 - stake  (= stake x (100-p)/p)
//	lose: loss   = -stake, exactly
//
// priceCents is the price of the side actually bought. Prices of 0 or 100
// are rejected: division by zero or a guaranteed-outcome bet means the window
// should never have been offered.
func payout(stake float64, priceCents int, won bool) (contracts, pnl float64, err error) {
	if priceCents <= 0 || priceCents >= 100 {
		return 0, 0, fmt.Errorf("settle: price %d cents: %w", priceCents, domain.ErrDegeneratePrice)
	}
	if stake <= 0 {
		return 0, 0, fmt.Errorf("settle: stake %.2f: %w", stake, domain.ErrInvalidDecision)
	}

	stakeD := new(apd.Decimal)
	if _, err := stakeD.SetFloat64(stake); err != nil {
		return 0, 0, fmt.Errorf("settle: stake %v: %w", stake, err)
	}
	price := apd.New(int64(priceCents), -2) // p/100 dollars per contract

	contractsD := new(apd.Decimal)
	if _, err := decCtx.Quo(contractsD, stakeD, price); err != nil {
		return 0, 0, fmt.Errorf("settle: contracts: %w", err)
	}

	pnlD := new(apd.Decimal)
	if won {
		// contracts x $1 - stake
		if _, err := decCtx.Sub(pnlD, contractsD, stakeD); err != nil {
			return 0, 0, fmt.Errorf("settle: profit: %w", err)
		}
	} else {
		pnlD.Neg(stakeD)
	}

	// Round to whole cents.
	rounded := new(apd.Decimal)
	if _, err := decCtx.Quantize(rounded, pnlD, -2); err != nil {
		return 0, 0, fmt.Errorf("settle: quantize: %w", err)
	}

	contracts, err = contractsD.Float64()
	if err != nil {
		return 0, 0, fmt.Errorf("settle: contracts to float: %w", err)
	}
	pnl, err = rounded.Float64()
	if err != nil {
		return 0, 0, fmt.Errorf("settle: pnl to float: %w", err)
	}
	return contracts, pnl, nil
}
