package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoPriceData means no price sample fell within tolerance of a
	// window's target time. The window must fail; substituting a default
	// price would inject fabricated market information.
	ErrNoPriceData = errors.New("no price data within tolerance")

	// ErrSuspiciousConvergence means the matched price sits outside the
	// interesting band. A price pinned near 0 or 100 this close to
	// resolution risks leaking the outcome through price alone.
	ErrSuspiciousConvergence = errors.New("price converged outside interesting band")

	// ErrDegeneratePrice means a bet was placed at 0 or 100 cents. Division
	// by zero or a guaranteed-outcome bet is a data-quality failure, not a
	// valid trade.
	ErrDegeneratePrice = errors.New("degenerate price for settlement")

	// ErrStakeExceedsBalance means a persona tried to risk more than it had.
	ErrStakeExceedsBalance = errors.New("stake exceeds balance")

	// ErrAlreadySettled means settlement was attempted twice for the same
	// persona and market.
	ErrAlreadySettled = errors.New("market already settled for persona")

	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidDecision = errors.New("invalid decision")
)
