package settlement

import "errors"

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrSlippageExceeded      = errors.New("slippage bound exceeded")
	ErrVestingPeriodNotEnded = errors.New("vesting period not ended")
	ErrMarketCapNotReached   = errors.New("market cap not reached")
	ErrUnknownEntity         = errors.New("unknown entity")
	ErrAmountOutOfRange      = errors.New("amount out of range")
)
