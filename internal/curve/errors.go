package curve

import "errors"

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurveParameters = errors.New("invalid curve parameters")
	ErrCalculation            = errors.New("calculation error")
)
