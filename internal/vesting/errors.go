package vesting

import "errors"

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidTimeParameters = errors.New("invalid time parameters")
	ErrInvalidMilestone      = errors.New("invalid milestone")
	ErrCalculation           = errors.New("calculation error")
	ErrTokensStillLocked     = errors.New("tokens still locked")
	ErrTokensAlreadyUnlocked = errors.New("tokens already unlocked")
	ErrNothingLocked         = errors.New("nothing locked")
)
