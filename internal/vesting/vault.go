package vesting

import "fmt"

// Vault is a simple time lock for previously-escrowed balances: one owner, one
// locked amount, one unlock time.
type Vault struct {
	Owner        string `json:"owner"`
	EscrowVault  string `json:"escrow_vault"`
	LockedAmount uint64 `json:"locked_amount"`
	LockedUntil  int64  `json:"locked_until"`
}

// Lock records amount as locked until now+duration. Duration must fall within
// the vesting period bounds. Only a live lock blocks relocking: an expired but
// unclaimed lock is replaced outright, so the owner must Unlock first to
// recover the previously escrowed balance.
func (v *Vault) Lock(amount uint64, duration, now int64) error {
	if amount < MinimumAmount {
		return fmt.Errorf("%w: amount below minimum", ErrInvalidAmount)
	}
	if duration < MinVestingPeriod || duration > MaxVestingPeriod {
		return fmt.Errorf("%w: lock duration out of bounds", ErrInvalidTimeParameters)
	}
	if v.LockedAmount > 0 && now < v.LockedUntil {
		return fmt.Errorf("%w: vault already holds a live lock", ErrTokensStillLocked)
	}

	unlockTime := now + duration
	if unlockTime < now {
		return fmt.Errorf("%w: unlock time overflow", ErrCalculation)
	}

	v.LockedAmount = amount
	v.LockedUntil = unlockTime
	return nil
}

// Unlockable previews the amount an unlock at now would release.
func (v *Vault) Unlockable(now int64) (uint64, error) {
	if now < v.LockedUntil {
		return 0, ErrTokensStillLocked
	}
	if v.LockedAmount == 0 {
		return 0, ErrNothingLocked
	}
	return v.LockedAmount, nil
}

// Unlock releases the locked balance once the lock has expired and returns the
// amount released.
func (v *Vault) Unlock(now int64) (uint64, error) {
	amount, err := v.Unlockable(now)
	if err != nil {
		return 0, err
	}
	v.LockedAmount = 0
	return amount, nil
}
