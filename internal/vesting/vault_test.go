package vesting

import (
	"errors"
	"testing"
)

func TestVaultLockBounds(t *testing.T) {
	v := &Vault{}

	if err := v.Lock(0, MinVestingPeriod, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := v.Lock(100, MinVestingPeriod-1, 0); !errors.Is(err, ErrInvalidTimeParameters) {
		t.Fatalf("expected ErrInvalidTimeParameters for short lock, got %v", err)
	}
	if err := v.Lock(100, MaxVestingPeriod+1, 0); !errors.Is(err, ErrInvalidTimeParameters) {
		t.Fatalf("expected ErrInvalidTimeParameters for long lock, got %v", err)
	}
	if err := v.Lock(100, MinVestingPeriod, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.LockedAmount != 100 || v.LockedUntil != MinVestingPeriod {
		t.Fatalf("lock state wrong: %+v", v)
	}
}

func TestVaultRelockWhileLive(t *testing.T) {
	v := &Vault{}
	if err := v.Lock(100, MinVestingPeriod, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Lock(200, MinVestingPeriod, 10); !errors.Is(err, ErrTokensStillLocked) {
		t.Fatalf("expected ErrTokensStillLocked, got %v", err)
	}
}

func TestVaultRelockAfterExpiryReplacesLock(t *testing.T) {
	v := &Vault{}
	if err := v.Lock(100, MinVestingPeriod, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An expired lock does not block relocking and is replaced outright.
	if err := v.Lock(40, MinVestingPeriod, MinVestingPeriod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.LockedAmount != 40 || v.LockedUntil != 2*MinVestingPeriod {
		t.Fatalf("lock state wrong: %+v", v)
	}

	amount, err := v.Unlock(2 * MinVestingPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 40 {
		t.Fatalf("unlock released %d, want 40", amount)
	}
}

func TestVaultUnlock(t *testing.T) {
	v := &Vault{}
	if err := v.Lock(100, MinVestingPeriod, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := v.Unlock(MinVestingPeriod - 1); !errors.Is(err, ErrTokensStillLocked) {
		t.Fatalf("expected ErrTokensStillLocked, got %v", err)
	}

	amount, err := v.Unlock(MinVestingPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 100 || v.LockedAmount != 0 {
		t.Fatalf("unlock state wrong: amount=%d vault=%+v", amount, v)
	}

	if _, err := v.Unlock(MinVestingPeriod); !errors.Is(err, ErrNothingLocked) {
		t.Fatalf("expected ErrNothingLocked, got %v", err)
	}
}
