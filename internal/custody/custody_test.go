package custody

import (
	"errors"
	"math"
	"testing"
)

func TestTransfer(t *testing.T) {
	alice, err := ParseAddress("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, err := ParseAddress("0x2222222222222222222222222222222222222222")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ledger := NewMemoryLedger()
	ledger.Seed(alice, 100)

	if err := ledger.Transfer(alice, bob, 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Balance(alice) != 40 || ledger.Balance(bob) != 60 {
		t.Fatalf("balances wrong: alice=%d bob=%d", ledger.Balance(alice), ledger.Balance(bob))
	}

	err = ledger.Transfer(alice, bob, 41)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if ledger.Balance(alice) != 40 || ledger.Balance(bob) != 60 {
		t.Fatalf("failed transfer must not move funds: alice=%d bob=%d", ledger.Balance(alice), ledger.Balance(bob))
	}
}

func TestTransferToSelfConservesBalance(t *testing.T) {
	alice, _ := ParseAddress("0x1111111111111111111111111111111111111111")

	ledger := NewMemoryLedger()
	ledger.Seed(alice, 1_000)

	if err := ledger.Transfer(alice, alice, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Balance(alice) != 1_000 {
		t.Fatalf("self transfer must conserve balance, got %d", ledger.Balance(alice))
	}

	// Still bounded by the available balance.
	if err := ledger.Transfer(alice, alice, 1_001); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferOverflowGuard(t *testing.T) {
	alice, _ := ParseAddress("0x1111111111111111111111111111111111111111")
	bob, _ := ParseAddress("0x2222222222222222222222222222222222222222")

	ledger := NewMemoryLedger()
	ledger.Seed(alice, 10)
	ledger.Seed(bob, math.MaxUint64)

	if err := ledger.Transfer(alice, bob, 1); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	alice, _ := ParseAddress("0x1111111111111111111111111111111111111111")
	bob, _ := ParseAddress("0x2222222222222222222222222222222222222222")

	if err := Authorize(alice, alice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Authorize(alice, bob); !errors.Is(err, ErrUnauthorizedAccess) {
		t.Fatalf("expected ErrUnauthorizedAccess, got %v", err)
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	if _, err := ParseAddress("not-an-address"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}
