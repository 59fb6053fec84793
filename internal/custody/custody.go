package custody

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorizedAccess  = errors.New("unauthorized access")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Ledger moves fungible balances between accounts. A transfer either fully
// applies or fails without touching either account.
type Ledger interface {
	Transfer(from, to common.Address, amount uint64) error
	Balance(addr common.Address) uint64
}

// Authorize checks a caller identity against the authority an entity requires.
func Authorize(caller, required common.Address) error {
	if caller != required {
		return fmt.Errorf("%w: caller %s is not authority %s", ErrUnauthorizedAccess, caller.Hex(), required.Hex())
	}
	return nil
}

// ParseAddress validates and normalizes a hex account handle.
func ParseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}

// MemoryLedger is an in-memory Ledger backing the file-driven pipeline. The
// state loader seeds it and reads the balances back after a run.
type MemoryLedger struct {
	balances map[common.Address]uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]uint64)}
}

// Seed sets an account balance, replacing any previous value.
func (l *MemoryLedger) Seed(addr common.Address, amount uint64) {
	l.balances[addr] = amount
}

func (l *MemoryLedger) Balance(addr common.Address) uint64 {
	return l.balances[addr]
}

func (l *MemoryLedger) Transfer(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	fromBalance := l.balances[from]
	if fromBalance < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d", ErrInsufficientBalance, from.Hex(), fromBalance, amount)
	}
	// A self-transfer is a funded no-op; debit and credit would otherwise
	// race on the same entry.
	if from == to {
		return nil
	}
	toBalance := l.balances[to]
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, to.Hex())
	}

	l.balances[from] = fromBalance - amount
	l.balances[to] = toBalance + amount
	return nil
}

// Snapshot returns all balances keyed by hex address, sorted for stable
// serialization.
func (l *MemoryLedger) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(l.balances))
	keys := make([]common.Address, 0, len(l.balances))
	for addr := range l.balances {
		keys = append(keys, addr)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hex() < keys[j].Hex() })
	for _, addr := range keys {
		out[addr.Hex()] = l.balances[addr]
	}
	return out
}
