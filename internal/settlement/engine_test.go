package settlement

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"curveSettle/internal/curve"
	"curveSettle/internal/custody"
	"curveSettle/internal/model"
	"curveSettle/internal/stream"
	"curveSettle/internal/vesting"
)

const (
	addrTrader     = "0x1111111111111111111111111111111111111111"
	addrOther      = "0x2222222222222222222222222222222222222222"
	addrBaseVault  = "0x3333333333333333333333333333333333333333"
	addrQuoteVault = "0x4444444444444444444444444444444444444444"
	addrEscrow     = "0x5555555555555555555555555555555555555555"
)

func addr(t *testing.T, raw string) common.Address {
	t.Helper()
	parsed, err := custody.ParseAddress(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return parsed
}

func newTestEngine(now int64) (*Engine, *custody.MemoryLedger) {
	ledger := custody.NewMemoryLedger()
	engine := NewEngine(ledger, StaticOracle{Cap: 0}, nil, func() int64 { return now })
	return engine, ledger
}

func newTestPool(t *testing.T) *curve.Curve {
	t.Helper()
	pool, err := curve.New(curve.KindLinear, 1_000_000, 100_000_000, [3]uint64{0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool.BaseVault = addrBaseVault
	pool.QuoteVault = addrQuoteVault
	return pool
}

func TestBuyCommitsCustodyAndReserves(t *testing.T) {
	engine, ledger := newTestEngine(1_700_000_000)
	pool := newTestPool(t)

	ledger.Seed(addr(t, addrTrader), 2_000_000)
	ledger.Seed(addr(t, addrBaseVault), 1_000_000)

	event, err := engine.Buy(pool, model.TradeIntent{
		Actor:  addrTrader,
		Pool:   "launch-1",
		Side:   model.SideBuy,
		Amount: 10_000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.QuoteAmount != 1_000_000 || event.BaseAmount != 10_000 {
		t.Fatalf("event amounts wrong: %+v", event)
	}
	if ledger.Balance(addr(t, addrTrader)) != 1_000_000+10_000 {
		t.Fatalf("trader balance wrong: %d", ledger.Balance(addr(t, addrTrader)))
	}
	if ledger.Balance(addr(t, addrQuoteVault)) != 1_000_000 {
		t.Fatalf("quote vault wrong: %d", ledger.Balance(addr(t, addrQuoteVault)))
	}
	if pool.RealQuote != 101_000_000 || pool.RealBase != 10_000 {
		t.Fatalf("reserves wrong: quote=%d base=%d", pool.RealQuote, pool.RealBase)
	}
}

func TestBuySlippageBound(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	ledger.Seed(addr(t, addrTrader), 2_000_000)
	ledger.Seed(addr(t, addrBaseVault), 1_000_000)

	_, err := engine.Buy(pool, model.TradeIntent{
		Actor:      addrTrader,
		Pool:       "launch-1",
		Amount:     10_000,
		MaxQuoteIn: 999_999,
	})
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
	if pool.RealQuote != 100_000_000 || pool.RealBase != 0 {
		t.Fatalf("failed buy must not touch reserves: %+v", pool)
	}
}

func TestBuyInsufficientFundsMovesNothing(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	ledger.Seed(addr(t, addrTrader), 10) // cannot cover the quote leg
	ledger.Seed(addr(t, addrBaseVault), 1_000_000)

	_, err := engine.Buy(pool, model.TradeIntent{
		Actor:  addrTrader,
		Pool:   "launch-1",
		Amount: 10_000,
	})
	if !errors.Is(err, custody.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if ledger.Balance(addr(t, addrTrader)) != 10 {
		t.Fatalf("trader balance must be untouched, got %d", ledger.Balance(addr(t, addrTrader)))
	}
	if pool.RealQuote != 100_000_000 || pool.RealBase != 0 {
		t.Fatalf("failed buy must not touch reserves: %+v", pool)
	}
}

func TestBuyBaseLegFailureRefundsQuote(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	ledger.Seed(addr(t, addrTrader), 2_000_000)
	// Base vault too small to deliver.
	ledger.Seed(addr(t, addrBaseVault), 10)

	_, err := engine.Buy(pool, model.TradeIntent{
		Actor:  addrTrader,
		Pool:   "launch-1",
		Amount: 10_000,
	})
	if !errors.Is(err, custody.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if ledger.Balance(addr(t, addrTrader)) != 2_000_000 {
		t.Fatalf("quote leg must be refunded, trader has %d", ledger.Balance(addr(t, addrTrader)))
	}
}

func TestBuyReserveOverflowUnwindsCustody(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	// The reserve commit overflows even though both custody legs can run.
	pool.RealQuote = math.MaxUint64
	ledger.Seed(addr(t, addrTrader), 2_000_000)
	ledger.Seed(addr(t, addrBaseVault), 1_000_000)

	_, err := engine.Buy(pool, model.TradeIntent{
		Actor:  addrTrader,
		Pool:   "launch-1",
		Amount: 10_000,
	})
	if !errors.Is(err, curve.ErrCalculation) {
		t.Fatalf("expected ErrCalculation, got %v", err)
	}
	if ledger.Balance(addr(t, addrTrader)) != 2_000_000 {
		t.Fatalf("failed commit must wind custody back, trader has %d", ledger.Balance(addr(t, addrTrader)))
	}
	if ledger.Balance(addr(t, addrQuoteVault)) != 0 {
		t.Fatalf("failed commit must wind custody back, quote vault has %d", ledger.Balance(addr(t, addrQuoteVault)))
	}
	if ledger.Balance(addr(t, addrBaseVault)) != 1_000_000 {
		t.Fatalf("failed commit must wind custody back, base vault has %d", ledger.Balance(addr(t, addrBaseVault)))
	}
	if pool.RealQuote != math.MaxUint64 || pool.RealBase != 0 {
		t.Fatalf("failed commit must not touch reserves: %+v", pool)
	}
}

func TestSellRoundTripAfterBuy(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	ledger.Seed(addr(t, addrTrader), 2_000_000)
	ledger.Seed(addr(t, addrBaseVault), 1_000_000)
	ledger.Seed(addr(t, addrQuoteVault), pool.RealQuote)

	if _, err := engine.Buy(pool, model.TradeIntent{Actor: addrTrader, Pool: "p", Amount: 10_000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event, err := engine.Sell(pool, model.TradeIntent{Actor: addrTrader, Pool: "p", Amount: 10_000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.QuoteAmount != 1_000_000 {
		t.Fatalf("expected 1_000_000 payout, got %d", event.QuoteAmount)
	}
	if pool.RealQuote != 100_000_000 || pool.RealBase != 0 {
		t.Fatalf("reserves did not round-trip: quote=%d base=%d", pool.RealQuote, pool.RealBase)
	}
}

func TestSellMoreThanCirculatingFails(t *testing.T) {
	engine, ledger := newTestEngine(0)
	pool := newTestPool(t)
	ledger.Seed(addr(t, addrTrader), 1_000_000)
	ledger.Seed(addr(t, addrQuoteVault), pool.RealQuote)

	_, err := engine.Sell(pool, model.TradeIntent{Actor: addrTrader, Pool: "p", Amount: 100})
	if !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if ledger.Balance(addr(t, addrTrader)) != 1_000_000 {
		t.Fatalf("failed sell must not move funds, got %d", ledger.Balance(addr(t, addrTrader)))
	}
}

func TestTradeMinimumAmount(t *testing.T) {
	engine, _ := newTestEngine(0)
	pool := newTestPool(t)

	_, err := engine.Buy(pool, model.TradeIntent{Actor: addrTrader, Pool: "p", Amount: 0})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func newClaimSchedule(t *testing.T) *vesting.Schedule {
	t.Helper()
	sched, err := vesting.NewSchedule(vesting.KindLinear, 0, 1000, 0, 1000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sched.Beneficiary = addrTrader
	sched.Authority = addrTrader
	sched.EscrowVault = addrEscrow
	return sched
}

func TestClaimTransfersAndCommits(t *testing.T) {
	engine, ledger := newTestEngine(400)
	sched := newClaimSchedule(t)
	ledger.Seed(addr(t, addrEscrow), 1000)

	event, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrTrader, Schedule: "grant-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 400 {
		t.Fatalf("expected 400 claimed, got %d", event.Amount)
	}
	if ledger.Balance(addr(t, addrTrader)) != 400 {
		t.Fatalf("beneficiary balance wrong: %d", ledger.Balance(addr(t, addrTrader)))
	}
	if sched.ReleasedAmount != 400 {
		t.Fatalf("released wrong: %d", sched.ReleasedAmount)
	}
}

func TestClaimUnauthorized(t *testing.T) {
	engine, ledger := newTestEngine(400)
	sched := newClaimSchedule(t)
	ledger.Seed(addr(t, addrEscrow), 1000)

	_, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrOther, Schedule: "grant-1"})
	if !errors.Is(err, custody.ErrUnauthorizedAccess) {
		t.Fatalf("expected ErrUnauthorizedAccess, got %v", err)
	}
	if sched.ReleasedAmount != 0 {
		t.Fatalf("unauthorized claim must not release, got %d", sched.ReleasedAmount)
	}
}

func TestClaimEndOfPeriodGate(t *testing.T) {
	engine, ledger := newTestEngine(400)
	sched := newClaimSchedule(t)
	sched.RequireEndOfPeriod = true
	ledger.Seed(addr(t, addrEscrow), 1000)

	_, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrTrader, Schedule: "grant-1"})
	if !errors.Is(err, ErrVestingPeriodNotEnded) {
		t.Fatalf("expected ErrVestingPeriodNotEnded, got %v", err)
	}
}

func TestClaimMarketCapGate(t *testing.T) {
	ledger := custody.NewMemoryLedger()
	engine := NewEngine(ledger, StaticOracle{Cap: 500}, nil, func() int64 { return 400 })
	sched := newClaimSchedule(t)
	sched.TargetMarketCap = 1000
	ledger.Seed(addr(t, addrEscrow), 1000)

	_, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrTrader, Schedule: "grant-1"})
	if !errors.Is(err, ErrMarketCapNotReached) {
		t.Fatalf("expected ErrMarketCapNotReached, got %v", err)
	}

	// Raising the reported cap clears the gate.
	engine = NewEngine(ledger, StaticOracle{Cap: 1500}, nil, func() int64 { return 400 })
	event, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrTrader, Schedule: "grant-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 400 {
		t.Fatalf("expected 400 claimed, got %d", event.Amount)
	}
}

func TestClaimEscrowShortfallCommitsNothing(t *testing.T) {
	engine, ledger := newTestEngine(400)
	sched := newClaimSchedule(t)
	ledger.Seed(addr(t, addrEscrow), 10)

	_, err := engine.Claim(sched, model.ClaimIntent{Action: model.ActionClaim, Caller: addrTrader, Schedule: "grant-1"})
	if !errors.Is(err, custody.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if sched.ReleasedAmount != 0 {
		t.Fatalf("failed transfer must not commit release, got %d", sched.ReleasedAmount)
	}
}

func TestVaultLockUnlockFlow(t *testing.T) {
	now := int64(1_000_000)
	engine, ledger := newTestEngine(now)

	vault := &vesting.Vault{Owner: addrTrader, EscrowVault: addrEscrow}
	ledger.Seed(addr(t, addrTrader), 500)

	_, err := engine.LockVault(vault, model.ClaimIntent{
		Action:       model.ActionLock,
		Caller:       addrTrader,
		Vault:        "vault-1",
		Amount:       300,
		LockDuration: vesting.MinVestingPeriod,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.Balance(addr(t, addrEscrow)) != 300 || vault.LockedAmount != 300 {
		t.Fatalf("lock state wrong: escrow=%d vault=%+v", ledger.Balance(addr(t, addrEscrow)), vault)
	}

	// Too early.
	_, err = engine.UnlockVault(vault, model.ClaimIntent{Action: model.ActionUnlock, Caller: addrTrader, Vault: "vault-1"})
	if !errors.Is(err, vesting.ErrTokensStillLocked) {
		t.Fatalf("expected ErrTokensStillLocked, got %v", err)
	}

	late := NewEngine(ledger, StaticOracle{}, nil, func() int64 { return now + vesting.MinVestingPeriod })
	event, err := late.UnlockVault(vault, model.ClaimIntent{Action: model.ActionUnlock, Caller: addrTrader, Vault: "vault-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 300 || vault.LockedAmount != 0 {
		t.Fatalf("unlock state wrong: event=%+v vault=%+v", event, vault)
	}
	if ledger.Balance(addr(t, addrTrader)) != 500 {
		t.Fatalf("owner should be made whole, got %d", ledger.Balance(addr(t, addrTrader)))
	}
}

func TestCheckpointStreamPaysAccrual(t *testing.T) {
	start := int64(1000)
	st, err := stream.New(stream.KindLinear, 10, 60, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st.Beneficiary = addrTrader
	st.EscrowVault = addrEscrow

	engine, ledger := newTestEngine(start + 150)
	ledger.Seed(addr(t, addrEscrow), 1000)

	event, err := engine.CheckpointStream(st, "stream-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Amount != 20 {
		t.Fatalf("expected 20 accrued, got %d", event.Amount)
	}
	if ledger.Balance(addr(t, addrTrader)) != 20 || st.TotalStreamed != 20 {
		t.Fatalf("checkpoint state wrong: balance=%d stream=%+v", ledger.Balance(addr(t, addrTrader)), st)
	}
}
