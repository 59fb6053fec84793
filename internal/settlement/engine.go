package settlement

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"curveSettle/internal/curve"
	"curveSettle/internal/custody"
	"curveSettle/internal/model"
	"curveSettle/internal/stream"
	"curveSettle/internal/vesting"
)

// Engine drives every settlement operation through the same discipline:
// compute the amount, check the caller's bounds and gates, move custody, and
// only then commit the entity's accounting. A custody failure therefore never
// leaves reserve or release state ahead of the actual balances.
type Engine struct {
	ledger custody.Ledger
	oracle Oracle
	logger *zap.Logger
	now    func() int64
}

// NewEngine builds an Engine. A nil logger is replaced with a nop logger; now
// supplies the settlement clock.
func NewEngine(ledger custody.Ledger, oracle Oracle, logger *zap.Logger, now func() int64) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger: ledger,
		oracle: oracle,
		logger: logger,
		now:    now,
	}
}

// Buy settles a purchase of intent.Amount base units from the pool. The quote
// charged is bounded by intent.MaxQuoteIn when set.
func (e *Engine) Buy(pool *curve.Curve, intent model.TradeIntent) (model.TradeEvent, error) {
	actor, baseVault, quoteVault, err := e.tradeAccounts(pool, intent)
	if err != nil {
		return model.TradeEvent{}, err
	}

	quoteIn, err := pool.QuoteBuy(intent.Amount)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("quote buy: %w", err)
	}
	if intent.MaxQuoteIn > 0 && quoteIn > intent.MaxQuoteIn {
		return model.TradeEvent{}, fmt.Errorf("%w: cost %d above bound %d", ErrSlippageExceeded, quoteIn, intent.MaxQuoteIn)
	}

	quoteDelta, baseDelta, err := tradeDeltas(quoteIn, intent.Amount)
	if err != nil {
		return model.TradeEvent{}, err
	}

	if err := e.ledger.Transfer(actor, quoteVault, quoteIn); err != nil {
		return model.TradeEvent{}, fmt.Errorf("collect quote: %w", err)
	}
	if err := e.ledger.Transfer(baseVault, actor, intent.Amount); err != nil {
		// Wind the quote leg back so the failed trade moved nothing.
		if undoErr := e.ledger.Transfer(quoteVault, actor, quoteIn); undoErr != nil {
			return model.TradeEvent{}, fmt.Errorf("deliver base: %w (quote refund also failed: %v)", err, undoErr)
		}
		return model.TradeEvent{}, fmt.Errorf("deliver base: %w", err)
	}

	if err := pool.UpdateReserves(quoteDelta, baseDelta); err != nil {
		// Both custody legs already ran; wind them back so a refused
		// commit leaves balances where they started.
		undoErr := e.ledger.Transfer(actor, baseVault, intent.Amount)
		if undoErr == nil {
			undoErr = e.ledger.Transfer(quoteVault, actor, quoteIn)
		}
		if undoErr != nil {
			return model.TradeEvent{}, fmt.Errorf("commit reserves: %w (unwind also failed: %v)", err, undoErr)
		}
		return model.TradeEvent{}, fmt.Errorf("commit reserves: %w", err)
	}

	event := model.TradeEvent{
		Actor:       intent.Actor,
		Pool:        intent.Pool,
		Side:        model.SideBuy,
		BaseAmount:  intent.Amount,
		QuoteAmount: quoteIn,
		Timestamp:   e.now(),
	}
	e.logger.Debug("buy settled",
		zap.String("pool", intent.Pool),
		zap.String("actor", intent.Actor),
		zap.Uint64("base", intent.Amount),
		zap.Uint64("quote", quoteIn),
	)
	return event, nil
}

// Sell settles a sale of intent.Amount base units into the pool. The quote
// paid out is bounded below by intent.MinQuoteOut when set.
func (e *Engine) Sell(pool *curve.Curve, intent model.TradeIntent) (model.TradeEvent, error) {
	actor, baseVault, quoteVault, err := e.tradeAccounts(pool, intent)
	if err != nil {
		return model.TradeEvent{}, err
	}

	// A sale can only return base units that earlier buys put in circulation.
	if intent.Amount > pool.RealBase {
		return model.TradeEvent{}, fmt.Errorf("%w: selling %d with %d in circulation", ErrAmountOutOfRange, intent.Amount, pool.RealBase)
	}

	quoteOut, err := pool.QuoteSell(intent.Amount)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("quote sell: %w", err)
	}
	if intent.MinQuoteOut > 0 && quoteOut < intent.MinQuoteOut {
		return model.TradeEvent{}, fmt.Errorf("%w: payout %d below bound %d", ErrSlippageExceeded, quoteOut, intent.MinQuoteOut)
	}

	quoteDelta, baseDelta, err := tradeDeltas(quoteOut, intent.Amount)
	if err != nil {
		return model.TradeEvent{}, err
	}

	if err := e.ledger.Transfer(actor, baseVault, intent.Amount); err != nil {
		return model.TradeEvent{}, fmt.Errorf("collect base: %w", err)
	}
	if err := e.ledger.Transfer(quoteVault, actor, quoteOut); err != nil {
		if undoErr := e.ledger.Transfer(baseVault, actor, intent.Amount); undoErr != nil {
			return model.TradeEvent{}, fmt.Errorf("pay quote: %w (base refund also failed: %v)", err, undoErr)
		}
		return model.TradeEvent{}, fmt.Errorf("pay quote: %w", err)
	}

	if err := pool.UpdateReserves(-quoteDelta, -baseDelta); err != nil {
		undoErr := e.ledger.Transfer(actor, quoteVault, quoteOut)
		if undoErr == nil {
			undoErr = e.ledger.Transfer(baseVault, actor, intent.Amount)
		}
		if undoErr != nil {
			return model.TradeEvent{}, fmt.Errorf("commit reserves: %w (unwind also failed: %v)", err, undoErr)
		}
		return model.TradeEvent{}, fmt.Errorf("commit reserves: %w", err)
	}

	event := model.TradeEvent{
		Actor:       intent.Actor,
		Pool:        intent.Pool,
		Side:        model.SideSell,
		BaseAmount:  intent.Amount,
		QuoteAmount: quoteOut,
		Timestamp:   e.now(),
	}
	e.logger.Debug("sell settled",
		zap.String("pool", intent.Pool),
		zap.String("actor", intent.Actor),
		zap.Uint64("base", intent.Amount),
		zap.Uint64("quote", quoteOut),
	)
	return event, nil
}

// Claim settles a vesting claim: authority check, external gates, custody
// transfer from escrow to beneficiary, then the schedule's release commit.
func (e *Engine) Claim(sched *vesting.Schedule, intent model.ClaimIntent) (model.ClaimEvent, error) {
	caller, err := custody.ParseAddress(intent.Caller)
	if err != nil {
		return model.ClaimEvent{}, err
	}
	authority, err := custody.ParseAddress(sched.Authority)
	if err != nil {
		return model.ClaimEvent{}, fmt.Errorf("schedule authority: %w", err)
	}
	if err := custody.Authorize(caller, authority); err != nil {
		return model.ClaimEvent{}, err
	}

	now := e.now()
	if sched.RequireEndOfPeriod && now < sched.EndTime {
		return model.ClaimEvent{}, ErrVestingPeriodNotEnded
	}
	if sched.TargetMarketCap > 0 {
		marketCap, err := e.oracle.MarketCap()
		if err != nil {
			return model.ClaimEvent{}, fmt.Errorf("market cap oracle: %w", err)
		}
		if marketCap < sched.TargetMarketCap {
			return model.ClaimEvent{}, fmt.Errorf("%w: %d below target %d", ErrMarketCapNotReached, marketCap, sched.TargetMarketCap)
		}
	}

	delta, err := sched.Claimable(now)
	if err != nil {
		return model.ClaimEvent{}, err
	}

	var escrow, beneficiary common.Address
	if delta > 0 {
		escrow, err = custody.ParseAddress(sched.EscrowVault)
		if err != nil {
			return model.ClaimEvent{}, fmt.Errorf("schedule escrow: %w", err)
		}
		beneficiary, err = custody.ParseAddress(sched.Beneficiary)
		if err != nil {
			return model.ClaimEvent{}, fmt.Errorf("schedule beneficiary: %w", err)
		}
		if err := e.ledger.Transfer(escrow, beneficiary, delta); err != nil {
			return model.ClaimEvent{}, fmt.Errorf("release escrow: %w", err)
		}
	}

	committed, commitErr := sched.Claim(now)
	if commitErr == nil && committed != delta {
		commitErr = fmt.Errorf("delta moved from %d to %d mid-claim", delta, committed)
	}
	if commitErr != nil {
		if delta > 0 {
			if undoErr := e.ledger.Transfer(beneficiary, escrow, delta); undoErr != nil {
				return model.ClaimEvent{}, fmt.Errorf("commit claim: %w (unwind also failed: %v)", commitErr, undoErr)
			}
		}
		return model.ClaimEvent{}, fmt.Errorf("commit claim: %w", commitErr)
	}

	event := model.ClaimEvent{
		Action:      model.ActionClaim,
		Beneficiary: sched.Beneficiary,
		Schedule:    intent.Schedule,
		Amount:      delta,
		Timestamp:   now,
	}
	e.logger.Debug("claim settled",
		zap.String("schedule", intent.Schedule),
		zap.String("beneficiary", sched.Beneficiary),
		zap.Uint64("amount", delta),
	)
	return event, nil
}

// LockVault escrows intent.Amount into the vault's escrow account for
// intent.LockDuration.
func (e *Engine) LockVault(vault *vesting.Vault, intent model.ClaimIntent) (model.ClaimEvent, error) {
	caller, err := custody.ParseAddress(intent.Caller)
	if err != nil {
		return model.ClaimEvent{}, err
	}
	owner, err := custody.ParseAddress(vault.Owner)
	if err != nil {
		return model.ClaimEvent{}, fmt.Errorf("vault owner: %w", err)
	}
	if err := custody.Authorize(caller, owner); err != nil {
		return model.ClaimEvent{}, err
	}
	escrow, err := custody.ParseAddress(vault.EscrowVault)
	if err != nil {
		return model.ClaimEvent{}, fmt.Errorf("vault escrow: %w", err)
	}

	now := e.now()

	// Dry-run the lock on a copy so custody only moves for a valid request.
	trial := *vault
	if err := trial.Lock(intent.Amount, intent.LockDuration, now); err != nil {
		return model.ClaimEvent{}, err
	}

	if err := e.ledger.Transfer(owner, escrow, intent.Amount); err != nil {
		return model.ClaimEvent{}, fmt.Errorf("escrow funds: %w", err)
	}
	if err := vault.Lock(intent.Amount, intent.LockDuration, now); err != nil {
		if undoErr := e.ledger.Transfer(escrow, owner, intent.Amount); undoErr != nil {
			return model.ClaimEvent{}, fmt.Errorf("commit lock: %w (unwind also failed: %v)", err, undoErr)
		}
		return model.ClaimEvent{}, fmt.Errorf("commit lock: %w", err)
	}

	event := model.ClaimEvent{
		Action:      model.ActionLock,
		Beneficiary: vault.Owner,
		Vault:       intent.Vault,
		Amount:      intent.Amount,
		Timestamp:   now,
	}
	e.logger.Debug("vault locked",
		zap.String("vault", intent.Vault),
		zap.Uint64("amount", intent.Amount),
		zap.Int64("until", vault.LockedUntil),
	)
	return event, nil
}

// UnlockVault releases an expired lock back to the vault owner.
func (e *Engine) UnlockVault(vault *vesting.Vault, intent model.ClaimIntent) (model.ClaimEvent, error) {
	caller, err := custody.ParseAddress(intent.Caller)
	if err != nil {
		return model.ClaimEvent{}, err
	}
	owner, err := custody.ParseAddress(vault.Owner)
	if err != nil {
		return model.ClaimEvent{}, fmt.Errorf("vault owner: %w", err)
	}
	if err := custody.Authorize(caller, owner); err != nil {
		return model.ClaimEvent{}, err
	}
	escrow, err := custody.ParseAddress(vault.EscrowVault)
	if err != nil {
		return model.ClaimEvent{}, fmt.Errorf("vault escrow: %w", err)
	}

	now := e.now()
	amount, err := vault.Unlockable(now)
	if err != nil {
		return model.ClaimEvent{}, err
	}

	if err := e.ledger.Transfer(escrow, owner, amount); err != nil {
		return model.ClaimEvent{}, fmt.Errorf("release escrow: %w", err)
	}
	if _, err := vault.Unlock(now); err != nil {
		if undoErr := e.ledger.Transfer(owner, escrow, amount); undoErr != nil {
			return model.ClaimEvent{}, fmt.Errorf("commit unlock: %w (unwind also failed: %v)", err, undoErr)
		}
		return model.ClaimEvent{}, fmt.Errorf("commit unlock: %w", err)
	}

	event := model.ClaimEvent{
		Action:      model.ActionUnlock,
		Beneficiary: vault.Owner,
		Vault:       intent.Vault,
		Amount:      amount,
		Timestamp:   now,
	}
	e.logger.Debug("vault unlocked",
		zap.String("vault", intent.Vault),
		zap.Uint64("amount", amount),
	)
	return event, nil
}

// CheckpointStream commits a stream's accrual and pays it out of escrow.
func (e *Engine) CheckpointStream(st *stream.Stream, streamID string) (model.StreamEvent, error) {
	now := e.now()

	delta, err := st.StreamableAmount(now)
	if err != nil {
		return model.StreamEvent{}, err
	}

	var escrow, beneficiary common.Address
	if delta > 0 {
		escrow, err = custody.ParseAddress(st.EscrowVault)
		if err != nil {
			return model.StreamEvent{}, fmt.Errorf("stream escrow: %w", err)
		}
		beneficiary, err = custody.ParseAddress(st.Beneficiary)
		if err != nil {
			return model.StreamEvent{}, fmt.Errorf("stream beneficiary: %w", err)
		}
		if err := e.ledger.Transfer(escrow, beneficiary, delta); err != nil {
			return model.StreamEvent{}, fmt.Errorf("release escrow: %w", err)
		}
	}

	committed, commitErr := st.Checkpoint(now)
	if commitErr == nil && committed != delta {
		commitErr = fmt.Errorf("delta moved from %d to %d", delta, committed)
	}
	if commitErr != nil {
		if delta > 0 {
			if undoErr := e.ledger.Transfer(beneficiary, escrow, delta); undoErr != nil {
				return model.StreamEvent{}, fmt.Errorf("commit checkpoint: %w (unwind also failed: %v)", commitErr, undoErr)
			}
		}
		return model.StreamEvent{}, fmt.Errorf("commit checkpoint: %w", commitErr)
	}

	event := model.StreamEvent{
		Beneficiary: st.Beneficiary,
		Stream:      streamID,
		Amount:      delta,
		Timestamp:   now,
	}
	e.logger.Debug("stream checkpointed",
		zap.String("stream", streamID),
		zap.Uint64("amount", delta),
	)
	return event, nil
}

func (e *Engine) tradeAccounts(pool *curve.Curve, intent model.TradeIntent) (actor, baseVault, quoteVault common.Address, err error) {
	if intent.Amount < curve.MinTradeAmount {
		err = fmt.Errorf("%w: trade amount below minimum", ErrInvalidAmount)
		return
	}
	actor, err = custody.ParseAddress(intent.Actor)
	if err != nil {
		return
	}
	baseVault, err = custody.ParseAddress(pool.BaseVault)
	if err != nil {
		err = fmt.Errorf("pool base vault: %w", err)
		return
	}
	quoteVault, err = custody.ParseAddress(pool.QuoteVault)
	if err != nil {
		err = fmt.Errorf("pool quote vault: %w", err)
	}
	return
}

// tradeDeltas narrows trade amounts into the signed delta domain that
// UpdateReserves accepts.
func tradeDeltas(quote, base uint64) (int64, int64, error) {
	if quote > math.MaxInt64 || base > math.MaxInt64 {
		return 0, 0, fmt.Errorf("%w: delta exceeds signed range", ErrAmountOutOfRange)
	}
	return int64(quote), int64(base), nil
}
