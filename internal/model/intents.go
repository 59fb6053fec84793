package model

// TradeSide distinguishes buys from sells.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeIntent is one requested trade read from the intents JSONL. Amount is
// denominated in base units; the Max/Min bounds are the caller's slippage
// protection and are ignored when zero.
type TradeIntent struct {
	Actor       string    `json:"actor"`
	Pool        string    `json:"pool"`
	Side        TradeSide `json:"side"`
	Amount      uint64    `json:"amount"`
	MaxQuoteIn  uint64    `json:"max_quote_in,omitempty"`
	MinQuoteOut uint64    `json:"min_quote_out,omitempty"`
}

// ClaimAction selects what a claim-file entry does.
type ClaimAction string

const (
	ActionClaim  ClaimAction = "claim"
	ActionLock   ClaimAction = "lock"
	ActionUnlock ClaimAction = "unlock"
)

// ClaimIntent is one schedule claim or vault lock/unlock request. Schedule
// names a vesting schedule for claims; Vault names a time-lock vault for lock
// and unlock actions.
type ClaimIntent struct {
	Action       ClaimAction `json:"action"`
	Caller       string      `json:"caller"`
	Schedule     string      `json:"schedule,omitempty"`
	Vault        string      `json:"vault,omitempty"`
	Amount       uint64      `json:"amount,omitempty"`
	LockDuration int64       `json:"lock_duration,omitempty"`
}
