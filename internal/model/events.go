package model

// TradeEvent records one committed trade for logging and telemetry. It is
// surfaced after the custody transfer and the reserve update both succeeded.
type TradeEvent struct {
	Actor       string    `json:"actor"`
	Pool        string    `json:"pool"`
	Side        TradeSide `json:"side"`
	BaseAmount  uint64    `json:"base_amount"`
	QuoteAmount uint64    `json:"quote_amount"`
	Timestamp   int64     `json:"timestamp"`
}

// ClaimEvent records one committed release: a vesting claim or a vault
// lock/unlock.
type ClaimEvent struct {
	Action      ClaimAction `json:"action"`
	Beneficiary string      `json:"beneficiary"`
	Schedule    string      `json:"schedule,omitempty"`
	Vault       string      `json:"vault,omitempty"`
	Amount      uint64      `json:"amount"`
	Timestamp   int64       `json:"timestamp"`
}

// StreamEvent records one committed stream checkpoint.
type StreamEvent struct {
	Beneficiary string `json:"beneficiary"`
	Stream      string `json:"stream"`
	Amount      uint64 `json:"amount"`
	Timestamp   int64  `json:"timestamp"`
}

// RejectRecord captures an intent that failed, preserving the input and the
// error for a separate errors file.
type RejectRecord struct {
	Line  uint64 `json:"line"`
	Kind  string `json:"kind"`
	Input string `json:"input"`
	Error string `json:"error"`
}
