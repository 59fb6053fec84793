package recorder

import "curveSettle/internal/model"

// Recorder persists settlement history for analysis.
type Recorder interface {
	RecordTrade(evt *model.TradeEvent) error
	RecordClaim(evt *model.ClaimEvent) error
	RecordStream(evt *model.StreamEvent) error
	Close() error
}
