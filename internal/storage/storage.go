package storage

import "curveSettle/internal/model"

// EventSink defines a sink for settlement events and rejected intents.
type EventSink interface {
	PutTradeEvents(events []model.TradeEvent) error
	PutClaimEvents(events []model.ClaimEvent) error
	PutStreamEvents(events []model.StreamEvent) error
	PutRejects(rejects []model.RejectRecord) error
}
