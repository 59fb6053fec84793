package recorder

import "curveSettle/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(_ *model.TradeEvent) error   { return nil }
func (n *NoopRecorder) RecordClaim(_ *model.ClaimEvent) error   { return nil }
func (n *NoopRecorder) RecordStream(_ *model.StreamEvent) error { return nil }
func (n *NoopRecorder) Close() error                            { return nil }
