package settlement

// Oracle supplies the external gating data a claim may depend on. The engine
// never interprets market structure itself; it only compares the reported cap
// against a schedule's target.
type Oracle interface {
	MarketCap() (uint64, error)
}

// StaticOracle reports a fixed market cap, fed from configuration. It stands
// in for a live market-data collaborator in the file-driven pipeline.
type StaticOracle struct {
	Cap uint64
}

func (o StaticOracle) MarketCap() (uint64, error) {
	return o.Cap, nil
}
