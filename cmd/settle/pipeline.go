package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"curveSettle/internal/config"
	"curveSettle/internal/custody"
	"curveSettle/internal/recorder"
	"curveSettle/internal/settlement"
	"curveSettle/internal/state"
	"curveSettle/internal/storage"
	"curveSettle/internal/storage/postgres"
)

// pipeline bundles the collaborators the trade and claim commands share: the
// state file, the seeded ledger, the engine, and the optional history sinks.
type pipeline struct {
	store    *state.Store
	state    *state.State
	ledger   *custody.MemoryLedger
	engine   *settlement.Engine
	sink     *storage.JsonlSink
	recorder recorder.Recorder
	pg       *postgres.Store
}

func newPipeline(ctx context.Context, cfg config.PipelineConfig, logger *zap.Logger) (*pipeline, error) {
	if cfg.In == "" {
		return nil, fmt.Errorf("input path is required")
	}

	store := state.NewStore(cfg.StateFile)
	s, ok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state file %s not found, run init first", cfg.StateFile)
	}

	ledger, err := s.SeedLedger()
	if err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	rec := recorder.Recorder(recorder.NewNoopRecorder())
	if cfg.SQLiteDB != "" {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.SQLiteDB)
		if err != nil {
			return nil, err
		}
		rec = sqlite
	}

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			rec.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}

	oracle := settlement.StaticOracle{Cap: cfg.MarketCap}
	engine := settlement.NewEngine(ledger, oracle, logger, func() int64 { return time.Now().Unix() })

	return &pipeline{
		store:    store,
		state:    s,
		ledger:   ledger,
		engine:   engine,
		sink:     storage.NewJsonlSink(cfg.Out, cfg.Errors),
		recorder: rec,
		pg:       pg,
	}, nil
}

func (p *pipeline) close() {
	_ = p.recorder.Close()
	if p.pg != nil {
		p.pg.Close()
	}
}

// commit writes the mutated ledger back into the state and saves the file.
func (p *pipeline) commit() error {
	p.state.CaptureLedger(p.ledger)
	if err := p.store.Save(p.state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
