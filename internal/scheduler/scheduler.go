package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"curveSettle/internal/model"
	"curveSettle/internal/recorder"
	"curveSettle/internal/settlement"
	"curveSettle/internal/state"
	"curveSettle/internal/storage"
	"curveSettle/internal/storage/postgres"
)

// Daemon checkpoints every stream schedule on a cron cadence. Each tick loads
// the state file, commits the accruals through the settlement engine, and
// saves the state back, so a tick is all-or-nothing from the file's point of
// view. Ticks are serialized; the state file never has two writers.
type Daemon struct {
	ctx      context.Context
	cron     *cron.Cron
	store    *state.Store
	sink     storage.EventSink
	recorder recorder.Recorder
	oracle   settlement.Oracle
	pg       *postgres.Store
	logger   *zap.Logger
	now      func() int64

	mu sync.Mutex
}

func NewDaemon(ctx context.Context, store *state.Store, sink storage.EventSink, rec recorder.Recorder, oracle settlement.Oracle, pg *postgres.Store, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Daemon{
		ctx:      ctx,
		cron:     cron.New(cron.WithSeconds()),
		store:    store,
		sink:     sink,
		recorder: rec,
		oracle:   oracle,
		pg:       pg,
		logger:   logger,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Register schedules the checkpoint tick under a cron expression.
func (d *Daemon) Register(spec string) error {
	if _, err := d.cron.AddFunc(spec, func() {
		if err := d.Tick(); err != nil {
			d.logger.Error("stream tick failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("register stream tick: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (d *Daemon) Start() {
	d.cron.Start()
	d.logger.Info("stream daemon started")
}

// Stop stops the cron scheduler and waits for a running tick to finish.
func (d *Daemon) Stop() {
	<-d.cron.Stop().Done()
	d.logger.Info("stream daemon stopped")
}

// Tick runs one checkpoint pass over all streams. Exported for run-on-start
// and manual triggering.
func (d *Daemon) Tick() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok, err := d.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state file not found, run init first")
	}

	ledger, err := s.SeedLedger()
	if err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	engine := settlement.NewEngine(ledger, d.oracle, d.logger, d.now)

	ids := make([]string, 0, len(s.Streams))
	for id := range s.Streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var events []model.StreamEvent
	for _, id := range ids {
		event, err := engine.CheckpointStream(s.Streams[id], id)
		if err != nil {
			d.logger.Error("checkpoint stream", zap.String("stream", id), zap.Error(err))
			continue
		}
		if event.Amount == 0 {
			continue
		}
		events = append(events, event)
		if err := d.recorder.RecordStream(&event); err != nil {
			d.logger.Error("record stream event", zap.String("stream", id), zap.Error(err))
		}
	}

	if err := d.sink.PutStreamEvents(events); err != nil {
		return fmt.Errorf("write stream events: %w", err)
	}

	s.CaptureLedger(ledger)
	if err := d.store.Save(s); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if d.pg != nil {
		if err := d.pg.UpsertStreams(d.ctx, s.Streams); err != nil {
			return fmt.Errorf("snapshot streams: %w", err)
		}
		if err := d.pg.InsertStreamEvents(d.ctx, events); err != nil {
			return fmt.Errorf("insert stream events: %w", err)
		}
	}

	d.logger.Info("stream tick complete",
		zap.Int("streams", len(ids)),
		zap.Int("events", len(events)),
	)
	return nil
}
