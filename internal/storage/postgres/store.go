package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"curveSettle/internal/curve"
	"curveSettle/internal/model"
	"curveSettle/internal/stream"
	"curveSettle/internal/vesting"
)

// Store provides Postgres persistence for settlement snapshots and events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool reserve snapshots keyed by pool id.
func (s *Store) UpsertPools(ctx context.Context, pools map[string]*curve.Curve) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for id, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, kind, virtual_base, virtual_quote, real_base, real_quote,
				initial_virtual_quote, slope, exponent, midpoint,
				creator, base_vault, quote_vault, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				real_base = EXCLUDED.real_base,
				real_quote = EXCLUDED.real_quote,
				virtual_base = EXCLUDED.virtual_base,
				virtual_quote = EXCLUDED.virtual_quote,
				updated_at = now()
		`,
			id,
			string(pool.Kind),
			int64(pool.VirtualBase),
			int64(pool.VirtualQuote),
			int64(pool.RealBase),
			int64(pool.RealQuote),
			int64(pool.InitialVirtualQuote),
			int64(pool.ShapeParams[0]),
			int64(pool.ShapeParams[1]),
			int64(pool.ShapeParams[2]),
			pool.Creator,
			pool.BaseVault,
			pool.QuoteVault,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSchedules inserts or updates vesting release snapshots keyed by
// schedule id.
func (s *Store) UpsertSchedules(ctx context.Context, schedules map[string]*vesting.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for id, sched := range schedules {
		batch.Queue(`
			INSERT INTO vesting_schedules (
				schedule_id, kind, start_time, end_time, cliff_duration,
				total_amount, released_amount, beneficiary, authority, escrow_vault,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
			ON CONFLICT (schedule_id)
			DO UPDATE SET
				released_amount = EXCLUDED.released_amount,
				updated_at = now()
		`,
			id,
			string(sched.Kind),
			sched.StartTime,
			sched.EndTime,
			sched.CliffDuration,
			int64(sched.TotalAmount),
			int64(sched.ReleasedAmount),
			sched.Beneficiary,
			sched.Authority,
			sched.EscrowVault,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range schedules {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertStreams inserts or updates stream checkpoint snapshots keyed by
// stream id.
func (s *Store) UpsertStreams(ctx context.Context, streams map[string]*stream.Stream) error {
	if len(streams) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for id, st := range streams {
		batch.Queue(`
			INSERT INTO streams (
				stream_id, kind, rate, release_interval, last_update_time,
				total_streamed, beneficiary, escrow_vault, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
			ON CONFLICT (stream_id)
			DO UPDATE SET
				last_update_time = EXCLUDED.last_update_time,
				total_streamed = EXCLUDED.total_streamed,
				updated_at = now()
		`,
			id,
			string(st.Kind),
			int64(st.Rate),
			st.Interval,
			st.LastUpdateTime,
			int64(st.TotalStreamed),
			st.Beneficiary,
			st.EscrowVault,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range streams {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertTradeEvents appends trade events.
func (s *Store) InsertTradeEvents(ctx context.Context, events []model.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO trade_events (actor, pool_id, side, base_amount, quote_amount, event_ts)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			e.Actor,
			e.Pool,
			string(e.Side),
			int64(e.BaseAmount),
			int64(e.QuoteAmount),
			e.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertClaimEvents appends claim, lock and unlock events.
func (s *Store) InsertClaimEvents(ctx context.Context, events []model.ClaimEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO claim_events (action, beneficiary, schedule_id, vault_id, amount, event_ts)
			VALUES ($1,$2,$3,$4,$5,$6)
		`,
			string(e.Action),
			e.Beneficiary,
			e.Schedule,
			e.Vault,
			int64(e.Amount),
			e.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertStreamEvents appends stream checkpoint events.
func (s *Store) InsertStreamEvents(ctx context.Context, events []model.StreamEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO stream_events (beneficiary, stream_id, amount, event_ts)
			VALUES ($1,$2,$3,$4)
		`,
			e.Beneficiary,
			e.Stream,
			int64(e.Amount),
			e.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
