package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"curveSettle/internal/model"
)

// SQLiteRecorder persists settlement history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trade_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			actor        TEXT,
			pool_id      TEXT,
			side         TEXT,
			base_amount  INTEGER,
			quote_amount INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_ts ON trade_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS claim_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			action      TEXT,
			beneficiary TEXT,
			schedule_id TEXT,
			vault_id    TEXT,
			amount      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claim_ts ON claim_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS stream_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			beneficiary TEXT,
			stream_id   TEXT,
			amount      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stream_ts ON stream_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrade(evt *model.TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trade_events
		(timestamp, actor, pool_id, side, base_amount, quote_amount)
		VALUES (?,?,?,?,?,?)`,
		evt.Timestamp, evt.Actor, evt.Pool, string(evt.Side),
		int64(evt.BaseAmount), int64(evt.QuoteAmount),
	)
	return err
}

func (r *SQLiteRecorder) RecordClaim(evt *model.ClaimEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO claim_events
		(timestamp, action, beneficiary, schedule_id, vault_id, amount)
		VALUES (?,?,?,?,?,?)`,
		evt.Timestamp, string(evt.Action), evt.Beneficiary,
		evt.Schedule, evt.Vault, int64(evt.Amount),
	)
	return err
}

func (r *SQLiteRecorder) RecordStream(evt *model.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO stream_events
		(timestamp, beneficiary, stream_id, amount)
		VALUES (?,?,?,?)`,
		evt.Timestamp, evt.Beneficiary, evt.Stream, int64(evt.Amount),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
