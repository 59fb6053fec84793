package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"curveSettle/internal/curve"
	"curveSettle/internal/custody"
	"curveSettle/internal/stream"
	"curveSettle/internal/vesting"
)

// State is the full ledger snapshot the pipeline operates on: every pool,
// schedule, vault and stream keyed by its identifier, plus the custody account
// balances keyed by hex address.
type State struct {
	Pools     map[string]*curve.Curve      `json:"pools"`
	Schedules map[string]*vesting.Schedule `json:"schedules"`
	Vaults    map[string]*vesting.Vault    `json:"vaults"`
	Streams   map[string]*stream.Stream    `json:"streams"`
	Accounts  map[string]uint64            `json:"accounts"`
	UpdatedAt string                       `json:"updated_at"`
}

func New() *State {
	return &State{
		Pools:     make(map[string]*curve.Curve),
		Schedules: make(map[string]*vesting.Schedule),
		Vaults:    make(map[string]*vesting.Vault),
		Streams:   make(map[string]*stream.Stream),
		Accounts:  make(map[string]uint64),
	}
}

// SeedLedger loads the account balances into a fresh in-memory ledger.
func (s *State) SeedLedger() (*custody.MemoryLedger, error) {
	ledger := custody.NewMemoryLedger()
	for raw, balance := range s.Accounts {
		addr, err := custody.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", raw, err)
		}
		ledger.Seed(addr, balance)
	}
	return ledger, nil
}

// CaptureLedger writes the ledger balances back into the state, replacing the
// previous account set.
func (s *State) CaptureLedger(ledger *custody.MemoryLedger) {
	s.Accounts = ledger.Snapshot()
}

// Store persists states to disk.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. The second return is false when no file exists
// yet.
func (st *Store) Load() (*State, bool, error) {
	stat, err := os.Stat(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return nil, false, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(st.path)
	if err != nil {
		return nil, false, fmt.Errorf("read state: %w", err)
	}

	s := New()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, false, fmt.Errorf("parse state: %w", err)
	}

	return s, true, nil
}

// Save writes the state atomically via a temp file and rename, so a crash
// mid-write never leaves a truncated state behind.
func (st *Store) Save(s *State) error {
	dir := filepath.Dir(st.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := st.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, st.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}

	return nil
}
