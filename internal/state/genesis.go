package state

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"curveSettle/internal/curve"
	"curveSettle/internal/custody"
	"curveSettle/internal/stream"
	"curveSettle/internal/vesting"
)

// Genesis is the YAML definition the init command turns into the first state
// file.
type Genesis struct {
	Accounts  []GenesisAccount  `yaml:"accounts"`
	Pools     []GenesisPool     `yaml:"pools"`
	Schedules []GenesisSchedule `yaml:"schedules"`
	Vaults    []GenesisVault    `yaml:"vaults"`
	Streams   []GenesisStream   `yaml:"streams"`
}

type GenesisAccount struct {
	Address string `yaml:"address"`
	Balance uint64 `yaml:"balance"`
}

type GenesisPool struct {
	ID           string `yaml:"id"`
	Kind         string `yaml:"kind"`
	VirtualBase  uint64 `yaml:"virtual_base"`
	VirtualQuote uint64 `yaml:"virtual_quote"`
	Slope        uint64 `yaml:"slope"`
	Exponent     uint64 `yaml:"exponent"`
	Midpoint     uint64 `yaml:"midpoint"`
	Creator      string `yaml:"creator"`
	BaseVault    string `yaml:"base_vault"`
	QuoteVault   string `yaml:"quote_vault"`
}

type GenesisSchedule struct {
	ID                 string             `yaml:"id"`
	Kind               string             `yaml:"kind"`
	StartTime          int64              `yaml:"start_time"`
	EndTime            int64              `yaml:"end_time"`
	CliffDuration      int64              `yaml:"cliff_duration"`
	TotalAmount        uint64             `yaml:"total_amount"`
	Milestones         []GenesisMilestone `yaml:"milestones"`
	Beneficiary        string             `yaml:"beneficiary"`
	Authority          string             `yaml:"authority"`
	EscrowVault        string             `yaml:"escrow_vault"`
	RequireEndOfPeriod bool               `yaml:"require_end_of_period"`
	TargetMarketCap    uint64             `yaml:"target_market_cap"`
}

type GenesisMilestone struct {
	UnlockTime int64  `yaml:"unlock_time"`
	Percentage uint64 `yaml:"percentage"`
}

type GenesisVault struct {
	ID          string `yaml:"id"`
	Owner       string `yaml:"owner"`
	EscrowVault string `yaml:"escrow_vault"`
}

type GenesisStream struct {
	ID          string `yaml:"id"`
	Kind        string `yaml:"kind"`
	Rate        uint64 `yaml:"rate"`
	Interval    int64  `yaml:"interval"`
	StartTime   int64  `yaml:"start_time"`
	Beneficiary string `yaml:"beneficiary"`
	EscrowVault string `yaml:"escrow_vault"`
}

// LoadGenesis parses a genesis YAML file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	return &g, nil
}

// FromGenesis builds a validated state through the domain constructors. Vesting
// windows are held to the schedule duration bounds here, at definition time.
func FromGenesis(g *Genesis) (*State, error) {
	s := New()

	for _, account := range g.Accounts {
		addr, err := custody.ParseAddress(account.Address)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", account.Address, err)
		}
		hex := addr.Hex()
		if _, ok := s.Accounts[hex]; ok {
			return nil, fmt.Errorf("account %s defined twice", hex)
		}
		s.Accounts[hex] = account.Balance
	}

	for _, def := range g.Pools {
		if def.ID == "" {
			return nil, fmt.Errorf("pool with empty id")
		}
		if _, ok := s.Pools[def.ID]; ok {
			return nil, fmt.Errorf("pool %q defined twice", def.ID)
		}
		pool, err := curve.New(curve.Kind(def.Kind), def.VirtualBase, def.VirtualQuote,
			[3]uint64{def.Slope, def.Exponent, def.Midpoint})
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", def.ID, err)
		}
		for _, raw := range []string{def.Creator, def.BaseVault, def.QuoteVault} {
			if _, err := custody.ParseAddress(raw); err != nil {
				return nil, fmt.Errorf("pool %q: %w", def.ID, err)
			}
		}
		pool.Creator = def.Creator
		pool.BaseVault = def.BaseVault
		pool.QuoteVault = def.QuoteVault
		s.Pools[def.ID] = pool
	}

	for _, def := range g.Schedules {
		if def.ID == "" {
			return nil, fmt.Errorf("schedule with empty id")
		}
		if _, ok := s.Schedules[def.ID]; ok {
			return nil, fmt.Errorf("schedule %q defined twice", def.ID)
		}
		duration := def.EndTime - def.StartTime
		if duration < vesting.MinVestingPeriod || duration > vesting.MaxVestingPeriod {
			return nil, fmt.Errorf("schedule %q: %w: duration %ds outside allowed window",
				def.ID, vesting.ErrInvalidTimeParameters, duration)
		}
		milestones := make([]vesting.Milestone, 0, len(def.Milestones))
		for _, m := range def.Milestones {
			milestones = append(milestones, vesting.Milestone{
				UnlockTime: m.UnlockTime,
				Percentage: m.Percentage,
			})
		}
		if len(milestones) == 0 {
			milestones = nil
		}
		sched, err := vesting.NewSchedule(vesting.Kind(def.Kind), def.StartTime, def.EndTime,
			def.CliffDuration, def.TotalAmount, milestones)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", def.ID, err)
		}
		for _, raw := range []string{def.Beneficiary, def.Authority, def.EscrowVault} {
			if _, err := custody.ParseAddress(raw); err != nil {
				return nil, fmt.Errorf("schedule %q: %w", def.ID, err)
			}
		}
		sched.Beneficiary = def.Beneficiary
		sched.Authority = def.Authority
		sched.EscrowVault = def.EscrowVault
		sched.RequireEndOfPeriod = def.RequireEndOfPeriod
		sched.TargetMarketCap = def.TargetMarketCap
		s.Schedules[def.ID] = sched
	}

	for _, def := range g.Vaults {
		if def.ID == "" {
			return nil, fmt.Errorf("vault with empty id")
		}
		if _, ok := s.Vaults[def.ID]; ok {
			return nil, fmt.Errorf("vault %q defined twice", def.ID)
		}
		for _, raw := range []string{def.Owner, def.EscrowVault} {
			if _, err := custody.ParseAddress(raw); err != nil {
				return nil, fmt.Errorf("vault %q: %w", def.ID, err)
			}
		}
		s.Vaults[def.ID] = &vesting.Vault{
			Owner:       def.Owner,
			EscrowVault: def.EscrowVault,
		}
	}

	for _, def := range g.Streams {
		if def.ID == "" {
			return nil, fmt.Errorf("stream with empty id")
		}
		if _, ok := s.Streams[def.ID]; ok {
			return nil, fmt.Errorf("stream %q defined twice", def.ID)
		}
		st, err := stream.New(stream.Kind(def.Kind), def.Rate, def.Interval, def.StartTime)
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", def.ID, err)
		}
		for _, raw := range []string{def.Beneficiary, def.EscrowVault} {
			if _, err := custody.ParseAddress(raw); err != nil {
				return nil, fmt.Errorf("stream %q: %w", def.ID, err)
			}
		}
		st.Beneficiary = def.Beneficiary
		st.EscrowVault = def.EscrowVault
		s.Streams[def.ID] = st
	}

	return s, nil
}
