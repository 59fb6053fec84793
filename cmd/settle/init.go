package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curveSettle/internal/config"
	"curveSettle/internal/state"
)

func runInit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Genesis == "" {
		return fmt.Errorf("genesis path is required")
	}

	if !cfg.Force {
		if _, err := os.Stat(cfg.StateFile); err == nil {
			return fmt.Errorf("state file %s already exists, use --force to overwrite", cfg.StateFile)
		}
	}

	genesis, err := state.LoadGenesis(cfg.Genesis)
	if err != nil {
		return err
	}

	s, err := state.FromGenesis(genesis)
	if err != nil {
		return fmt.Errorf("build state: %w", err)
	}

	store := state.NewStore(cfg.StateFile)
	if err := store.Save(s); err != nil {
		return err
	}

	logger.Info("state initialized",
		zap.String("genesis", cfg.Genesis),
		zap.String("state_file", cfg.StateFile),
		zap.Int("pools", len(s.Pools)),
		zap.Int("schedules", len(s.Schedules)),
		zap.Int("vaults", len(s.Vaults)),
		zap.Int("streams", len(s.Streams)),
		zap.Int("accounts", len(s.Accounts)),
	)

	return nil
}
