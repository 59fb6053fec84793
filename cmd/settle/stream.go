package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curveSettle/internal/config"
	"curveSettle/internal/recorder"
	"curveSettle/internal/scheduler"
	"curveSettle/internal/settlement"
	"curveSettle/internal/state"
	"curveSettle/internal/storage"
	"curveSettle/internal/storage/postgres"
)

func runStream(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStream(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := recorder.Recorder(recorder.NewNoopRecorder())
	if cfg.SQLiteDB != "" {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.SQLiteDB)
		if err != nil {
			return err
		}
		rec = sqlite
	}
	defer rec.Close()

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
	}

	store := state.NewStore(cfg.StateFile)
	sink := storage.NewJsonlSink(cfg.Out, cfg.Errors)

	daemon := scheduler.NewDaemon(ctx, store, sink, rec, settlement.StaticOracle{}, pg, logger)
	if err := daemon.Register(cfg.Cron); err != nil {
		return err
	}

	logger.Info("stream daemon configured",
		zap.String("state_file", cfg.StateFile),
		zap.String("cron", cfg.Cron),
		zap.Bool("run_on_start", cfg.RunOnStart),
	)

	if cfg.RunOnStart {
		if err := daemon.Tick(); err != nil {
			return err
		}
	}

	daemon.Start()
	<-ctx.Done()
	daemon.Stop()

	return nil
}
