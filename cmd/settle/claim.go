package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"curveSettle/internal/config"
	"curveSettle/internal/model"
	"curveSettle/internal/settlement"
)

func runClaim(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPipeline(cfgFile, cmd.Flags())
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

	pipe, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pipe.close()

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	logger.Info("claim start",
		zap.String("in", cfg.In),
		zap.String("state_file", cfg.StateFile),
		zap.String("out", cfg.Out),
		zap.Uint64("market_cap", cfg.MarketCap),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		events  []model.ClaimEvent
		rejects []model.RejectRecord
		line    uint64
	)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		line++

		var intent model.ClaimIntent
		if err := json.Unmarshal(raw, &intent); err != nil {
			rejects = append(rejects, rejectRecord(line, "claim", raw, err))
			continue
		}

		event, err := settleClaim(pipe, intent)
		if err != nil {
			rejects = append(rejects, rejectRecord(line, "claim", raw, err))
			continue
		}

		events = append(events, event)
		if err := pipe.recorder.RecordClaim(&event); err != nil {
			logger.Error("record claim", zap.Uint64("line", line), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := pipe.sink.PutClaimEvents(events); err != nil {
		return err
	}
	if err := pipe.sink.PutRejects(rejects); err != nil {
		return err
	}
	if err := pipe.commit(); err != nil {
		return err
	}

	if pipe.pg != nil {
		if err := pipe.pg.UpsertSchedules(ctx, pipe.state.Schedules); err != nil {
			return fmt.Errorf("snapshot schedules: %w", err)
		}
		if err := pipe.pg.InsertClaimEvents(ctx, events); err != nil {
			return fmt.Errorf("insert claim events: %w", err)
		}
	}

	logger.Info("claim complete",
		zap.Uint64("intents", line),
		zap.Int("settled", len(events)),
		zap.Int("rejected", len(rejects)),
	)

	return nil
}

func settleClaim(pipe *pipeline, intent model.ClaimIntent) (model.ClaimEvent, error) {
	switch intent.Action {
	case model.ActionClaim:
		sched, ok := pipe.state.Schedules[intent.Schedule]
		if !ok {
			return model.ClaimEvent{}, fmt.Errorf("%w: schedule %q", settlement.ErrUnknownEntity, intent.Schedule)
		}
		return pipe.engine.Claim(sched, intent)
	case model.ActionLock:
		vault, ok := pipe.state.Vaults[intent.Vault]
		if !ok {
			return model.ClaimEvent{}, fmt.Errorf("%w: vault %q", settlement.ErrUnknownEntity, intent.Vault)
		}
		return pipe.engine.LockVault(vault, intent)
	case model.ActionUnlock:
		vault, ok := pipe.state.Vaults[intent.Vault]
		if !ok {
			return model.ClaimEvent{}, fmt.Errorf("%w: vault %q", settlement.ErrUnknownEntity, intent.Vault)
		}
		return pipe.engine.UnlockVault(vault, intent)
	default:
		return model.ClaimEvent{}, fmt.Errorf("unknown claim action %q", intent.Action)
	}
}
