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

func runTrade(cmd *cobra.Command, _ []string) error {
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

	logger.Info("trade start",
		zap.String("in", cfg.In),
		zap.String("state_file", cfg.StateFile),
		zap.String("out", cfg.Out),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		events  []model.TradeEvent
		rejects []model.RejectRecord
		line    uint64
	)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		line++

		var intent model.TradeIntent
		if err := json.Unmarshal(raw, &intent); err != nil {
			rejects = append(rejects, rejectRecord(line, "trade", raw, err))
			continue
		}

		event, err := settleTrade(pipe, intent)
		if err != nil {
			rejects = append(rejects, rejectRecord(line, "trade", raw, err))
			continue
		}

		events = append(events, event)
		if err := pipe.recorder.RecordTrade(&event); err != nil {
			logger.Error("record trade", zap.Uint64("line", line), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	if err := pipe.sink.PutTradeEvents(events); err != nil {
		return err
	}
	if err := pipe.sink.PutRejects(rejects); err != nil {
		return err
	}
	if err := pipe.commit(); err != nil {
		return err
	}

	if pipe.pg != nil {
		if err := pipe.pg.UpsertPools(ctx, pipe.state.Pools); err != nil {
			return fmt.Errorf("snapshot pools: %w", err)
		}
		if err := pipe.pg.InsertTradeEvents(ctx, events); err != nil {
			return fmt.Errorf("insert trade events: %w", err)
		}
	}

	logger.Info("trade complete",
		zap.Uint64("intents", line),
		zap.Int("settled", len(events)),
		zap.Int("rejected", len(rejects)),
	)

	return nil
}

func settleTrade(pipe *pipeline, intent model.TradeIntent) (model.TradeEvent, error) {
	pool, ok := pipe.state.Pools[intent.Pool]
	if !ok {
		return model.TradeEvent{}, fmt.Errorf("%w: pool %q", settlement.ErrUnknownEntity, intent.Pool)
	}

	switch intent.Side {
	case model.SideBuy:
		return pipe.engine.Buy(pool, intent)
	case model.SideSell:
		return pipe.engine.Sell(pool, intent)
	default:
		return model.TradeEvent{}, fmt.Errorf("unknown trade side %q", intent.Side)
	}
}

func rejectRecord(line uint64, kind string, input []byte, err error) model.RejectRecord {
	return model.RejectRecord{
		Line:  line,
		Kind:  kind,
		Input: string(input),
		Error: err.Error(),
	}
}
