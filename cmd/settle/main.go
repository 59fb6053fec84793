package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "settle",
		Short:        "Token sale settlement engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Build the initial state file from a genesis definition",
		RunE:  runInit,
	}

	initCmd.Flags().String("genesis", "", "genesis YAML path")
	initCmd.Flags().String("state-file", "./data/state.json", "state file path")
	initCmd.Flags().Bool("force", false, "overwrite an existing state file")
	initCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(initCmd)

	tradeCmd := &cobra.Command{
		Use:   "trade",
		Short: "Settle buy/sell intents against the state file",
		RunE:  runTrade,
	}

	addPipelineFlags(tradeCmd)
	root.AddCommand(tradeCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Settle vesting claims and vault lock/unlock intents",
		RunE:  runClaim,
	}

	addPipelineFlags(claimCmd)
	root.AddCommand(claimCmd)

	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Run the stream checkpoint daemon",
		RunE:  runStream,
	}

	streamCmd.Flags().String("state-file", "./data/state.json", "state file path")
	streamCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	streamCmd.Flags().String("errors", "./data/rejects.jsonl", "rejected intents JSONL")
	streamCmd.Flags().String("cron", "0 * * * * *", "checkpoint cron expression (with seconds)")
	streamCmd.Flags().Bool("run-on-start", false, "checkpoint once immediately on startup")
	streamCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots")
	streamCmd.Flags().String("sqlite-db", "", "optional SQLite history database path")
	streamCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(streamCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("in", "", "input intents JSONL")
	cmd.Flags().String("state-file", "./data/state.json", "state file path")
	cmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	cmd.Flags().String("errors", "./data/rejects.jsonl", "rejected intents JSONL")
	cmd.Flags().Uint64("market-cap", 0, "current market cap for claim gating")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots")
	cmd.Flags().String("sqlite-db", "", "optional SQLite history database path")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
