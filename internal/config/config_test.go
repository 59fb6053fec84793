package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func pipelineFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.String("state-file", "", "")
	flags.String("out", "", "")
	flags.String("errors", "", "")
	flags.Uint64("market-cap", 0, "")
	flags.String("pg-dsn", "", "")
	flags.String("sqlite-db", "", "")
	flags.String("log-level", "", "")
	return flags
}

func TestLoadPipelineDefaults(t *testing.T) {
	cfg, err := LoadPipeline("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StateFile != "./data/state.json" {
		t.Fatalf("default state file wrong: %q", cfg.StateFile)
	}
	if cfg.Out != "./data/events.jsonl" || cfg.Errors != "./data/rejects.jsonl" {
		t.Fatalf("default sinks wrong: %q %q", cfg.Out, cfg.Errors)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("default log level wrong: %q", cfg.LogLevel)
	}
}

func TestLoadPipelineFlagsOverrideDefaults(t *testing.T) {
	flags := pipelineFlags()
	if err := flags.Parse([]string{"--in", "intents.jsonl", "--market-cap", "5000"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadPipeline("", flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.In != "intents.jsonl" {
		t.Fatalf("flag not applied: %q", cfg.In)
	}
	if cfg.MarketCap != 5000 {
		t.Fatalf("market cap not applied: %d", cfg.MarketCap)
	}
}

func TestLoadStreamDefaults(t *testing.T) {
	cfg, err := LoadStream("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cron == "" {
		t.Fatalf("cron default missing")
	}
	if cfg.RunOnStart {
		t.Fatalf("run-on-start must default to false")
	}
	if cfg.PGDSN != "" {
		t.Fatalf("pg-dsn must default to empty, got %q", cfg.PGDSN)
	}
}

func TestLoadStreamFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cron", "", "")
	flags.String("pg-dsn", "", "")
	if err := flags.Parse([]string{"--cron", "0 0 * * * *", "--pg-dsn", "postgres://localhost/settle"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadStream("", flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cron != "0 0 * * * *" {
		t.Fatalf("cron flag not applied: %q", cfg.Cron)
	}
	if cfg.PGDSN != "postgres://localhost/settle" {
		t.Fatalf("pg-dsn flag not applied: %q", cfg.PGDSN)
	}
}
