package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SETTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

// InitConfig holds configuration for the init command.
type InitConfig struct {
	Genesis   string
	StateFile string
	Force     bool
	LogLevel  string
}

// LoadInit merges config file, environment variables, and flags into InitConfig.
func LoadInit(cfgFile string, flags *pflag.FlagSet) (InitConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"state-file": "./data/state.json",
		"log-level":  "info",
	})
	if err != nil {
		return InitConfig{}, err
	}

	cfg := InitConfig{
		Genesis:   v.GetString("genesis"),
		StateFile: v.GetString("state-file"),
		Force:     v.GetBool("force"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}

// PipelineConfig holds configuration shared by the trade and claim commands.
type PipelineConfig struct {
	In        string
	StateFile string
	Out       string
	Errors    string
	MarketCap uint64
	PGDSN     string
	SQLiteDB  string
	LogLevel  string
}

// LoadPipeline merges config file, environment variables, and flags into
// PipelineConfig.
func LoadPipeline(cfgFile string, flags *pflag.FlagSet) (PipelineConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"state-file": "./data/state.json",
		"out":        "./data/events.jsonl",
		"errors":     "./data/rejects.jsonl",
		"log-level":  "info",
	})
	if err != nil {
		return PipelineConfig{}, err
	}

	cfg := PipelineConfig{
		In:        v.GetString("in"),
		StateFile: v.GetString("state-file"),
		Out:       v.GetString("out"),
		Errors:    v.GetString("errors"),
		MarketCap: v.GetUint64("market-cap"),
		PGDSN:     v.GetString("pg-dsn"),
		SQLiteDB:  v.GetString("sqlite-db"),
		LogLevel:  v.GetString("log-level"),
	}

	return cfg, nil
}

// StreamConfig holds configuration for the stream daemon.
type StreamConfig struct {
	StateFile  string
	Out        string
	Errors     string
	Cron       string
	RunOnStart bool
	PGDSN      string
	SQLiteDB   string
	LogLevel   string
}

// LoadStream merges config file, environment variables, and flags into
// StreamConfig.
func LoadStream(cfgFile string, flags *pflag.FlagSet) (StreamConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"state-file": "./data/state.json",
		"out":        "./data/events.jsonl",
		"errors":     "./data/rejects.jsonl",
		"cron":       "0 * * * * *",
		"log-level":  "info",
	})
	if err != nil {
		return StreamConfig{}, err
	}

	cfg := StreamConfig{
		StateFile:  v.GetString("state-file"),
		Out:        v.GetString("out"),
		Errors:     v.GetString("errors"),
		Cron:       v.GetString("cron"),
		RunOnStart: v.GetBool("run-on-start"),
		PGDSN:      v.GetString("pg-dsn"),
		SQLiteDB:   v.GetString("sqlite-db"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}
