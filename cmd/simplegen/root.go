package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"simplegen/internal/config"
)

// flags shared across subcommands via the persistent flag set.
var (
	flagConfig   string
	flagLogLevel string
)

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "simplegen",
		Short:         "Batch text generation and chat on local GGUF models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", envStr("SIMPLEGEN_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")

	root.AddCommand(buildServeCmd())
	root.AddCommand(buildRunCmd())
	root.AddCommand(buildChatCmd())
	root.AddCommand(buildModelsCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return buildRootCmd().Execute()
}

// newLogger builds a console zerolog logger at the configured level.
func newLogger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

// loadConfig reads the optional config file and fills in defaults.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if cfg.Addr == "" {
		cfg.Addr = envStr("SIMPLEGEN_ADDR", ":8080")
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = envStr("SIMPLEGEN_MODELS_DIR", "~/models/llm")
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
