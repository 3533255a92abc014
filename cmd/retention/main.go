package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/retention/reconcile"
)

var (
	configFile string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "retention",
		Short:         "Keep chat message visibility in line with per-conversation retention counts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to retention config JSON file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging to stderr")

	root.AddCommand(newSimulateCmd(), newServeCmd(), newInspectCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig returns the file config merged over defaults, or the defaults
// when no file was given.
func loadConfig() (*reconcile.Config, error) {
	if configFile == "" {
		cfg := reconcile.DefaultConfig()
		return &cfg, nil
	}
	return reconcile.LoadConfig(configFile)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
