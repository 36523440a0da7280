package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harunnryd/airassist/pkg/airassist"
	"github.com/harunnryd/airassist/pkg/logging"
	"github.com/harunnryd/airassist/pkg/runner"
	"github.com/harunnryd/airassist/pkg/store/sqlite"
)

var (
	configPath string
	verbose    bool

	cfg    airassist.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "airassist",
	Short: "Voice assistant session core",
	Long: `Air Assist routes spoken or typed commands to a realtime streaming backend
or a webhook backend, keeps exactly one of them active, and persists the
session so it resumes after a restart.

Quick Start:
  airassist run                            # read commands from stdin
  airassist send "turn on the lights"      # route a single command
  airassist provider use realtime          # switch the active provider
  airassist transcript export --format yaml`,
	Version:       runner.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := airassist.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = logging.InitLogger(logging.LogConfig{Level: level, Format: cfg.LogFormat})
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(runCmd, sendCmd, providerCmd, credentialCmd, transcriptCmd)
}

func openStore() (*sqlite.Store, error) {
	st, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return st, nil
}

// newAssistant builds an assistant for a short-lived command. Reconciliation stays off.
func newAssistant(opts airassist.Options) (*airassist.Assistant, error) {
	opts.Config = cfg
	opts.Config.Session.DisableReconcile = true
	opts.Logger = logger
	return airassist.New(opts)
}
