package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunnryd/airassist/pkg/airassist"
	"github.com/harunnryd/airassist/pkg/runner"
	"github.com/harunnryd/airassist/pkg/session"
	"github.com/harunnryd/airassist/pkg/transcript"
)

var (
	audioPath string
	noBanner  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a voice session until input ends or the process is interrupted",
	Long: `Start the session: restore the persisted provider, resume its connection,
and route every finalized transcript from the capture source.

With the default "lines" capture every stdin line is one command. With
capture.provider "deepgram", --audio names a raw audio file ("-" for stdin).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, closeInput, err := captureInput()
		if err != nil {
			return err
		}
		defer closeInput()

		out := cmd.OutOrStdout()
		a, err := airassist.New(airassist.Options{
			Config: cfg,
			Input:  input,
			Logger: logger,
			OnMessage: func(m transcript.Message) {
				if !m.Streaming {
					fmt.Fprintln(out, renderMessage(m))
				}
			},
			OnState: func(c session.StateChange) {
				fmt.Fprintln(out, renderStateChange(c))
			},
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var banner io.Writer
		if !noBanner {
			banner = out
		}
		lr := runner.NewLifecycleRunner(runner.Options{
			Drainer:      a,
			DrainTimeout: 10 * time.Second,
			Banner:       banner,
			BannerColor:  true,
			Hooks: runner.Hooks{
				OnStart: func(ctx context.Context) error {
					if err := a.Start(ctx); err != nil {
						return err
					}
					logger.Info("session_started", slog.String("trace_id", a.TraceID()))
					go func() {
						defer cancel()
						if err := a.Run(ctx); err != nil {
							logger.Error("capture_failed", slog.String("error", err.Error()))
						}
					}()
					return nil
				},
				OnStop: func() {
					logger.Info("session_stopped", slog.String("trace_id", a.TraceID()))
				},
			},
		})
		return lr.Run(runCtx)
	},
}

func captureInput() (io.Reader, func(), error) {
	if audioPath == "" || audioPath == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open audio: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	runCmd.Flags().StringVar(&audioPath, "audio", "", "Raw audio file for the deepgram capture source")
	runCmd.Flags().BoolVar(&noBanner, "no-banner", false, "Skip the startup banner")
}
