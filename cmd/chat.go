package main

import (
	"context"
	"io"
	"messenger/internal/config"
	"messenger/internal/console"
	"messenger/internal/messenger"
	"messenger/pkg/logger"
	"messenger/pkg/metrics"
	"messenger/pkg/storage/memory"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setupMetrics creates the operation metrics recorder unless metrics are
// disabled, and returns it along with a cleanup function.
func setupMetrics(ctx context.Context, cfg *config.Config) (*metrics.Recorder, func(ctx context.Context)) {
	if cfg.Metrics.Disabled {
		return nil, func(context.Context) {}
	}

	recorder, err := metrics.New()
	if err != nil {
		logger.Fatal(ctx, "could not create metrics recorder", zap.Error(err))
	}

	return recorder, func(ctx context.Context) {
		if err := recorder.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "could not shutdown metrics recorder", zap.Error(err))
		}
	}
}

// getStorage creates the in-memory storage and returns it along with a
// cleanup function.
func getStorage(ctx context.Context) (*memory.Memory, func()) {
	strg := memory.New()

	return strg, func() {
		logger.Debug(ctx, "closing storage...")
		if err := strg.Close(); err != nil {
			logger.Warn(ctx, "could not close storage", zap.Error(err))
		}
	}
}

func chatCommand(cfg *config.Config) *cobra.Command {
	var (
		seed   bool
		noSeed bool
		script string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Starts the interactive messenger console",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			recorder, stopMetrics := setupMetrics(ctx, cfg)
			strg, closeStrg := getStorage(ctx)
			defer closeStrg()

			m := messenger.New(strg, messenger.NewOptions(cfg, recorder))

			if seed && !noSeed {
				if _, err := m.SeedDemo(ctx); err != nil {
					logger.Error(ctx, "could not seed demo data", zap.Error(err))
				}
			}

			var in io.Reader = os.Stdin
			if script != "" {
				f, err := os.Open(script)
				if err != nil {
					return errors.Wrap(err, "open script")
				}
				defer f.Close() //nolint: errcheck
				in = f
			}

			c := console.New(m, console.Options{
				Prompt:     cfg.Console.Prompt,
				TimeFormat: cfg.Console.TimeFormat,
				Location:   loc,
				Metrics:    recorder,
				HidePrompt: script != "",
			})

			runErr := c.Run(ctx, in, cmd.OutOrStdout())
			if errors.Is(runErr, context.Canceled) {
				logger.Info(ctx, "interrupted, shutting down...")
				runErr = nil
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopMetrics(shutdownCtx)

			return runErr
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", !cfg.Console.SkipDemoSeed, "Seed demo users and messages into the empty store")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Start with an empty store")
	cmd.MarkFlagsMutuallyExclusive("seed", "no-seed")
	cmd.Flags().StringVar(&script, "script", "", "Read commands from this file instead of stdin")

	return cmd
}
