package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/slack-digest/internal/config"
)

var (
	runOnce   bool
	runDryRun bool
	runHours  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, summarize and deliver the digest",
	Long: `Run the digest pipeline.

By default the command stays in the foreground and runs on the configured cron
schedule (default "0 8 * * *"). Use --once to run a single digest and exit.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run the pipeline once and exit")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the digest to stdout instead of sending a DM")
	runCmd.Flags().IntVar(&runHours, "hours", 0, "lookback window in hours (overrides lookback_hours)")
	rootCmd.AddCommand(runCmd)
}

// checkHours validates --hours; zero means "use lookback_hours".
func checkHours(h int) error {
	if h < 0 {
		return fmt.Errorf("--hours must be positive, got %d", h)
	}
	if h > config.MaxLookbackHours {
		return fmt.Errorf("--hours must be at most %d, got %d", config.MaxLookbackHours, h)
	}
	return nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	if err := checkHours(runHours); err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if runHours > 0 {
		cfg.LookbackHours = runHours
	}
	if err := cfg.ValidateRun(); err != nil {
		return err
	}
	if f := cfg.ConfigFile(); f != "" {
		log.Info("Loaded config", zap.String("path", f))
	}

	a, err := newApp(cfg, log, runDryRun)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start web server if configured
	if a.web != nil {
		if err := a.web.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.web.Shutdown(shutdownCtx); err != nil {
				log.Warn("Web server shutdown error", zap.Error(err))
			}
		}()
	}

	// Single-run mode: run the pipeline once and exit
	if runOnce {
		report := a.runner.Run(ctx)
		log.Info("Done",
			zap.String("run_id", report.RunID),
			zap.Int("count", report.MessageCount))
		return nil
	}

	if cfg.RunOnStart {
		log.Info("Running initial digest")
		a.runner.Run(ctx)
	}

	cl := cronLogger{log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() {
		log.Info("Cron triggered, running digest")
		a.runner.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to set up cron schedule %q: %w", cfg.Schedule, err)
	}
	c.Start()
	log.Info("Scheduled digest", zap.String("schedule", cfg.Schedule))

	<-ctx.Done()
	log.Info("Shutting down")
	<-c.Stop().Done()
	log.Info("Shutdown complete")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
