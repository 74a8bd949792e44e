package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fahmaliyi/pinguard/cli"
	"github.com/fahmaliyi/pinguard/config"
	"github.com/spf13/cobra"
)

const logFileName = "pinguard.log"

var (
	cfgFile string
	verbose bool

	cfg *config.Config
)

// rootCmd is the application entry point. Without a subcommand it starts
// the TUI.
var rootCmd = &cobra.Command{
	Use:   "pinguard",
	Short: "Keep your balance hidden until you unlock it",
	Long: `PinGuard shows account transactions with amounts and merchants masked.
Revealing them takes a biometric match or your 4-digit PIN; hiding them
never asks for anything. The PIN lives in an encrypted local store.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := openLogFile()
		if err != nil {
			return err
		}
		defer f.Close()
		// The TUI owns the terminal, so logs go to a file.
		logger := newLogger(f)

		return withApp(cmd.Context(), logger, func(ctx context.Context, app *cli.App) error {
			return cli.RunTUI(ctx, app)
		})
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pinguard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(shellCmd, pinCmd)
}

// initConfig loads configuration from the config file and environment and
// installs the default stderr logger.
func initConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		c.LogLevel = "debug"
	}
	cfg = c
	slog.SetDefault(newLogger(os.Stderr))
	return nil
}

func newLogger(w io.Writer) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}

	// Using TextHandler for CLI friendliness
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func openLogFile() (*os.File, error) {
	if err := cli.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(cfg.Path(logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, logger *slog.Logger, fn func(context.Context, *cli.App) error) error {
	app, err := cli.OpenApp(cfg, logger)
	if err != nil {
		logger.Error("failed to open app", "error", err)
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()
	return fn(ctx, app)
}
