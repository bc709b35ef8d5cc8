// Command omencreator creates prediction markets on an Omenium deployment.
// Without a subcommand it opens the interactive terminal form; "serve" runs
// the same pipeline behind an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pydea-rs/omen-creator-panel/internal/app"
	"github.com/pydea-rs/omen-creator-panel/internal/config"
)

var (
	// Global flags
	configPath string
	endpoint   string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	logClose func()
)

var rootCmd = &cobra.Command{
	Use:   "omencreator",
	Short: "Create prediction markets on Omenium",
	Long: `omencreator fills in and submits market creation forms against one of the
known Omenium deployments.

Run without arguments to open the interactive form.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		if endpoint != "" {
			cfg.API.Endpoint = endpoint
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// The terminal form owns the screen; its log goes to a file or
		// nowhere.
		interactive := !cmd.HasParent() || cmd.Name() == "tui"
		logger, logClose, err = newLogger(cfg, interactive)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logClose != nil {
			logClose()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd.Context(), "tui")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "endpoint name or base URL (overrides api.endpoint)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	rootCmd.AddCommand(tuiCmd, serveCmd, endpointsCmd, loginCmd, logoutCmd,
		categoriesCmd, oraclesCmd, createCmd, historyCmd, configCmd)
}

func main() {
	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runMode runs a long-lived mode until ctx ends.
func runMode(ctx context.Context, mode string) error {
	logger.Info("omencreator starting",
		slog.String("mode", mode),
		slog.String("config", configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	if err := application.Run(ctx, mode); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
			return nil
		}
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("omencreator stopped")
	return nil
}

// exec runs a one-shot command against the configured endpoint.
func exec(ctx context.Context, fn func(ctx context.Context, deps *app.Dependencies) error) error {
	application := app.New(cfg, logger)
	defer application.Close()
	return application.Exec(ctx, fn)
}

// newLogger builds the slog logger from the log section. Interactive runs
// never write to the terminal.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	path := cfg.Log.File
	if interactive && cfg.TUI.LogFile != "" {
		path = cfg.TUI.LogFile
	}
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closeFn = f, func() { _ = f.Close() }
	case interactive:
		out = io.Discard
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "text") {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(h), closeFn, nil
}
