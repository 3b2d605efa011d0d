// CLAUDE:SUMMARY polwatch CLI entry point: cobra root with compare, snapshot, check and serve commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/polwatch/monitor"
)

type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "polwatch:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "polwatch",
		Short:         "Detect and classify meaningful changes between versions of policy documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		newCompareCmd(g),
		newSnapshotCmd(g),
		newCheckCmd(g),
		newServeCmd(g),
	)
	return root
}

// load reads the config file (if any) and applies flag overrides.
func (g *globalFlags) load() (*monitor.Config, *slog.Logger, error) {
	cfg := &monitor.Config{}
	if g.configPath != "" {
		var err error
		if cfg, err = monitor.LoadConfigFile(g.configPath); err != nil {
			return nil, nil, err
		}
	}
	if g.dbPath != "" {
		cfg.DBPath = g.dbPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// service opens the full service for commands that need the store.
func (g *globalFlags) service(opts ...monitor.Option) (*monitor.Service, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	return monitor.New(cfg, logger, opts...)
}

func newLogger(c monitor.LogConfig) *slog.Logger {
	var lvl slog.Level
	switch c.Level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
