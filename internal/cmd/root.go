// Package cmd is the dexfren command line: the API server plus one-shot
// index maintenance and query commands.
package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dexfren/backend/internal/app"
	"dexfren/backend/internal/config"
	"dexfren/backend/internal/logger"
)

// Version is set at build time.
var Version = "dev"

// loadConfig is swapped in tests.
var loadConfig = config.Load

type cli struct {
	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "dexfren",
		Short:         "DexFren knowledge base backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg
			slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newBuildCmd(c),
		newUpdateCmd(c),
		newQueryCmd(c),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// withApp bootstraps every dependency, wires the application and hands it
// to fn. Everything is released when fn returns.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App, deps *app.Dependencies) error) error {
	deps, err := app.Bootstrap(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(c.cfg, deps.DB, deps.Backend, deps.Embedder, deps.NSQProducer, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, deps)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
