// Package cmd holds the famfin command line: the API server and the
// maintenance commands that share its configuration.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthew-heyner/family-finance/internal/config"
	"github.com/matthew-heyner/family-finance/internal/log"
)

var cfgFile string

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "famfin",
		Short:         "Family finance API server",
		Long:          "famfin serves the family finance REST API and carries the tools to migrate its database and bootstrap accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	return root
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the process logger. Only the
// server needs a fully valid configuration.
func loadConfig(strict bool) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if strict {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.Log.Format,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return cfg, logger, nil
}
