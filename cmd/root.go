// Package cmd implements the CLI commands for bindery using Cobra.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alaroche/bindery/config"
)

// Persistent flag variables.
var (
	cfgFile     string
	flagVerbose bool

	// cfgManager is loaded before any command runs.
	cfgManager *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "bindery",
	Short: "Bindery turns paginated web readers into PDF books",
	Long: `Bindery captures the reader of a web book, downloads every page image,
and binds the pages into a single PDF document.

Usage:
  bindery generate <url-or-snapshot> [flags]
  bindery batch <catalog-url> [flags]`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bindery/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagVerbose, "verbose", "v", false, "enable debug logging",
	)

	// Logging and configuration are ready before any command runs.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))

		m, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgManager = m
		return nil
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
