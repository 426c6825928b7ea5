package main

import (
	"fmt"
	"os"

	"shipdocs/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

// rootCmd is the operator CLI
var rootCmd = &cobra.Command{
	Use:   "shipdocs",
	Short: "Operate the shipping document service",
	Long: `Operator commands for the shipping document service.

Available commands:
  migrate        - Apply database migrations
  setup-schemas  - Detect and store form schemas for the configured templates
  schemas        - List, show or delete stored form schemas
  prefill        - Preview prefill and instructions offline from JSON files`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, err := config.NewLogger(cfg)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, setupSchemasCmd, schemasCmd, prefillCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
