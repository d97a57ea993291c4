package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rxguard",
	Short: "Drug interaction screening for digitized prescriptions",
	Long:  "Checks drug sets and multi-doctor prescriptions for pairwise interactions against a local knowledge base with openFDA and Claude fallbacks, validates doses, and merges dosing schedules.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
