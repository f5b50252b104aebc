package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spear-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "spear-sync",
	Short: "Incremental sync of Victorian planning applications from SPEAR",
	Long:  "Scans every council on SPEAR for recently submitted planning applications, enriches them with their intended use, and stores the ones not seen before.",
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
