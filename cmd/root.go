package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ecolens/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ecolens",
	Short: "Satellite environmental change monitor",
	Long:  "Fetches NASA GIBS satellite imagery for a location at two points in time, compares the rasters with Claude vision, and quantifies the detected change into JSON, Markdown, and CSV reports.",
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
