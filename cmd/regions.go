package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/region"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the built-in region presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range region.All() {
			cmd.Printf("%s\n", p.Key)
			cmd.Printf("  Name: %s\n", p.Name)
			cmd.Printf("  Coordinates: (%.4f, %.4f)\n", p.Lat, p.Lon)
			cmd.Printf("  Focus: %s\n", p.Focus)
			cmd.Printf("  Recommended window: %s to %s\n", p.RecommendedBefore, p.RecommendedAfter)
			if p.Layer != "" {
				cmd.Printf("  Layer: %s\n", p.Layer)
			}
			cmd.Printf("  %s\n\n", p.Description)
		}

		cmd.Printf("Supported layers: %v\n", imagery.LayerNames())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionsCmd)
}
