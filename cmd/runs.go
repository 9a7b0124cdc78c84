package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ecolens/internal/store"
)

var (
	runsLocation string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.History.Enabled {
			return eris.New("run history is disabled in config")
		}
		st, err := store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, runsLocation, runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			cmd.Printf("%s  %-30s  %s..%s  %-14s  %2d/10  %5.1f%%  $%.4f\n",
				r.CreatedAt.Format("2006-01-02 15:04"), r.LocationName,
				r.BeforeDate, r.AfterDate, r.ChangeType,
				r.SeverityScore, r.AffectedPct, r.CostUSD)
		}
		return nil
	},
}

var runShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the full stored report for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsLocation, "location", "", "filter by location name")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.AddCommand(runShowCmd)
	rootCmd.AddCommand(runsCmd)
}
