package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ecolens/internal/pipeline"
	"github.com/sells-group/ecolens/internal/region"
)

var batchRegions []string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze several region presets in one go",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		keys := batchRegions
		if len(keys) == 0 {
			keys = region.Keys()
		}

		jobs := make([]pipeline.Job, 0, len(keys))
		for _, key := range keys {
			preset, err := region.Get(key)
			if err != nil {
				return err
			}
			loc, err := preset.Location()
			if err != nil {
				return err
			}
			window, err := preset.Window()
			if err != nil {
				return err
			}
			opts, err := analysisOptions(string(preset.Layer), string(preset.Focus))
			if err != nil {
				return err
			}
			jobs = append(jobs, pipeline.Job{
				Name:     preset.Key,
				Location: loc,
				Window:   window,
				Options:  opts,
			})
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		zap.L().Info("processing batch",
			zap.Int("regions", len(jobs)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentRegions),
		)

		results := e.Pipeline.RunBatch(ctx, jobs, cfg.Batch.MaxConcurrentRegions)

		var failed int
		for _, res := range results {
			if res.Err != nil {
				failed++
				cmd.Printf("FAIL %s: %v\n", res.Job.Name, res.Err)
				continue
			}
			paths, err := pipeline.WriteReports(res.Report, cfg.Reports.Dir)
			if err != nil {
				failed++
				cmd.Printf("FAIL %s: %v\n", res.Job.Name, err)
				continue
			}
			cmd.Printf("OK   %s: severity %d/10, %.1f%% affected, %s\n",
				res.Job.Name, res.Report.Metrics.SeverityScore,
				res.Report.Metrics.AffectedPct, paths.Markdown)
		}

		zap.L().Info("batch complete",
			zap.Int("succeeded", len(results)-failed),
			zap.Int("failed", failed),
		)
		if failed == len(results) && len(results) > 0 {
			return eris.New("all batch jobs failed")
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchRegions, "regions", nil, "region preset keys (default: all)")
	rootCmd.AddCommand(batchCmd)
}
