// Package pipeline orchestrates one analysis run end to end: resolve the
// imagery requests, fetch both rasters, obtain a vision assessment, derive
// metrics, and assemble the immutable report.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
	"github.com/sells-group/ecolens/internal/quantify"
	"github.com/sells-group/ecolens/internal/store"
	"github.com/sells-group/ecolens/internal/vision"
	"github.com/sells-group/ecolens/pkg/anthropic"
)

// Options describe one analysis run.
type Options struct {
	Layer        imagery.Layer
	WindowKm     float64
	FallbackDays int

	// Focus hints the expected change type to the vision prompt. It never
	// constrains the assessment.
	Focus model.ChangeType
}

// Pipeline wires the long-lived collaborators. A fresh cost ledger and
// analyzer are created per run so spend is attributed to exactly one report.
type Pipeline struct {
	fetcher    *imagery.Fetcher
	client     anthropic.Client
	calc       *cost.Calculator
	quantifier *quantify.Quantifier
	history    *store.Store

	visionModel string
}

// New constructs a Pipeline. history may be nil to disable run persistence.
func New(fetcher *imagery.Fetcher, client anthropic.Client, calc *cost.Calculator, quantifier *quantify.Quantifier, history *store.Store, visionModel string) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		client:      client,
		calc:        calc,
		quantifier:  quantifier,
		history:     history,
		visionModel: visionModel,
	}
}

// Run executes a full change analysis for one location and window.
func (p *Pipeline) Run(ctx context.Context, loc geo.Location, window model.TimeWindow, opts Options) (*model.AnalysisReport, error) {
	runID := uuid.NewString()
	start := time.Now()

	zap.L().Info("analysis run starting",
		zap.String("run_id", runID),
		zap.String("location", loc.Name),
		zap.String("layer", string(opts.Layer)),
		zap.String("before", window.Before.Format(model.DateFormat)),
		zap.String("after", window.After.Format(model.DateFormat)),
	)

	beforeReq, err := imagery.ResolveRequest(loc, window.Before, opts.Layer, opts.WindowKm, opts.FallbackDays)
	if err != nil {
		return nil, err
	}
	afterReq, err := imagery.ResolveRequest(loc, window.After, opts.Layer, opts.WindowKm, opts.FallbackDays)
	if err != nil {
		return nil, err
	}

	var beforeArt, afterArt *imagery.Artifact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		beforeArt, err = p.fetcher.Fetch(gctx, beforeReq)
		return err
	})
	g.Go(func() error {
		var err error
		afterArt, err = p.fetcher.Fetch(gctx, afterReq)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: fetch imagery")
	}

	ledger := cost.NewLedger()
	analyzer := vision.NewAnalyzer(p.client, p.calc, ledger, p.visionModel)

	assessment, err := analyzer.Compare(ctx, loc, window, beforeArt, afterArt, opts.Focus)
	if err != nil {
		return nil, err
	}

	metrics := p.quantifier.Quantify(assessment, beforeReq.BBox, window)

	report, err := Assemble(runID, loc, window, beforeArt.Provenance, afterArt.Provenance, assessment, metrics, ledger.Snapshot(), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if p.history != nil {
		if err := p.history.SaveRun(ctx, report); err != nil {
			zap.L().Warn("failed to persist run history", zap.Error(err))
		}
	}

	cacheStats := p.fetcher.CacheStats()
	zap.L().Info("analysis run complete",
		zap.String("run_id", runID),
		zap.Int("severity_score", metrics.SeverityScore),
		zap.Float64("affected_pct", metrics.AffectedPct),
		zap.Float64("cost_usd", report.Cost.TotalCostUSD),
		zap.Int64("cache_hits", cacheStats.Hits),
		zap.Int64("cache_misses", cacheStats.Misses),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report, nil
}

// Job is one entry in a batch run.
type Job struct {
	Name     string
	Location geo.Location
	Window   model.TimeWindow
	Options  Options
}

// JobResult pairs a job with its outcome; a batch continues past individual
// failures.
type JobResult struct {
	Job    Job
	Report *model.AnalysisReport
	Err    error
}

// RunBatch analyses several locations with bounded concurrency. Results
// preserve job order.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, concurrency int) []JobResult {
	if concurrency <= 0 {
		concurrency = 2
	}

	results := make([]JobResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			report, err := p.Run(gctx, job.Location, job.Window, job.Options)
			if err != nil {
				zap.L().Error("batch job failed",
					zap.String("job", job.Name),
					zap.Error(err),
				)
				results[i] = JobResult{Job: job, Err: err}
				return nil
			}
			results[i] = JobResult{Job: job, Report: report}
			return nil
		})
	}

	// Jobs swallow their own errors; Wait only surfaces context cancellation.
	if err := g.Wait(); err != nil {
		for i := range results {
			if results[i].Report == nil && results[i].Err == nil {
				results[i] = JobResult{Job: jobs[i], Err: eris.Wrap(err, "pipeline: batch cancelled")}
			}
		}
	}

	return results
}
