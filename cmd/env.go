package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
	"github.com/sells-group/ecolens/internal/pipeline"
	"github.com/sells-group/ecolens/internal/quantify"
	"github.com/sells-group/ecolens/internal/resilience"
	"github.com/sells-group/ecolens/internal/store"
	anthropicpkg "github.com/sells-group/ecolens/pkg/anthropic"
)

// env bundles the long-lived collaborators a command needs.
type env struct {
	Pipeline *pipeline.Pipeline
	History  *store.Store
}

// Close releases held resources.
func (e *env) Close() {
	if e.History != nil {
		_ = e.History.Close()
	}
}

// initEnv wires the pipeline from configuration.
func initEnv(ctx context.Context) (*env, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic api key not configured (set ECOLENS_ANTHROPIC_KEY)")
	}

	cache, err := imagery.NewDiskCache(cfg.Cache.Dir, time.Duration(cfg.Cache.MaxAgeDays)*24*time.Hour)
	if err != nil {
		return nil, err
	}

	fetcher := imagery.NewFetcher(imagery.FetcherOptions{
		BaseURL:    cfg.GIBS.BaseURL,
		Width:      cfg.GIBS.ImageWidth,
		Height:     cfg.GIBS.ImageHeight,
		Timeout:    time.Duration(cfg.GIBS.TimeoutSecs) * time.Second,
		RatePerSec: cfg.GIBS.RatePerSec,
		Retry:      resilience.DefaultRetryConfig(),
	}, cache)

	calc := cost.NewCalculator(pricingRates())
	quantifier := quantify.New(quantify.WithCarbonDensity(cfg.Analysis.CarbonTonsPerKm2))
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var history *store.Store
	if cfg.History.Enabled {
		history, err = store.Open(cfg.History.Path)
		if err != nil {
			zap.L().Warn("run history disabled, store open failed", zap.Error(err))
		} else if err := history.Migrate(ctx); err != nil {
			zap.L().Warn("run history disabled, migrate failed", zap.Error(err))
			_ = history.Close()
			history = nil
		}
	}

	return &env{
		Pipeline: pipeline.New(fetcher, client, calc, quantifier, history, cfg.Anthropic.VisionModel),
		History:  history,
	}, nil
}

// pricingRates converts the configured pricing table into calculator rates,
// falling back to the built-in table when none is configured.
func pricingRates() cost.Rates {
	if len(cfg.Pricing.Anthropic) == 0 {
		return cost.DefaultRates()
	}
	rates := cost.Rates{Anthropic: make(map[string]cost.ModelRate, len(cfg.Pricing.Anthropic))}
	for model, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return rates
}

// analysisOptions builds run options from config plus an optional layer and
// focus override.
func analysisOptions(layerName string, focus string) (pipeline.Options, error) {
	if layerName == "" {
		layerName = cfg.Analysis.Layer
	}
	layer, err := imagery.ParseLayer(layerName)
	if err != nil {
		return pipeline.Options{}, err
	}

	opts := pipeline.Options{
		Layer:        layer,
		WindowKm:     cfg.Analysis.WindowKm,
		FallbackDays: cfg.Analysis.FallbackDays,
	}
	if focus != "" {
		ct, ok := model.ParseChangeType(focus)
		if !ok {
			return pipeline.Options{}, eris.Errorf("unknown change type %q", focus)
		}
		opts.Focus = ct
	}
	return opts, nil
}
