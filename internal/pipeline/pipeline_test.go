package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
	"github.com/sells-group/ecolens/internal/quantify"
	"github.com/sells-group/ecolens/internal/resilience"
	"github.com/sells-group/ecolens/internal/store"
	"github.com/sells-group/ecolens/pkg/anthropic"
)

const amazonAssessmentJSON = `{
  "changes_detected": true,
  "primary_change_type": "deforestation",
  "severity": "high",
  "confidence": "high",
  "change_summary": "Rapid clearing expanding along new road corridors",
  "environmental_impact": "Significant canopy loss and carbon release",
  "new_features": ["logging roads"],
  "lost_features": ["primary forest"]
}`

type stubVisionClient struct {
	text  string
	calls atomic.Int64
}

func (s *stubVisionClient) CreateMessage(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls.Add(1)
	return &anthropic.MessageResponse{
		ID:         "msg_stub",
		Model:      "claude-sonnet-4-5-20250929",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: s.text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 4000, OutputTokens: 500},
	}, nil
}

// wmsAlways serves a valid PNG for every GetMap request.
func wmsAlways(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\npixels"))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestPipeline(t *testing.T, baseURL string, client anthropic.Client, history *store.Store) *Pipeline {
	t.Helper()
	cache, err := imagery.NewDiskCache(t.TempDir(), time.Hour)
	require.NoError(t, err)

	fetcher := imagery.NewFetcher(imagery.FetcherOptions{
		BaseURL:    baseURL,
		Width:      64,
		Height:     64,
		RatePerSec: 1000,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2,
		},
	}, cache)

	return New(fetcher, client, cost.NewCalculator(cost.DefaultRates()), quantify.New(), history, "claude-sonnet-4-5-20250929")
}

func amazonJob(t *testing.T) (geo.Location, model.TimeWindow, Options) {
	t.Helper()
	loc, err := geo.NewLocation("Amazon Basin", -3.4653, -62.2159)
	require.NoError(t, err)
	window, err := model.NewTimeWindow("2023-06-15", "2024-06-15")
	require.NoError(t, err)
	return loc, window, Options{
		Layer:        imagery.LayerVIIRS,
		WindowKm:     11,
		FallbackDays: 3,
		Focus:        model.ChangeDeforestation,
	}
}

func TestRunAmazonDeforestation(t *testing.T) {
	srv, requests := wmsAlways(t)
	client := &stubVisionClient{text: amazonAssessmentJSON}
	p := newTestPipeline(t, srv.URL, client, nil)

	loc, window, opts := amazonJob(t)
	report, err := p.Run(context.Background(), loc, window, opts)
	require.NoError(t, err)

	assert.Equal(t, int64(2), requests.Load())
	assert.Equal(t, int64(1), client.calls.Load())

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "viirs", report.Layer)
	assert.True(t, report.Before.ServedDate.Equal(window.Before))
	assert.True(t, report.After.ServedDate.Equal(window.After))

	assert.True(t, report.Assessment.ChangeDetected)
	assert.Equal(t, model.ChangeDeforestation, report.Assessment.ChangeType)
	assert.Equal(t, 8, report.Metrics.SeverityScore)
	assert.GreaterOrEqual(t, report.Metrics.AffectedPct, 60.0)
	require.NotNil(t, report.Metrics.CarbonEmissionTons)
	assert.Greater(t, *report.Metrics.CarbonEmissionTons, 0.0)
	assert.Equal(t, model.TrendAccelerating, report.Metrics.Trend)

	assert.Equal(t, 1, report.Cost.CallCount)
	assert.Greater(t, report.Cost.TotalCostUSD, 0.0)
	assert.Empty(t, report.Warnings)
}

func TestRunPersistsHistory(t *testing.T) {
	srv, _ := wmsAlways(t)
	history, err := store.Open(t.TempDir() + "/runs.db")
	require.NoError(t, err)
	require.NoError(t, history.Migrate(context.Background()))
	t.Cleanup(func() { _ = history.Close() })

	p := newTestPipeline(t, srv.URL, &stubVisionClient{text: amazonAssessmentJSON}, history)

	loc, window, opts := amazonJob(t)
	report, err := p.Run(context.Background(), loc, window, opts)
	require.NoError(t, err)

	runs, err := history.ListRuns(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, "Amazon Basin", runs[0].LocationName)
	assert.Equal(t, 8, runs[0].SeverityScore)
}

func TestRunImageryUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ogc.se_xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ServiceExceptionReport version="1.3.0">
  <ServiceException>TIME is out of range for this layer</ServiceException>
</ServiceExceptionReport>`))
	}))
	t.Cleanup(srv.Close)

	client := &stubVisionClient{text: amazonAssessmentJSON}
	p := newTestPipeline(t, srv.URL, client, nil)

	loc, window, opts := amazonJob(t)
	opts.FallbackDays = 1

	_, err := p.Run(context.Background(), loc, window, opts)
	require.Error(t, err)

	var unavailable *imagery.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Zero(t, client.calls.Load())
}

func TestRunBatchPreservesOrderAndSurvivesFailures(t *testing.T) {
	srv, _ := wmsAlways(t)
	p := newTestPipeline(t, srv.URL, &stubVisionClient{text: amazonAssessmentJSON}, nil)

	loc, window, opts := amazonJob(t)

	vegas, err := geo.NewLocation("Las Vegas", 36.1699, -115.1398)
	require.NoError(t, err)

	jobs := []Job{
		{Name: "amazon", Location: loc, Window: window, Options: opts},
		{Name: "vegas", Location: vegas, Window: window, Options: opts},
	}

	results := p.RunBatch(context.Background(), jobs, 2)
	require.Len(t, results, 2)

	assert.Equal(t, "amazon", results[0].Job.Name)
	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Report)
	assert.Equal(t, "Amazon Basin", results[0].Report.Location.Name)

	assert.Equal(t, "vegas", results[1].Job.Name)
	require.NoError(t, results[1].Err)
	require.NotNil(t, results[1].Report)
	assert.Equal(t, "Las Vegas", results[1].Report.Location.Name)
}

func TestRunBatchReportsIndividualFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Serve rasters only near the equator so one job fails.
		if q := r.URL.Query().Get("BBOX"); len(q) > 0 && q[0] == '-' {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\npixels"))
			return
		}
		w.Header().Set("Content-Type", "application/vnd.ogc.se_xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?><ServiceExceptionReport><ServiceException>no data</ServiceException></ServiceExceptionReport>`))
	}))
	t.Cleanup(srv.Close)

	p := newTestPipeline(t, srv.URL, &stubVisionClient{text: amazonAssessmentJSON}, nil)

	loc, window, opts := amazonJob(t)
	opts.FallbackDays = 0

	vegas, err := geo.NewLocation("Las Vegas", 36.1699, -115.1398)
	require.NoError(t, err)

	results := p.RunBatch(context.Background(), []Job{
		{Name: "amazon", Location: loc, Window: window, Options: opts},
		{Name: "vegas", Location: vegas, Window: window, Options: opts},
	}, 1)

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Nil(t, results[1].Report)
}
