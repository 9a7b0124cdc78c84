package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
)

// Assemble builds the immutable report from the run's pieces. Warnings from
// every stage are merged onto the report, including date-fallback notices
// derived from the provenance records.
func Assemble(runID string, loc geo.Location, window model.TimeWindow, before, after imagery.Provenance, assessment model.Assessment, metrics model.ChangeMetrics, snap cost.Snapshot, generatedAt time.Time) (*model.AnalysisReport, error) {
	report := &model.AnalysisReport{
		RunID:       runID,
		Location:    loc,
		Window:      window,
		Layer:       string(before.Layer),
		Before:      before,
		After:       after,
		Assessment:  assessment,
		Metrics:     metrics,
		Cost:        snap,
		GeneratedAt: generatedAt,
	}

	report.Warnings = append(report.Warnings, assessment.Warnings...)
	report.Warnings = append(report.Warnings, metrics.Warnings...)
	if before.DateFellBack() {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"before image fell back from %s to %s",
			before.RequestedDate.Format(model.DateFormat),
			before.ServedDate.Format(model.DateFormat)))
	}
	if after.DateFellBack() {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"after image fell back from %s to %s",
			after.RequestedDate.Format(model.DateFormat),
			after.ServedDate.Format(model.DateFormat)))
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// jsonReport wraps the report with a GeoJSON geometry of the analysed
// extent so the output loads directly into GIS tooling.
type jsonReport struct {
	*model.AnalysisReport
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// RenderJSON serializes the complete report, including the bounding box as
// a GeoJSON polygon.
func RenderJSON(r *model.AnalysisReport) ([]byte, error) {
	geometry, err := geojson.Marshal(r.Before.BBox.Polygon())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal report geometry")
	}

	data, err := json.MarshalIndent(jsonReport{AnalysisReport: r, Geometry: geometry}, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal report")
	}
	return data, nil
}

// RenderMarkdown generates the human-readable report summary.
func RenderMarkdown(r *model.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Satellite Change Analysis: %s\n\n", r.Location.Name)
	fmt.Fprintf(&b, "Run ID: %s\n\n", r.RunID)

	b.WriteString("## Location\n")
	fmt.Fprintf(&b, "- Coordinates: %s\n", geo.FormatCoordinates(r.Location.Lat, r.Location.Lon))
	fmt.Fprintf(&b, "- Layer: %s\n", r.Layer)
	fmt.Fprintf(&b, "- Area monitored: %.1f km²\n\n", r.Metrics.TotalAreaKm2)

	b.WriteString("## Time Period\n")
	fmt.Fprintf(&b, "- Before: %s (served %s)\n",
		r.Before.RequestedDate.Format(model.DateFormat), r.Before.ServedDate.Format(model.DateFormat))
	fmt.Fprintf(&b, "- After: %s (served %s)\n",
		r.After.RequestedDate.Format(model.DateFormat), r.After.ServedDate.Format(model.DateFormat))
	fmt.Fprintf(&b, "- Elapsed: %d days\n\n", r.Window.ElapsedDays())

	b.WriteString("## Assessment\n")
	detected := "No"
	if r.Assessment.ChangeDetected {
		detected = "Yes"
	}
	fmt.Fprintf(&b, "- Change detected: %s\n", detected)
	fmt.Fprintf(&b, "- Change type: %s\n", r.Assessment.ChangeType)
	fmt.Fprintf(&b, "- Severity: %s (%d/10)\n", r.Assessment.Severity, r.Metrics.SeverityScore)
	fmt.Fprintf(&b, "- Trend: %s\n", r.Metrics.Trend)
	fmt.Fprintf(&b, "- Confidence: %s\n\n", r.Assessment.Confidence)

	if r.Assessment.ChangeDetected {
		b.WriteString("## Quantified Changes\n")
		fmt.Fprintf(&b, "- Affected area: %.2f km² (%.1f%% of scene)\n",
			r.Metrics.AffectedAreaKm2, r.Metrics.AffectedPct)
		fmt.Fprintf(&b, "- Rate of change: %.4f km²/day\n", r.Metrics.RateKm2PerDay)
		if r.Metrics.CarbonEmissionTons != nil {
			fmt.Fprintf(&b, "- Estimated carbon released: %.0f tCO2\n", *r.Metrics.CarbonEmissionTons)
		}
		b.WriteString("\n")

		if len(r.Assessment.NewFeatures) > 0 {
			b.WriteString("### New Features\n")
			for _, f := range r.Assessment.NewFeatures {
				fmt.Fprintf(&b, "- %s\n", f)
			}
			b.WriteString("\n")
		}
		if len(r.Assessment.LostFeatures) > 0 {
			b.WriteString("### Lost Features\n")
			for _, f := range r.Assessment.LostFeatures {
				fmt.Fprintf(&b, "- %s\n", f)
			}
			b.WriteString("\n")
		}
	}

	if r.Assessment.Summary != "" {
		b.WriteString("## Summary\n")
		fmt.Fprintf(&b, "%s\n\n", r.Assessment.Summary)
	}
	if r.Assessment.Impact != "" {
		b.WriteString("## Environmental Impact\n")
		fmt.Fprintf(&b, "%s\n\n", r.Assessment.Impact)
	}

	b.WriteString("## API Usage\n")
	fmt.Fprintf(&b, "- Calls: %d\n", r.Cost.CallCount)
	fmt.Fprintf(&b, "- Tokens: %d input, %d output\n", r.Cost.TotalInputTokens, r.Cost.TotalOutputTokens)
	fmt.Fprintf(&b, "- Estimated cost: $%.4f\n", r.Cost.TotalCostUSD)

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	fmt.Fprintf(&b, "\n---\nGenerated %s\n", r.GeneratedAt.Format(time.RFC3339))

	return b.String()
}

// csvHeader defines the flat metrics row layout.
var csvHeader = []string{
	"run_id", "location_name", "latitude", "longitude",
	"before_date", "after_date", "days_elapsed",
	"change_detected", "change_type", "severity", "severity_score",
	"total_area_km2", "affected_area_km2", "affected_pct", "rate_km2_per_day",
	"carbon_emission_tons", "trend", "confidence", "cost_usd",
}

// RenderCSV produces a one-row metrics file for spreadsheet aggregation.
func RenderCSV(r *model.AnalysisReport) ([]byte, error) {
	carbon := ""
	if r.Metrics.CarbonEmissionTons != nil {
		carbon = strconv.FormatFloat(*r.Metrics.CarbonEmissionTons, 'f', 1, 64)
	}

	row := []string{
		r.RunID,
		r.Location.Name,
		strconv.FormatFloat(r.Location.Lat, 'f', 4, 64),
		strconv.FormatFloat(r.Location.Lon, 'f', 4, 64),
		r.Before.ServedDate.Format(model.DateFormat),
		r.After.ServedDate.Format(model.DateFormat),
		strconv.Itoa(r.Window.ElapsedDays()),
		strconv.FormatBool(r.Assessment.ChangeDetected),
		string(r.Assessment.ChangeType),
		string(r.Assessment.Severity),
		strconv.Itoa(r.Metrics.SeverityScore),
		strconv.FormatFloat(r.Metrics.TotalAreaKm2, 'f', 2, 64),
		strconv.FormatFloat(r.Metrics.AffectedAreaKm2, 'f', 2, 64),
		strconv.FormatFloat(r.Metrics.AffectedPct, 'f', 1, 64),
		strconv.FormatFloat(r.Metrics.RateKm2PerDay, 'f', 4, 64),
		carbon,
		string(r.Metrics.Trend),
		string(r.Assessment.Confidence),
		strconv.FormatFloat(r.Cost.TotalCostUSD, 'f', 4, 64),
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, eris.Wrap(err, "pipeline: write csv header")
	}
	if err := w.Write(row); err != nil {
		return nil, eris.Wrap(err, "pipeline: write csv row")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "pipeline: flush csv")
	}
	return buf.Bytes(), nil
}

// ReportPaths lists where each rendering was written.
type ReportPaths struct {
	JSON     string
	Markdown string
	CSV      string
}

// WriteReports renders all three representations of the report into dir.
// Filenames share a slug-plus-timestamp base so one run's outputs sort
// together.
func WriteReports(r *model.AnalysisReport, dir string) (ReportPaths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ReportPaths{}, eris.Wrapf(err, "pipeline: create results dir %s", dir)
	}

	base := fmt.Sprintf("%s_%s", slugify(r.Location.Name), r.GeneratedAt.Format("2006-01-02_150405"))
	paths := ReportPaths{
		JSON:     filepath.Join(dir, base+"_analysis.json"),
		Markdown: filepath.Join(dir, base+"_report.md"),
		CSV:      filepath.Join(dir, base+"_metrics.csv"),
	}

	jsonData, err := RenderJSON(r)
	if err != nil {
		return ReportPaths{}, err
	}
	if err := os.WriteFile(paths.JSON, jsonData, 0o644); err != nil {
		return ReportPaths{}, eris.Wrapf(err, "pipeline: write %s", paths.JSON)
	}

	if err := os.WriteFile(paths.Markdown, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return ReportPaths{}, eris.Wrapf(err, "pipeline: write %s", paths.Markdown)
	}

	csvData, err := RenderCSV(r)
	if err != nil {
		return ReportPaths{}, err
	}
	if err := os.WriteFile(paths.CSV, csvData, 0o644); err != nil {
		return ReportPaths{}, eris.Wrapf(err, "pipeline: write %s", paths.CSV)
	}

	zap.L().Info("reports written",
		zap.String("json", paths.JSON),
		zap.String("markdown", paths.Markdown),
		zap.String("csv", paths.CSV),
	)

	return paths, nil
}

// slugify lowers a location name into a filesystem-safe slug, stripping
// diacritics so "São Félix" becomes "sao_felix".
func slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "location"
	}
	return slug
}
