package model

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
)

// ErrIncompleteReport is returned when report assembly is attempted before
// every required input is present.
var ErrIncompleteReport = eris.New("model: report inputs incomplete")

// AnalysisReport is the immutable aggregate produced once per run. It holds
// provenance records rather than raster bytes; the artifacts themselves stay
// cache-owned. After assembly the report is only read, never mutated, so
// every output representation renders from the same state.
type AnalysisReport struct {
	RunID    string       `json:"run_id"`
	Location geo.Location `json:"location"`
	Window   TimeWindow   `json:"window"`

	Layer  string             `json:"layer"`
	Before imagery.Provenance `json:"before"`
	After  imagery.Provenance `json:"after"`

	Assessment Assessment    `json:"assessment"`
	Metrics    ChangeMetrics `json:"metrics"`

	Cost cost.Snapshot `json:"cost"`

	GeneratedAt time.Time `json:"generated_at"`

	// Warnings aggregates data-quality notes from every stage: enum
	// coercions, date fallbacks, quantification caveats.
	Warnings []string `json:"warnings,omitempty"`
}

// Validate reports whether the aggregate carries everything a rendering
// needs.
func (r *AnalysisReport) Validate() error {
	switch {
	case r.RunID == "":
		return eris.Wrap(ErrIncompleteReport, "missing run id")
	case r.Location.Name == "" && r.Location.Lat == 0 && r.Location.Lon == 0:
		return eris.Wrap(ErrIncompleteReport, "missing location")
	case r.Window.Before.IsZero() || r.Window.After.IsZero():
		return eris.Wrap(ErrIncompleteReport, "missing time window")
	case r.Before.ServedDate.IsZero():
		return eris.Wrap(ErrIncompleteReport, "missing before-image provenance")
	case r.After.ServedDate.IsZero():
		return eris.Wrap(ErrIncompleteReport, "missing after-image provenance")
	case r.GeneratedAt.IsZero():
		return eris.Wrap(ErrIncompleteReport, "missing generation timestamp")
	}
	return nil
}
