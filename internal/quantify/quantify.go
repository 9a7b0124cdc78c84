// Package quantify derives deterministic change metrics from a validated
// qualitative assessment and the request geometry. It never inspects raw
// pixels; everything is a fixed formula over the assessment enums and the
// bounding-box area, so identical inputs always produce identical metrics.
package quantify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/model"
)

// DefaultCarbonDensityTonsPerKm2 approximates the carbon released when one
// square kilometer of tropical forest is cleared.
const DefaultCarbonDensityTonsPerKm2 = 200.0

// severityScores maps the qualitative severity band onto the 0-10 scale.
// The mapping is monotonic: a stronger label never yields a lower score.
var severityScores = map[model.SeverityLabel]int{
	model.SeverityNone:     0,
	model.SeverityLow:      2,
	model.SeverityModerate: 5,
	model.SeverityHigh:     8,
	model.SeveritySevere:   10,
}

// areaFractions gives, per change type, the fraction of the scene assumed
// affected at each severity score. The steps reflect how each change type
// presents: deforestation fronts consume large connected areas at high
// severity, urban growth stays comparatively compact, ice loss spreads wide
// even at moderate severity.
var areaFractions = map[model.ChangeType]map[int]float64{
	model.ChangeDeforestation: {0: 0, 2: 0.05, 5: 0.18, 8: 0.75, 10: 0.90},
	model.ChangeUrbanSprawl:   {0: 0, 2: 0.02, 5: 0.08, 8: 0.25, 10: 0.40},
	model.ChangeIceMelt:       {0: 0, 2: 0.10, 5: 0.30, 8: 0.60, 10: 0.85},
	model.ChangeGeneral:       {0: 0, 2: 0.03, 5: 0.10, 8: 0.30, 10: 0.50},
}

// Quantifier computes ChangeMetrics. The zero value is not usable; use New.
type Quantifier struct {
	carbonDensity float64
}

// Option adjusts quantifier behavior.
type Option func(*Quantifier)

// WithCarbonDensity overrides the tons-per-km2 factor used for
// deforestation carbon estimates.
func WithCarbonDensity(tonsPerKm2 float64) Option {
	return func(q *Quantifier) {
		if tonsPerKm2 > 0 {
			q.carbonDensity = tonsPerKm2
		}
	}
}

// New constructs a Quantifier with the default carbon density.
func New(opts ...Option) *Quantifier {
	q := &Quantifier{carbonDensity: DefaultCarbonDensityTonsPerKm2}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Quantify derives metrics for an assessment over the given scene. The
// assessment has already been validated upstream; unknown severity yields a
// zero score flagged as unrecognized, and unknown change types degrade to
// the general area model with a warning appended to the returned metrics.
func (q *Quantifier) Quantify(a model.Assessment, bbox geo.BBox, window model.TimeWindow) model.ChangeMetrics {
	m := model.ChangeMetrics{
		TotalAreaKm2: bbox.AreaKm2(),
		Trend:        a.DeriveTrend(),
	}

	score, ok := severityScores[a.Severity]
	if !ok {
		m.SeverityUnrecognized = true
		m.Warnings = append(m.Warnings,
			fmt.Sprintf("severity %q has no score mapping, treating as 0", a.Severity))
	}
	m.SeverityScore = score

	changeType := a.ChangeType
	fractions, ok := areaFractions[changeType]
	if !ok {
		if changeType != model.ChangeNone {
			m.Warnings = append(m.Warnings,
				fmt.Sprintf("change type %q has no area model, using general", changeType))
		}
		changeType = model.ChangeGeneral
		fractions = areaFractions[model.ChangeGeneral]
	}

	if a.ChangeDetected {
		fraction := fractions[score]
		m.AffectedAreaKm2 = m.TotalAreaKm2 * fraction
		m.AffectedPct = clampPct(fraction * 100)
	}

	if days := window.ElapsedDays(); days > 0 {
		m.RateKm2PerDay = m.AffectedAreaKm2 / float64(days)
	}

	if changeType == model.ChangeDeforestation && m.AffectedAreaKm2 > 0 {
		carbon := m.AffectedAreaKm2 * q.carbonDensity
		m.CarbonEmissionTons = &carbon
	}

	zap.L().Debug("change quantified",
		zap.Int("severity_score", m.SeverityScore),
		zap.Float64("affected_km2", m.AffectedAreaKm2),
		zap.Float64("affected_pct", m.AffectedPct),
	)

	return m
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
