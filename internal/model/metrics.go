package model

// ChangeMetrics are the deterministic quantities derived from an Assessment
// and the analysed bounding-box geometry. They are never re-derived from
// raw pixels.
type ChangeMetrics struct {
	// SeverityScore is the 0-10 integer mapped from the severity label.
	SeverityScore int `json:"severity_score"`

	// SeverityUnrecognized is set when the vision capability returned a
	// label outside the closed set. The score is 0 in that case but the
	// report must not present it as a computed "none".
	SeverityUnrecognized bool `json:"severity_unrecognized,omitempty"`

	TotalAreaKm2    float64 `json:"total_area_km2"`
	AffectedAreaKm2 float64 `json:"affected_area_km2"`
	AffectedPct     float64 `json:"affected_pct"`

	// RateKm2PerDay is affected area spread over the window's elapsed days.
	RateKm2PerDay float64 `json:"rate_km2_per_day"`

	// CarbonEmissionTons is set only for deforestation. A nil pointer means
	// "not applicable", which is distinct from a computed zero.
	CarbonEmissionTons *float64 `json:"carbon_emission_tons,omitempty"`

	Trend Trend `json:"trend"`

	// Warnings collects quantification caveats, e.g. a change type that had
	// to fall back to the general area model.
	Warnings []string `json:"warnings,omitempty"`
}
