package model

import "strings"

// ChangeType classifies the dominant environmental change seen in an image
// pair. The set is closed; anything else coerces to ChangeUnknown.
type ChangeType string

const (
	ChangeDeforestation ChangeType = "deforestation"
	ChangeIceMelt       ChangeType = "ice_melt"
	ChangeUrbanSprawl   ChangeType = "urban_sprawl"
	ChangeGeneral       ChangeType = "general"
	ChangeNone          ChangeType = "none"
	ChangeUnknown       ChangeType = "unknown"
)

// ParseChangeType coerces a model-supplied string into the closed enum.
// The second return reports whether the input was recognized.
func ParseChangeType(s string) (ChangeType, bool) {
	switch normalize(s) {
	case "deforestation", "forest_loss":
		return ChangeDeforestation, true
	case "ice_melt", "icemelt", "glacial_retreat":
		return ChangeIceMelt, true
	case "urban_sprawl", "urban", "urbanization":
		return ChangeUrbanSprawl, true
	case "general", "agricultural", "mixed":
		return ChangeGeneral, true
	case "none", "minimal", "no_change":
		return ChangeNone, true
	default:
		return ChangeUnknown, false
	}
}

// SeverityLabel is the qualitative magnitude band reported by the vision
// capability. Closed set; out-of-enum values coerce to SeverityUnknown.
type SeverityLabel string

const (
	SeverityNone     SeverityLabel = "none"
	SeverityLow      SeverityLabel = "low"
	SeverityModerate SeverityLabel = "moderate"
	SeverityHigh     SeverityLabel = "high"
	SeveritySevere   SeverityLabel = "severe"
	SeverityUnknown  SeverityLabel = "unknown"
)

// ParseSeverityLabel coerces a model-supplied string into the closed enum.
func ParseSeverityLabel(s string) (SeverityLabel, bool) {
	switch normalize(s) {
	case "none", "minimal":
		return SeverityNone, true
	case "low":
		return SeverityLow, true
	case "moderate", "medium":
		return SeverityModerate, true
	case "high":
		return SeverityHigh, true
	case "severe", "critical":
		return SeveritySevere, true
	default:
		return SeverityUnknown, false
	}
}

// Confidence is the vision capability's self-reported confidence band.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence coerces a model-supplied string into the closed enum.
func ParseConfidence(s string) (Confidence, bool) {
	switch normalize(s) {
	case "high":
		return ConfidenceHigh, true
	case "medium", "moderate":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	default:
		return ConfidenceUnknown, false
	}
}

// Trend describes whether the change appears to be speeding up.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendStable       Trend = "stable"
	TrendSlowing      Trend = "slowing"
)

// Assessment is the validated qualitative judgment produced by the vision
// capability. All enum fields have already been coerced into their closed
// sets; Warnings records every coercion so reports can surface data-quality
// issues without failing the run.
type Assessment struct {
	ChangeDetected bool          `json:"change_detected"`
	ChangeType     ChangeType    `json:"change_type"`
	Severity       SeverityLabel `json:"severity"`
	Confidence     Confidence    `json:"confidence"`
	Summary        string        `json:"summary"`
	Impact         string        `json:"impact,omitempty"`
	NewFeatures    []string      `json:"new_features,omitempty"`
	LostFeatures   []string      `json:"lost_features,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// DeriveTrend applies a keyword heuristic over the assessment free text.
func (a Assessment) DeriveTrend() Trend {
	text := strings.ToLower(a.Summary + " " + a.Impact)

	for _, k := range []string{"rapid", "accelerat", "increasing", "growing", "expanding"} {
		if strings.Contains(text, k) {
			return TrendAccelerating
		}
	}
	for _, k := range []string{"slowing", "decreas", "declining", "reducing", "recover"} {
		if strings.Contains(text, k) {
			return TrendSlowing
		}
	}
	return TrendStable
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}
