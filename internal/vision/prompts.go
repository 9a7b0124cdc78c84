package vision

import (
	"fmt"
	"strings"

	"github.com/sells-group/ecolens/internal/model"
)

const systemPrompt = `You are an expert Earth observation analyst. You compare satellite images of the same area taken at different times and report environmental change. You are rigorous about only reporting what is visually supported, and you always answer with a single JSON object and nothing else.`

// comparisonPrompt builds the user-facing instruction for a two-image
// change comparison. The focus hint sharpens the analysis for a known
// change type without constraining the answer to it.
func comparisonPrompt(locationName, beforeDate, afterDate string, focus model.ChangeType) string {
	var b strings.Builder

	locationText := ""
	if locationName != "" {
		locationText = fmt.Sprintf(" of %s", locationName)
	}

	fmt.Fprintf(&b, `You are viewing two satellite images%s taken at different times.

First image: %s
Second image: %s

Compare the images directly and identify:

1. Visual differences: color shifts (green to brown, white to dark), texture changes, new patterns or structures.
2. Spatial distribution: are changes concentrated or uniform across the scene?
3. Magnitude: dramatic transformation, moderate change, subtle difference, or no change.
4. Change indicators: vegetation loss, new development, ice or water boundary shifts.
`, locationText, beforeDate, afterDate)

	switch focus {
	case model.ChangeDeforestation:
		b.WriteString(`
Focus on deforestation: forest density and coverage, cleared patches, linear patterns indicating roads or logging, agricultural conversion, edge effects at forest boundaries.
`)
	case model.ChangeIceMelt:
		b.WriteString(`
Focus on ice and snow: bright ice or snow coverage, exposed land or open water, glacier boundaries, meltwater or crevassing.
`)
	case model.ChangeUrbanSprawl:
		b.WriteString(`
Focus on urban development: built-up gray or white patches, road networks, new development at urban edges, infrastructure expansion.
`)
	}

	b.WriteString(`
Return your analysis as a JSON object with exactly these fields:
{
  "changes_detected": true or false,
  "primary_change_type": "deforestation" | "ice_melt" | "urban_sprawl" | "general" | "none",
  "severity": "none" | "low" | "moderate" | "high" | "severe",
  "confidence": "high" | "medium" | "low",
  "change_summary": "2-3 sentence summary of what changed",
  "environmental_impact": "description of the ecological impact",
  "new_features": ["feature", ...],
  "lost_features": ["feature", ...]
}

Return ONLY the JSON object, no other text.`)

	return b.String()
}
