package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ecolens/internal/cost"
	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
	"github.com/sells-group/ecolens/pkg/anthropic"
)

const defaultMaxTokens = 2048

// Analyzer compares satellite image pairs using the Anthropic vision API
// and coerces the response into a validated Assessment. Every call is
// priced and recorded on the shared cost ledger.
type Analyzer struct {
	client anthropic.Client
	calc   *cost.Calculator
	ledger *cost.Ledger

	model       string
	maxTokens   int64
	temperature float64
}

// NewAnalyzer constructs an Analyzer. The ledger accumulates spend across
// every comparison made through this analyzer.
func NewAnalyzer(client anthropic.Client, calc *cost.Calculator, ledger *cost.Ledger, modelID string) *Analyzer {
	return &Analyzer{
		client:      client,
		calc:        calc,
		ledger:      ledger,
		model:       modelID,
		maxTokens:   defaultMaxTokens,
		temperature: 0.5,
	}
}

// rawAssessment mirrors the JSON shape the prompt requests. All fields are
// treated as untrusted until coerced into the closed enums.
type rawAssessment struct {
	ChangesDetected     bool     `json:"changes_detected"`
	PrimaryChangeType   string   `json:"primary_change_type"`
	Severity            string   `json:"severity"`
	Confidence          string   `json:"confidence"`
	ChangeSummary       string   `json:"change_summary"`
	EnvironmentalImpact string   `json:"environmental_impact"`
	NewFeatures         []string `json:"new_features"`
	LostFeatures        []string `json:"lost_features"`
}

// Compare sends both rasters to the vision model in a single message and
// returns the validated assessment. Unrecognized enum values do not fail
// the comparison; they coerce to the unknown variant and are recorded in
// Assessment.Warnings.
func (a *Analyzer) Compare(ctx context.Context, loc geo.Location, window model.TimeWindow, before, after *imagery.Artifact, focus model.ChangeType) (model.Assessment, error) {
	beforeBlock, err := imageBlock(before)
	if err != nil {
		return model.Assessment{}, err
	}
	afterBlock, err := imageBlock(after)
	if err != nil {
		return model.Assessment{}, err
	}

	beforeDate := before.Provenance.ServedDate.Format(model.DateFormat)
	afterDate := after.Provenance.ServedDate.Format(model.DateFormat)

	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: &a.temperature,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{
				Role: "user",
				Blocks: []anthropic.Block{
					{Text: imageLabel("First", before)},
					{Image: beforeBlock},
					{Text: imageLabel("Second", after)},
					{Image: afterBlock},
					{Text: comparisonPrompt(loc.Name, beforeDate, afterDate, focus)},
				},
			},
		},
	}

	start := time.Now()
	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return model.Assessment{}, eris.Wrap(err, "vision: compare images")
	}

	a.recordCost(resp)

	zap.L().Info("vision comparison complete",
		zap.String("location", loc.Name),
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return parseAssessment(resp.Text())
}

// parseAssessment unmarshals the model response and coerces every
// enumerated field into its closed set.
func parseAssessment(text string) (model.Assessment, error) {
	payload := stripJSONFence(text)

	var raw rawAssessment
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return model.Assessment{}, eris.Wrapf(err, "vision: parse assessment %q", truncate(payload, 120))
	}

	out := model.Assessment{
		ChangeDetected: raw.ChangesDetected,
		Summary:        strings.TrimSpace(raw.ChangeSummary),
		Impact:         strings.TrimSpace(raw.EnvironmentalImpact),
		NewFeatures:    raw.NewFeatures,
		LostFeatures:   raw.LostFeatures,
	}

	var ok bool
	if out.ChangeType, ok = model.ParseChangeType(raw.PrimaryChangeType); !ok {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("unrecognized change type %q", raw.PrimaryChangeType))
	}
	if out.Severity, ok = model.ParseSeverityLabel(raw.Severity); !ok {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("unrecognized severity %q", raw.Severity))
	}
	if out.Confidence, ok = model.ParseConfidence(raw.Confidence); !ok {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("unrecognized confidence %q", raw.Confidence))
	}

	if out.Summary == "" {
		out.Warnings = append(out.Warnings, "assessment missing change summary")
	}

	return out, nil
}

func (a *Analyzer) recordCost(resp *anthropic.MessageResponse) {
	a.ledger.Record(cost.Entry{
		CallID:       uuid.NewString(),
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostUSD:      a.calc.Claude(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
		RecordedAt:   time.Now().UTC(),
	})
}

// imageLabel annotates an image with its capture date and ground scale so
// the model can judge feature sizes.
func imageLabel(position string, art *imagery.Artifact) string {
	layer := art.Provenance.Layer
	return fmt.Sprintf("%s image, captured %s (%s layer, %.0f m/pixel native resolution):",
		position, art.Provenance.ServedDate.Format(model.DateFormat), layer, layer.ResolutionM())
}

func imageBlock(art *imagery.Artifact) (*anthropic.ImageSource, error) {
	data, err := art.Bytes()
	if err != nil {
		return nil, err
	}
	mediaType := art.Provenance.ContentType
	if mediaType == "" {
		mediaType = "image/png"
	}
	return &anthropic.ImageSource{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// stripJSONFence removes a surrounding markdown code fence, if any. Models
// occasionally wrap JSON in ```json blocks despite instructions.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
