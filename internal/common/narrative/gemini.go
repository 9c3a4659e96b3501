package narrative

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

const systemPrompt = `You write short listing copy for a business-for-sale marketplace.
Respond with a single JSON object with the keys "ai_summary", "why_hot", "highlights" (array of strings) and "breakdown".
The valuation figures you are given are final. Do not recompute them.`

// contentGenerator is the slice of *genai.Models the generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements Generator on the Gemini API.
type GeminiGenerator struct {
	models      contentGenerator
	model       string
	temperature float32
	logger      logger.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, temperature float64, log logger.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiGenerator(client.Models, model, temperature, log), nil
}

func newGeminiGenerator(m contentGenerator, model string, temperature float64, log logger.Logger) *GeminiGenerator {
	return &GeminiGenerator{
		models:      m,
		model:       model,
		temperature: float32(temperature),
		logger:      log.WithFields(map[string]interface{}{"component": "narrative", "model": model}),
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, listing *models.Listing, result *valuation.ValuationResult) (*Narrative, error) {
	if result == nil {
		return nil, fmt.Errorf("narrative requires a valuation result")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(listing, result)), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	n, err := ParseResponse(resp.Text())
	if err != nil {
		return nil, err
	}
	g.logger.Debug("narrative generated", map[string]interface{}{
		"highlights": len(n.Highlights),
		"advisory":   len(n.AdvisoryNumbers),
	})
	return n, nil
}

// BuildPrompt lists the listing facts and the computed valuation. listing may
// be nil when the valuation came from inline financials.
func BuildPrompt(listing *models.Listing, result *valuation.ValuationResult) string {
	var b strings.Builder
	b.WriteString("Listing\n")
	if listing != nil {
		writeLine(&b, "Title", listing.Title)
		writeLine(&b, "Location", listing.Location)
		if listing.AskingPrice != nil {
			writeLine(&b, "Asking price", format.Currency(*listing.AskingPrice))
		}
		if listing.Revenue != nil {
			writeLine(&b, "Revenue", format.Currency(*listing.Revenue))
		}
		if listing.SDE != nil {
			writeLine(&b, "SDE", format.Currency(*listing.SDE))
		}
		if listing.YearsInBusiness != nil {
			writeLine(&b, "Years in business", fmt.Sprintf("%d", *listing.YearsInBusiness))
		}
		writeLine(&b, "Description", listing.Description)
	}
	writeLine(&b, "Vertical", string(result.Vertical))

	p := format.Project(result, nil)
	b.WriteString("\nValuation\n")
	writeLine(&b, "Range", p.ValuationRange)
	writeLine(&b, "Adjusted multiple", p.AdjustedMultiple)
	writeLine(&b, "Basis", string(result.Basis))
	writeLine(&b, "Confidence", p.Confidence)

	if len(result.AppliedAdjustments) > 0 {
		b.WriteString("\nAdjustments\n")
		for _, a := range result.AppliedAdjustments {
			fmt.Fprintf(&b, "- %s (%+.1fx): %s\n", a.Factor, a.Delta, a.Rationale)
		}
	}
	if len(result.RiskTable) > 0 {
		b.WriteString("\nRisks\n")
		for _, r := range result.RiskTable {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", r.Category, r.Severity, r.Finding)
		}
	}
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
