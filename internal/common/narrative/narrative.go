// Package narrative produces advisory prose for a computed valuation. Nothing
// it returns ever replaces a computed figure.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

var (
	ErrEmptyResponse  = errors.New("narrative response is empty")
	ErrMissingSummary = errors.New("narrative response has no summary")
)

// Generator turns a listing and its valuation into narrative fields.
type Generator interface {
	Generate(ctx context.Context, listing *models.Listing, result *valuation.ValuationResult) (*Narrative, error)
}

// Narrative is the decoded model output. AdvisoryNumbers holds any figures the
// model volunteered; callers must keep them apart from the computed valuation.
type Narrative struct {
	Summary         string             `json:"summary"`
	WhyHot          string             `json:"whyHot,omitempty"`
	Highlights      []string           `json:"highlights,omitempty"`
	Breakdown       string             `json:"breakdown,omitempty"`
	AdvisoryNumbers map[string]float64 `json:"advisoryNumbers,omitempty"`
}

type rawNarrative struct {
	Summary       string   `json:"ai_summary"`
	WhyHot        string   `json:"why_hot"`
	Highlights    []string `json:"highlights"`
	Breakdown     string   `json:"breakdown"`
	BaseMultiple  *float64 `json:"base_multiple"`
	ValuationLow  *float64 `json:"valuation_low"`
	ValuationHigh *float64 `json:"valuation_high"`
}

// ParseResponse decodes model text into a Narrative. It tries strict JSON,
// then a lenient Hjson read, then a repaired document.
func ParseResponse(text string) (*Narrative, error) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var raw rawNarrative
	if err := decode(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return nil, ErrMissingSummary
	}

	n := &Narrative{
		Summary:    strings.TrimSpace(raw.Summary),
		WhyHot:     strings.TrimSpace(raw.WhyHot),
		Highlights: nonEmpty(raw.Highlights),
		Breakdown:  strings.TrimSpace(raw.Breakdown),
	}
	advisory := map[string]*float64{
		"baseMultiple":  raw.BaseMultiple,
		"valuationLow":  raw.ValuationLow,
		"valuationHigh": raw.ValuationHigh,
	}
	for key, v := range advisory {
		if v == nil {
			continue
		}
		if n.AdvisoryNumbers == nil {
			n.AdvisoryNumbers = make(map[string]float64)
		}
		n.AdvisoryNumbers[key] = *v
	}
	return n, nil
}

func decode(body string, out *rawNarrative) error {
	if err := json.Unmarshal([]byte(body), out); err == nil {
		return nil
	}

	var loose interface{}
	if err := hjson.Unmarshal([]byte(body), &loose); err == nil {
		if normalized, err := json.Marshal(loose); err == nil {
			if err := json.Unmarshal(normalized, out); err == nil {
				return nil
			}
		}
	}

	repaired, err := jsonrepair.RepairJSON(body)
	if err != nil {
		return fmt.Errorf("decode narrative: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode narrative: %w", err)
	}
	return nil
}

func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
