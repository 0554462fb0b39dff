package reflector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/amityadav/webresearch/internal/ai"
	"github.com/amityadav/webresearch/internal/extractor"
	"github.com/amityadav/webresearch/prompts"
)

const (
	defaultTimeout    = 30 * time.Second
	maxMissingAspects = 3
)

// Verdict is the reflector's judgement on one round of evidence
type Verdict struct {
	Sufficient     bool     `json:"sufficient"`
	MissingAspects []string `json:"missing_aspects,omitempty"`
	RefinedQuery   string   `json:"refined_query,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// Reflector decides whether accumulated evidence answers the question
type Reflector struct {
	gen     ai.Generator
	timeout time.Duration
}

// NewReflector creates a reflector backed by the given generator
func NewReflector(gen ai.Generator) *Reflector {
	return &Reflector{
		gen:     gen,
		timeout: defaultTimeout,
	}
}

var reflectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sufficient": {Type: genai.TypeBoolean},
		"missing_aspects": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"refined_query": {Type: genai.TypeString},
		"reasoning":     {Type: genai.TypeString},
		"confidence":    {Type: genai.TypeNumber},
	},
	Required: []string{"sufficient", "confidence"},
}

// Reflect judges the evidence gathered so far. Any failure or timeout
// fails open: the verdict says sufficient so the pipeline never stalls on
// a broken reflector.
func (r *Reflector) Reflect(ctx context.Context, evidence []*extractor.ExtractedContent, targetInformation, userQuestion string, round int) *Verdict {
	prompt := fmt.Sprintf(prompts.Reflection, userQuestion, targetInformation, round, formatEvidence(evidence))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.gen.GenerateJSON(callCtx, prompt, reflectionSchema)
	if err != nil {
		log.Printf("[Reflector] Round %d failed, failing open: %v", round, err)
		return &Verdict{Sufficient: true, Confidence: 0}
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(ai.CleanJSON(raw)), &verdict); err != nil {
		log.Printf("[Reflector] Round %d returned malformed output, failing open: %v", round, err)
		return &Verdict{Sufficient: true, Confidence: 0}
	}

	if len(verdict.MissingAspects) > maxMissingAspects {
		verdict.MissingAspects = verdict.MissingAspects[:maxMissingAspects]
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	} else if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}
	verdict.RefinedQuery = strings.TrimSpace(verdict.RefinedQuery)

	log.Printf("[Reflector] Round %d verdict: sufficient=%v confidence=%.2f refined=%q",
		round, verdict.Sufficient, verdict.Confidence, verdict.RefinedQuery)
	return &verdict
}

func formatEvidence(evidence []*extractor.ExtractedContent) string {
	if len(evidence) == 0 {
		return "(no evidence gathered yet)"
	}

	var b strings.Builder
	for i, e := range evidence {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, e.Title, e.SourceURL)
		b.WriteString(e.Summary)
		for _, kp := range e.KeyPoints {
			b.WriteString("\n- ")
			b.WriteString(kp)
		}
	}
	return b.String()
}
