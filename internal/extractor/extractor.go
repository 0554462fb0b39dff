package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/amityadav/webresearch/internal/ai"
	"github.com/amityadav/webresearch/prompts"
)

const (
	defaultInputLimit = 10000
	defaultTimeout    = 45 * time.Second
	maxKeyPoints      = 6
)

// ExtractedContent is the structured result of analyzing one page against
// the user's question. Immutable once created.
type ExtractedContent struct {
	SourceURL      string    `json:"source_url"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	KeyPoints      []string  `json:"key_points"`
	RelevanceScore float64   `json:"relevance_score"`
	Confidence     float64   `json:"confidence"`
	ExtractedAt    time.Time `json:"extracted_at"`
}

// Page is one fetched page queued for extraction. Snippet carries the
// search-result snippet used for degraded output when extraction fails.
type Page struct {
	URL     string
	Title   string
	Body    string
	Snippet string
}

// Extractor turns page bodies into ranked ExtractedContent via an LLM
type Extractor struct {
	gen        ai.Generator
	inputLimit int
	timeout    time.Duration
}

// NewExtractor creates an extractor backed by the given generator
func NewExtractor(gen ai.Generator) *Extractor {
	return &Extractor{
		gen:        gen,
		inputLimit: defaultInputLimit,
		timeout:    defaultTimeout,
	}
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":   {Type: genai.TypeString},
		"summary": {Type: genai.TypeString},
		"key_points": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"relevance_score": {Type: genai.TypeNumber},
		"confidence":      {Type: genai.TypeNumber},
	},
	Required: []string{"title", "summary", "key_points", "relevance_score", "confidence"},
}

type extractionResult struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	RelevanceScore float64  `json:"relevance_score"`
	Confidence     float64  `json:"confidence"`
}

// Extract analyzes one page body against the user's question. It retries
// once on failure; callers fall back to Degraded when the error is
// unrecoverable.
func (e *Extractor) Extract(ctx context.Context, pageBody, userQuestion, targetInformation, sourceURL string) (*ExtractedContent, error) {
	if len(pageBody) > e.inputLimit {
		pageBody = pageBody[:e.inputLimit]
	}

	prompt := fmt.Sprintf(prompts.Extraction, sourceURL, userQuestion, targetInformation, pageBody)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		raw, err := e.gen.GenerateJSON(callCtx, prompt, extractionSchema)
		cancel()
		if err != nil {
			log.Printf("[Extractor] Attempt %d failed for %s: %v", attempt+1, sourceURL, err)
			lastErr = err
			continue
		}

		content, err := parseExtraction(raw, sourceURL)
		if err != nil {
			log.Printf("[Extractor] Attempt %d returned malformed output for %s: %v", attempt+1, sourceURL, err)
			lastErr = err
			continue
		}
		return content, nil
	}
	return nil, fmt.Errorf("extraction failed for %s: %w", sourceURL, lastErr)
}

func parseExtraction(raw, sourceURL string) (*ExtractedContent, error) {
	var result extractionResult
	if err := json.Unmarshal([]byte(ai.CleanJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedOutput, err)
	}
	if result.Title == "" && result.Summary == "" {
		return nil, fmt.Errorf("%w: empty title and summary", ai.ErrMalformedOutput)
	}

	if len(result.KeyPoints) > maxKeyPoints {
		result.KeyPoints = result.KeyPoints[:maxKeyPoints]
	}

	return &ExtractedContent{
		SourceURL:      sourceURL,
		Title:          result.Title,
		Summary:        result.Summary,
		KeyPoints:      result.KeyPoints,
		RelevanceScore: clamp(result.RelevanceScore, 0, 10),
		Confidence:     clamp(result.Confidence, 0, 1),
		ExtractedAt:    time.Now().UTC(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Degraded builds a minimal ExtractedContent from the search-result snippet
// when a page could not be fetched or extracted
func Degraded(sourceURL, title, snippet string) *ExtractedContent {
	return &ExtractedContent{
		SourceURL:      sourceURL,
		Title:          title,
		Summary:        snippet,
		RelevanceScore: 0,
		Confidence:     0,
		ExtractedAt:    time.Now().UTC(),
	}
}

// ExtractAndRank extracts all pages concurrently, substituting degraded
// entries for failures, and returns the results ranked
func (e *Extractor) ExtractAndRank(ctx context.Context, pages []Page, userQuestion, targetInformation string) []*ExtractedContent {
	results := make([]*ExtractedContent, len(pages))

	var wg sync.WaitGroup
	for i, page := range pages {
		wg.Add(1)
		go func(idx int, p Page) {
			defer wg.Done()
			content, err := e.Extract(ctx, p.Body, userQuestion, targetInformation, p.URL)
			if err != nil {
				log.Printf("[Extractor] Degrading %s: %v", p.URL, err)
				content = Degraded(p.URL, p.Title, p.Snippet)
			}
			results[idx] = content
		}(i, page)
	}
	wg.Wait()

	Rank(results)
	return results
}

// Rank sorts in place by relevance descending, then confidence descending.
// The sort is stable so full ties keep discovery order.
func Rank(contents []*ExtractedContent) {
	sort.SliceStable(contents, func(i, j int) bool {
		if contents[i].RelevanceScore != contents[j].RelevanceScore {
			return contents[i].RelevanceScore > contents[j].RelevanceScore
		}
		return contents[i].Confidence > contents[j].Confidence
	})
}
