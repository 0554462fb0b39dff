package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/amityadav/webresearch/internal/extractor"
	"github.com/amityadav/webresearch/internal/fetcher"
	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/amityadav/webresearch/internal/reflector"
	"github.com/amityadav/webresearch/internal/search"
)

// Termination reasons for a retrieval run
const (
	ReasonSufficient    = "sufficient"
	ReasonMaxIterations = "max-iterations"
	ReasonNoResults     = "no-results"
	ReasonNoContent     = "no-content"
	ReasonNoRefinement  = "no-refinement"
	ReasonRateLimited   = "rate-limited"
	ReasonSearchFailed  = "search-failed"
	ReasonCancelled     = "cancelled"
)

// Searcher is the identity-scoped, rate-gated search capability
type Searcher interface {
	Search(ctx context.Context, identity, query string, maxResults int) ([]search.Result, error)
}

// PageFetcher resolves a batch of URLs through the fallback chain
type PageFetcher interface {
	FetchMultiple(ctx context.Context, urls []string) map[string]*fetcher.Outcome
}

// Analyzer extracts and ranks page content against the question
type Analyzer interface {
	ExtractAndRank(ctx context.Context, pages []extractor.Page, userQuestion, targetInformation string) []*extractor.ExtractedContent
}

// Judge decides whether accumulated evidence is sufficient
type Judge interface {
	Reflect(ctx context.Context, evidence []*extractor.ExtractedContent, targetInformation, userQuestion string, round int) *reflector.Verdict
}

// Options bound one retrieval run
type Options struct {
	MaxRounds     int
	MaxCandidates int
	MaxResults    int
	MinConfidence float64
}

// DefaultOptions returns the standard bounds
func DefaultOptions() Options {
	return Options{
		MaxRounds:     3,
		MaxCandidates: 3,
		MaxResults:    5,
		MinConfidence: 0,
	}
}

// Request describes one retrieval run
type Request struct {
	UserQuestion      string `json:"user_question"`
	TargetInformation string `json:"target_information"`
	InitialQuery      string `json:"initial_query"`
	Identity          string `json:"identity,omitempty"`
}

// Result is the accumulated outcome of a run. Evidence is ranked and
// filtered by the configured confidence floor.
type Result struct {
	RunID             string                        `json:"run_id"`
	SearchResults     []search.Result               `json:"search_results"`
	Evidence          []*extractor.ExtractedContent `json:"extracted_content"`
	Rounds            int                           `json:"rounds"`
	TerminationReason string                        `json:"termination_reason"`
}

// Controller drives the search → fetch → extract → reflect loop
type Controller struct {
	searcher Searcher
	fetcher  PageFetcher
	analyzer Analyzer
	judge    Judge
	opts     Options
}

// NewController wires the pipeline stages together
func NewController(searcher Searcher, pf PageFetcher, analyzer Analyzer, judge Judge, opts Options) *Controller {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 3
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 3
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Controller{
		searcher: searcher,
		fetcher:  pf,
		analyzer: analyzer,
		judge:    judge,
		opts:     opts,
	}
}

// Run executes up to MaxRounds of iterative retrieval. It always returns
// the accumulated state; the error is non-nil only when the run aborted
// (rate limit, search exhaustion, cancellation).
func (c *Controller) Run(ctx context.Context, req Request, sink ProgressSink) (*Result, error) {
	runID := uuid.NewString()
	identity := req.Identity
	if identity == "" {
		identity = "anonymous"
	}
	query := req.InitialQuery
	if query == "" {
		query = req.UserQuestion
	}
	if query == "" {
		return nil, fmt.Errorf("empty query and user question")
	}

	state := newState()
	log.Printf("[Retrieval] Run %s starting (identity=%s, query=%q)", runID, identity, query)

	rounds := 0
	for round := 1; round <= c.opts.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return c.finish(state, runID, rounds, ReasonCancelled, sink, round), err
		}
		rounds = round

		c.emit(sink, runID, round, StageSearching, fmt.Sprintf("searching %q", query))
		results, err := c.searcher.Search(ctx, identity, query, c.opts.MaxResults)
		if err != nil {
			reason := ReasonSearchFailed
			if errors.Is(err, limiter.ErrLimitExceeded) {
				reason = ReasonRateLimited
			}
			return c.finish(state, runID, rounds, reason, sink, round), err
		}
		state.addResults(results)

		if len(results) == 0 {
			return c.finish(state, runID, rounds, ReasonNoResults, sink, round), nil
		}

		candidates := state.nextCandidates(c.opts.MaxCandidates)
		if len(candidates) == 0 {
			// Everything discovered so far is already fetched; nothing new
			// this round can improve the evidence.
			return c.finish(state, runID, rounds, ReasonNoContent, sink, round), nil
		}

		if err := ctx.Err(); err != nil {
			return c.finish(state, runID, rounds, ReasonCancelled, sink, round), err
		}

		c.emit(sink, runID, round, StageFetching, fmt.Sprintf("fetching %d candidates", len(candidates)))
		urls := make([]string, len(candidates))
		byURL := make(map[string]search.Result, len(candidates))
		for i, cand := range candidates {
			urls[i] = cand.URL
			byURL[cand.URL] = cand
			state.markFetched(cand.URL)
		}
		outcomes := c.fetcher.FetchMultiple(ctx, urls)

		var pages []extractor.Page
		var degraded []*extractor.ExtractedContent
		for _, cand := range candidates {
			outcome, ok := outcomes[cand.URL]
			if !ok || outcome == nil || outcome.Err != nil || outcome.Record == nil {
				degraded = append(degraded, extractor.Degraded(cand.URL, cand.Title, cand.Snippet))
				continue
			}
			pages = append(pages, extractor.Page{
				URL:     cand.URL,
				Title:   outcome.Record.Title,
				Body:    outcome.Record.Body,
				Snippet: cand.Snippet,
			})
		}

		state.mergeEvidence(degraded)
		if len(pages) == 0 {
			return c.finish(state, runID, rounds, ReasonNoContent, sink, round), nil
		}

		if err := ctx.Err(); err != nil {
			return c.finish(state, runID, rounds, ReasonCancelled, sink, round), err
		}

		c.emit(sink, runID, round, StageExtracting, fmt.Sprintf("extracting %d pages", len(pages)))
		extracted := c.analyzer.ExtractAndRank(ctx, pages, req.UserQuestion, req.TargetInformation)
		state.mergeEvidence(extracted)

		if err := ctx.Err(); err != nil {
			return c.finish(state, runID, rounds, ReasonCancelled, sink, round), err
		}

		c.emit(sink, runID, round, StageReflecting, fmt.Sprintf("judging %d evidence entries", len(state.Evidence())))
		verdict := c.judge.Reflect(ctx, state.Evidence(), req.TargetInformation, req.UserQuestion, round)

		if verdict.Sufficient {
			return c.finish(state, runID, rounds, ReasonSufficient, sink, round), nil
		}
		if round == c.opts.MaxRounds {
			return c.finish(state, runID, rounds, ReasonMaxIterations, sink, round), nil
		}
		if verdict.RefinedQuery == "" {
			return c.finish(state, runID, rounds, ReasonNoRefinement, sink, round), nil
		}

		c.emit(sink, runID, round, StageContinuing, fmt.Sprintf("refining query to %q", verdict.RefinedQuery))
		query = verdict.RefinedQuery
	}

	return c.finish(state, runID, rounds, ReasonMaxIterations, sink, rounds), nil
}

func (c *Controller) finish(state *State, runID string, rounds int, reason string, sink ProgressSink, round int) *Result {
	evidence := state.Evidence()
	extractor.Rank(evidence)
	if c.opts.MinConfidence > 0 {
		kept := evidence[:0]
		for _, e := range evidence {
			if e.Confidence >= c.opts.MinConfidence {
				kept = append(kept, e)
			}
		}
		evidence = kept
	}

	c.emit(sink, runID, round, StageDone, fmt.Sprintf("finished: %s", reason))
	log.Printf("[Retrieval] Run %s done after %d round(s): %s (%d results, %d evidence)",
		runID, rounds, reason, len(state.Results()), len(evidence))

	return &Result{
		RunID:             runID,
		SearchResults:     state.Results(),
		Evidence:          evidence,
		Rounds:            rounds,
		TerminationReason: reason,
	}
}
