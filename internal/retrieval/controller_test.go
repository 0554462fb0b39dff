package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amityadav/webresearch/internal/cache"
	"github.com/amityadav/webresearch/internal/extractor"
	"github.com/amityadav/webresearch/internal/fetcher"
	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/amityadav/webresearch/internal/reflector"
	"github.com/amityadav/webresearch/internal/search"
)

// fakeSearcher returns scripted results per call
type fakeSearcher struct {
	rounds  [][]search.Result
	errs    []error
	calls   int
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, identity, query string, maxResults int) ([]search.Result, error) {
	n := f.calls
	f.calls++
	f.queries = append(f.queries, query)
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	if n < len(f.rounds) {
		return f.rounds[n], nil
	}
	return nil, nil
}

// fakeFetcher succeeds for every URL except those in fail
type fakeFetcher struct {
	fail  map[string]bool
	calls int
}

func (f *fakeFetcher) FetchMultiple(ctx context.Context, urls []string) map[string]*fetcher.Outcome {
	f.calls++
	out := make(map[string]*fetcher.Outcome, len(urls))
	for _, u := range urls {
		if f.fail[u] {
			out[u] = &fetcher.Outcome{Err: fetcher.ErrAllTiersFailed}
			continue
		}
		out[u] = &fetcher.Outcome{Record: &cache.PageRecord{
			URL:   u,
			Title: "Title of " + u,
			Body:  "body of " + u,
		}}
	}
	return out
}

// fakeAnalyzer scores pages via a URL-keyed table
type fakeAnalyzer struct {
	scores     map[string]float64
	confidence map[string]float64
	calls      int
}

func (f *fakeAnalyzer) ExtractAndRank(ctx context.Context, pages []extractor.Page, userQuestion, targetInformation string) []*extractor.ExtractedContent {
	f.calls++
	out := make([]*extractor.ExtractedContent, 0, len(pages))
	for _, p := range pages {
		conf := f.confidence[p.URL]
		if conf == 0 {
			conf = 0.5
		}
		out = append(out, &extractor.ExtractedContent{
			SourceURL:      p.URL,
			Title:          p.Title,
			Summary:        "summary of " + p.URL,
			RelevanceScore: f.scores[p.URL],
			Confidence:     conf,
			ExtractedAt:    time.Now(),
		})
	}
	extractor.Rank(out)
	return out
}

// fakeJudge returns scripted verdicts per round
type fakeJudge struct {
	verdicts []*reflector.Verdict
	calls    int
}

func (f *fakeJudge) Reflect(ctx context.Context, evidence []*extractor.ExtractedContent, targetInformation, userQuestion string, round int) *reflector.Verdict {
	n := f.calls
	f.calls++
	if n < len(f.verdicts) {
		return f.verdicts[n]
	}
	return &reflector.Verdict{Sufficient: true, Confidence: 1}
}

type recordingSink struct {
	events []Progress
	err    error
}

func (s *recordingSink) Publish(p Progress) error {
	s.events = append(s.events, p)
	return s.err
}

func results(urls ...string) []search.Result {
	out := make([]search.Result, len(urls))
	for i, u := range urls {
		out[i] = search.Result{Title: "Title of " + u, URL: u, Snippet: "snippet of " + u}
	}
	return out
}

func testRequest() Request {
	return Request{
		UserQuestion:      "what is X?",
		TargetInformation: "X overview",
		InitialQuery:      "X",
		Identity:          "tester",
	}
}

func TestRunSingleSufficientRound(t *testing.T) {
	// 5 results, 3 candidates fetched, round 1 judged sufficient
	searcher := &fakeSearcher{rounds: [][]search.Result{
		results("https://a.com", "https://b.com", "https://c.com", "https://d.com", "https://e.com"),
	}}
	analyzer := &fakeAnalyzer{scores: map[string]float64{
		"https://a.com": 6.5,
		"https://b.com": 9.0,
		"https://c.com": 3.0,
	}}
	judge := &fakeJudge{verdicts: []*reflector.Verdict{{Sufficient: true, Confidence: 0.9}}}
	c := NewController(searcher, &fakeFetcher{}, analyzer, judge, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, ReasonSufficient, res.TerminationReason)
	assert.Len(t, res.SearchResults, 5)
	require.Len(t, res.Evidence, 3)
	assert.Equal(t, []float64{9.0, 6.5, 3.0}, []float64{
		res.Evidence[0].RelevanceScore,
		res.Evidence[1].RelevanceScore,
		res.Evidence[2].RelevanceScore,
	})
	assert.NotEmpty(t, res.RunID)
}

func TestRunTwoRoundsMergesAndDedupes(t *testing.T) {
	// Round 2 rediscovers a.com and adds a new URL; evidence dedupes by URL
	searcher := &fakeSearcher{rounds: [][]search.Result{
		results("https://a.com", "https://b.com"),
		results("https://a.com", "https://f.com"),
	}}
	analyzer := &fakeAnalyzer{scores: map[string]float64{
		"https://a.com": 8,
		"https://b.com": 5,
		"https://f.com": 7,
	}}
	judge := &fakeJudge{verdicts: []*reflector.Verdict{
		{Sufficient: false, RefinedQuery: "X trend 2024", Confidence: 0.6},
		{Sufficient: true, Confidence: 0.9},
	}}
	c := NewController(searcher, &fakeFetcher{}, analyzer, judge, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, ReasonSufficient, res.TerminationReason)
	assert.Equal(t, []string{"X", "X trend 2024"}, searcher.queries)
	// a.com appears once despite being in both rounds
	assert.Len(t, res.SearchResults, 3)
	assert.Len(t, res.Evidence, 3)
	seen := map[string]int{}
	for _, e := range res.Evidence {
		seen[e.SourceURL]++
	}
	assert.Equal(t, 1, seen["https://a.com"])
}

func TestRunNoResults(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{nil}}
	ff := &fakeFetcher{}
	analyzer := &fakeAnalyzer{}
	c := NewController(searcher, ff, analyzer, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoResults, res.TerminationReason)
	assert.Empty(t, res.Evidence)
	assert.Zero(t, ff.calls)
	assert.Zero(t, analyzer.calls)
}

func TestRunRateLimitedAtRoundTwoKeepsEvidence(t *testing.T) {
	searcher := &fakeSearcher{
		rounds: [][]search.Result{
			results("https://a.com"),
			nil,
		},
		errs: []error{nil, fmt.Errorf("gate: %w", limiter.ErrLimitExceeded)},
	}
	analyzer := &fakeAnalyzer{scores: map[string]float64{"https://a.com": 4}}
	judge := &fakeJudge{verdicts: []*reflector.Verdict{
		{Sufficient: false, RefinedQuery: "X more", Confidence: 0.5},
	}}
	c := NewController(searcher, &fakeFetcher{}, analyzer, judge, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, limiter.ErrLimitExceeded)
	assert.Equal(t, ReasonRateLimited, res.TerminationReason)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "https://a.com", res.Evidence[0].SourceURL)
}

func TestRunSearchFailureAborts(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{fmt.Errorf("search: %w", search.ErrRetriesExhausted)}}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, search.ErrRetriesExhausted)
	assert.Equal(t, ReasonSearchFailed, res.TerminationReason)
}

func TestRunRoundCapHolds(t *testing.T) {
	// Reflector never satisfied, always refines; run must stop at 3 rounds
	searcher := &fakeSearcher{rounds: [][]search.Result{
		results("https://r1.com"),
		results("https://r2.com"),
		results("https://r3.com"),
		results("https://r4.com"),
	}}
	judge := &fakeJudge{verdicts: []*reflector.Verdict{
		{Sufficient: false, RefinedQuery: "q2"},
		{Sufficient: false, RefinedQuery: "q3"},
		{Sufficient: false, RefinedQuery: "q4"},
		{Sufficient: false, RefinedQuery: "q5"},
	}}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, judge, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, ReasonMaxIterations, res.TerminationReason)
	assert.Equal(t, 3, searcher.calls)
}

func TestRunNoRefinementTerminates(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://a.com")}}
	judge := &fakeJudge{verdicts: []*reflector.Verdict{
		{Sufficient: false, RefinedQuery: "", Confidence: 0.4},
	}}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, judge, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, ReasonNoRefinement, res.TerminationReason)
}

func TestRunAllFetchesFailedDegradesToSnippets(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://a.com", "https://b.com")}}
	ff := &fakeFetcher{fail: map[string]bool{"https://a.com": true, "https://b.com": true}}
	analyzer := &fakeAnalyzer{}
	c := NewController(searcher, ff, analyzer, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonNoContent, res.TerminationReason)
	assert.Zero(t, analyzer.calls)
	require.Len(t, res.Evidence, 2)
	for _, e := range res.Evidence {
		assert.Zero(t, e.RelevanceScore)
		assert.Zero(t, e.Confidence)
		assert.Contains(t, e.Summary, "snippet of ")
	}
}

func TestRunPartialFetchFailureMixesDegradedEvidence(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://ok.com", "https://bad.com")}}
	ff := &fakeFetcher{fail: map[string]bool{"https://bad.com": true}}
	analyzer := &fakeAnalyzer{scores: map[string]float64{"https://ok.com": 6}}
	c := NewController(searcher, ff, analyzer, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonSufficient, res.TerminationReason)
	require.Len(t, res.Evidence, 2)
	assert.Equal(t, "https://ok.com", res.Evidence[0].SourceURL)
	assert.Equal(t, "https://bad.com", res.Evidence[1].SourceURL)
	assert.Zero(t, res.Evidence[1].RelevanceScore)
}

func TestRunEmitsOrderedProgress(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://a.com")}}
	sink := &recordingSink{}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), sink)
	require.NoError(t, err)

	var stages []string
	for _, e := range sink.events {
		stages = append(stages, e.Stage)
		assert.Equal(t, res.RunID, e.RunID)
		assert.Equal(t, 1, e.Round)
	}
	assert.Equal(t, []string{StageSearching, StageFetching, StageExtracting, StageReflecting, StageDone}, stages)
}

func TestRunSinkFailureDoesNotAbort(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://a.com")}}
	sink := &recordingSink{err: errors.New("sink down")}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(context.Background(), testRequest(), sink)
	require.NoError(t, err)
	assert.Equal(t, ReasonSufficient, res.TerminationReason)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://a.com")}}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	res, err := c.Run(ctx, testRequest(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCancelled, res.TerminationReason)
	assert.Zero(t, searcher.calls)
}

func TestRunMinConfidenceFiltersFinalEvidence(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{results("https://hi.com", "https://lo.com")}}
	analyzer := &fakeAnalyzer{
		scores:     map[string]float64{"https://hi.com": 8, "https://lo.com": 7},
		confidence: map[string]float64{"https://hi.com": 0.9, "https://lo.com": 0.2},
	}
	opts := DefaultOptions()
	opts.MinConfidence = 0.5
	c := NewController(searcher, &fakeFetcher{}, analyzer, &fakeJudge{}, opts)

	res, err := c.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "https://hi.com", res.Evidence[0].SourceURL)
}

func TestRunFallsBackToUserQuestionAsQuery(t *testing.T) {
	searcher := &fakeSearcher{rounds: [][]search.Result{nil}}
	c := NewController(searcher, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	req := testRequest()
	req.InitialQuery = ""
	_, err := c.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"what is X?"}, searcher.queries)
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	c := NewController(&fakeSearcher{}, &fakeFetcher{}, &fakeAnalyzer{}, &fakeJudge{}, DefaultOptions())

	_, err := c.Run(context.Background(), Request{}, nil)
	require.Error(t, err)
}
