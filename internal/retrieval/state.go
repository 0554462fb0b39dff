package retrieval

import (
	"github.com/amityadav/webresearch/internal/extractor"
	"github.com/amityadav/webresearch/internal/search"
)

// State accumulates everything gathered across rounds for one request.
// It is owned by a single Run call and never shared.
type State struct {
	results     []search.Result
	seenResults map[string]bool

	evidence      []*extractor.ExtractedContent
	evidenceIndex map[string]int

	fetched map[string]bool
}

func newState() *State {
	return &State{
		seenResults:   make(map[string]bool),
		evidenceIndex: make(map[string]int),
		fetched:       make(map[string]bool),
	}
}

// addResults merges new search results, deduplicating by normalized URL
// across rounds while preserving discovery order
func (s *State) addResults(results []search.Result) []search.Result {
	var added []search.Result
	for _, r := range results {
		key := search.NormalizeURL(r.URL)
		if s.seenResults[key] {
			continue
		}
		s.seenResults[key] = true
		s.results = append(s.results, r)
		added = append(added, r)
	}
	return added
}

// nextCandidates returns up to n results that have not been fetched yet
func (s *State) nextCandidates(n int) []search.Result {
	var out []search.Result
	for _, r := range s.results {
		if len(out) >= n {
			break
		}
		if s.fetched[search.NormalizeURL(r.URL)] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *State) markFetched(url string) {
	s.fetched[search.NormalizeURL(url)] = true
}

// mergeEvidence adds extracted content, deduplicating by source URL.
// A later extraction for the same URL replaces the earlier one in place,
// keeping discovery order.
func (s *State) mergeEvidence(contents []*extractor.ExtractedContent) {
	for _, c := range contents {
		if c == nil {
			continue
		}
		key := search.NormalizeURL(c.SourceURL)
		if idx, ok := s.evidenceIndex[key]; ok {
			s.evidence[idx] = c
			continue
		}
		s.evidenceIndex[key] = len(s.evidence)
		s.evidence = append(s.evidence, c)
	}
}

// Evidence returns the accumulated extracted content in discovery order
func (s *State) Evidence() []*extractor.ExtractedContent {
	out := make([]*extractor.ExtractedContent, len(s.evidence))
	copy(out, s.evidence)
	return out
}

// Results returns the accumulated search results in discovery order
func (s *State) Results() []search.Result {
	out := make([]search.Result, len(s.results))
	copy(out, s.results)
	return out
}
