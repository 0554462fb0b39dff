package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amityadav/webresearch/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTier scripts a tier's behavior per URL
type stubTier struct {
	name    string
	pages   map[string]string // url -> body; missing url means failure
	calls   int32
	active  int32
	maxSeen int32
	delay   time.Duration
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Fetch(_ context.Context, url string) (*cache.PageRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	n := atomic.AddInt32(&s.active, 1)
	for {
		seen := atomic.LoadInt32(&s.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&s.maxSeen, seen, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	atomic.AddInt32(&s.active, -1)

	body, ok := s.pages[url]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return &cache.PageRecord{URL: url, Title: "t", Body: body}, nil
}

func TestFetchFallbackOrder(t *testing.T) {
	const url = "https://example.com/blocked"
	direct := &stubTier{name: cache.SourceDirect}
	jina := &stubTier{name: cache.SourceJina}
	archive := &stubTier{name: cache.SourceArchive, pages: map[string]string{url: "archived body"}}

	f := NewFetcher(cache.NewMemoryCache(time.Minute), 0, 0, direct, jina, archive)

	record, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceArchive, record.Source, "only the archive tier succeeds")
	assert.Equal(t, "archived body", record.Body)
	assert.EqualValues(t, 1, direct.calls, "direct tier must be attempted first")
	assert.EqualValues(t, 1, jina.calls, "jina tier must be attempted second")
}

func TestFetchAllTiersFailed(t *testing.T) {
	f := NewFetcher(cache.NewMemoryCache(time.Minute), 0, 0,
		&stubTier{name: cache.SourceDirect},
		&stubTier{name: cache.SourceJina},
		&stubTier{name: cache.SourceArchive},
	)

	_, err := f.Fetch(context.Background(), "https://example.com/gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllTiersFailed)
}

func TestFetchWritesThroughToCache(t *testing.T) {
	const url = "https://example.com/a"
	direct := &stubTier{name: cache.SourceDirect, pages: map[string]string{url: "fresh body"}}
	f := NewFetcher(cache.NewMemoryCache(time.Minute), 0, 0, direct)

	first, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceDirect, first.Source)

	second, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceCache, second.Source)
	assert.Equal(t, "fresh body", second.Body)
	assert.EqualValues(t, 1, direct.calls, "second fetch must not hit the tier")
}

func TestFetchTruncatesBody(t *testing.T) {
	const url = "https://example.com/long"
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	direct := &stubTier{name: cache.SourceDirect, pages: map[string]string{url: string(long)}}
	f := NewFetcher(cache.NewMemoryCache(time.Minute), 100, 0, direct)

	record, err := f.Fetch(context.Background(), url)
	require.NoError(t, err)
	assert.Len(t, record.Body, 100)
}

func TestFetchMultipleIsolatesFailures(t *testing.T) {
	direct := &stubTier{name: cache.SourceDirect, pages: map[string]string{
		"https://a.test/1": "one",
		"https://a.test/3": "three",
	}}
	f := NewFetcher(cache.NewMemoryCache(time.Minute), 0, 2, direct)

	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}
	outcomes := f.FetchMultiple(context.Background(), urls)

	require.Len(t, outcomes, 3)
	require.NoError(t, outcomes["https://a.test/1"].Err)
	assert.Equal(t, "one", outcomes["https://a.test/1"].Record.Body)
	assert.ErrorIs(t, outcomes["https://a.test/2"].Err, ErrAllTiersFailed)
	require.NoError(t, outcomes["https://a.test/3"].Err)
}

func TestFetchMultipleBoundsConcurrency(t *testing.T) {
	pages := make(map[string]string)
	var urls []string
	for i := 0; i < 8; i++ {
		u := fmt.Sprintf("https://a.test/%d", i)
		pages[u] = "body"
		urls = append(urls, u)
	}
	direct := &stubTier{name: cache.SourceDirect, pages: pages, delay: 20 * time.Millisecond}
	f := NewFetcher(cache.NewMemoryCache(time.Minute), 0, 2, direct)

	outcomes := f.FetchMultiple(context.Background(), urls)
	require.Len(t, outcomes, 8)
	assert.LessOrEqual(t, direct.maxSeen, int32(2), "no more than 2 concurrent fetches")
}

func TestDirectTierExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Quantum Leap</title></head><body>
			<nav>Home | About | Contact navigation links here</nav>
			<article>
				<h1>Quantum computing milestones</h1>
				<p>Researchers demonstrated error-corrected logical qubits at scale this year.</p>
				<p>The result moves practical quantum advantage measurably closer.</p>
			</article>
			<footer>Copyright notice and other boilerplate text</footer>
		</body></html>`)
	}))
	defer srv.Close()

	tier := NewDirectTier(2 * time.Second)
	record, err := tier.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Quantum Leap", record.Title)
	assert.Contains(t, record.Body, "error-corrected logical qubits")
	assert.NotContains(t, record.Body, "Copyright notice")
	assert.NotContains(t, record.Body, "navigation links")
}

func TestDirectTierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	tier := NewDirectTier(2 * time.Second)
	_, err := tier.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestJinaTierParsesReaderOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Title: Reader Title\nMarkdown content of the page goes here.")
	}))
	defer srv.Close()

	tier := NewJinaTier("", 2*time.Second)
	tier.baseURL = srv.URL + "/"

	record, err := tier.Fetch(context.Background(), "https://example.com/js-heavy")
	require.NoError(t, err)
	assert.Equal(t, "Reader Title", record.Title)
	assert.Contains(t, record.Body, "Markdown content")
}

func TestArchiveTierFetchesSnapshot(t *testing.T) {
	snapshot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Archived Page</title><style>p{color:red}</style></head>
			<body><script>var x=1;</script><p>Preserved article text from the snapshot.</p></body></html>`)
	}))
	defer snapshot.Close()

	cdx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[["timestamp","original"],["20240101120000",%q]]`, snapshot.URL)
	}))
	defer cdx.Close()

	tier := NewArchiveTier(2 * time.Second)
	tier.cdxURL = cdx.URL

	record, err := tier.Fetch(context.Background(), "https://example.com/dead")
	require.NoError(t, err)
	assert.Equal(t, "Archived Page", record.Title)
	assert.Contains(t, record.Body, "Preserved article text")
	assert.NotContains(t, record.Body, "var x=1")
	assert.NotContains(t, record.Body, "color:red")
}

func TestArchiveTierNoSnapshot(t *testing.T) {
	cdx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[["timestamp","original"]]`)
	}))
	defer cdx.Close()

	tier := NewArchiveTier(2 * time.Second)
	tier.cdxURL = cdx.URL

	_, err := tier.Fetch(context.Background(), "https://example.com/never-archived")
	assert.Error(t, err)
}
