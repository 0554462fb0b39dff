package fx

import (
	"context"
	"log"
	"time"

	"go.uber.org/fx"

	"github.com/amityadav/webresearch/internal/ai"
	"github.com/amityadav/webresearch/internal/cache"
	"github.com/amityadav/webresearch/internal/config"
	"github.com/amityadav/webresearch/internal/extractor"
	"github.com/amityadav/webresearch/internal/fetcher"
	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/amityadav/webresearch/internal/maintenance"
	"github.com/amityadav/webresearch/internal/reflector"
	"github.com/amityadav/webresearch/internal/retrieval"
	"github.com/amityadav/webresearch/internal/search"
	"github.com/amityadav/webresearch/internal/serpapi"
	"github.com/amityadav/webresearch/internal/store"
	"github.com/amityadav/webresearch/internal/tavily"
)

// ============================================================================
// FX MODULES - Group related providers together (like Spring @Configuration)
// ============================================================================

// ConfigModule provides application configuration
var ConfigModule = fx.Module("config",
	fx.Provide(config.Load),
)

// CacheModule provides the page content cache
var CacheModule = fx.Module("cache",
	fx.Provide(NewContentCache),
)

// FetcherModule provides the tiered page fetcher
var FetcherModule = fx.Module("fetcher",
	fx.Provide(NewFetcher),
)

// LimiterModule provides the daily search budget
var LimiterModule = fx.Module("limiter",
	fx.Provide(NewRateLimiter),
)

// SearchModule provides the rate-gated search client
var SearchModule = fx.Module("search",
	fx.Provide(NewSearchClient),
)

// AIModule provides LLM generators for extraction and reflection
var AIModule = fx.Module("ai",
	fx.Provide(
		NewExtractionGenerator,
		NewReflectionGenerator,
	),
)

// RetrievalModule provides the iteration controller and its stages
var RetrievalModule = fx.Module("retrieval",
	fx.Provide(
		NewExtractor,
		NewReflector,
		NewController,
	),
)

// MaintenanceModule provides the scheduled hygiene worker
var MaintenanceModule = fx.Module("maintenance",
	fx.Provide(NewMaintenanceWorker),
)

// ============================================================================
// PROVIDER FUNCTIONS - Constructors that FX will call automatically
// ============================================================================

// NewContentCache creates the page cache: Redis when REDIS_URL is set,
// in-memory otherwise
func NewContentCache(cfg config.Config) (cache.Cache, error) {
	ttl := time.Duration(cfg.CacheTTL) * time.Second

	if cfg.RedisURL != "" {
		c, err := cache.NewRedisCache(cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		log.Printf("[FX] ContentCache initialized (Redis, ttl=%s)", ttl)
		return c, nil
	}

	log.Printf("[FX] ContentCache initialized (memory, ttl=%s)", ttl)
	return cache.NewMemoryCache(ttl), nil
}

// NewFetcher creates the page fetcher with the direct -> jina -> archive
// fallback chain
func NewFetcher(cfg config.Config, c cache.Cache) *fetcher.Fetcher {
	fetchTimeout := time.Duration(cfg.FetchTimeout) * time.Second
	proxyTimeout := time.Duration(cfg.ProxyTimeout) * time.Second

	f := fetcher.NewFetcher(c, cfg.PageBodyLimit, cfg.FetchWorkers,
		fetcher.NewDirectTier(fetchTimeout),
		fetcher.NewJinaTier(cfg.JinaAPIKey, proxyTimeout),
		fetcher.NewArchiveTier(proxyTimeout),
	)
	log.Printf("[FX] Fetcher initialized")
	return f
}

// NewRateLimiter creates the daily search limiter: Postgres-backed when
// DATABASE_URL is set, in-memory otherwise
func NewRateLimiter(cfg config.Config) (*limiter.RateLimiter, error) {
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Printf("[FX] RateLimiter initialized (Postgres, limit=%d/day)", cfg.DailySearchLimit)
		return limiter.NewRateLimiter(st, cfg.DailySearchLimit), nil
	}

	log.Printf("[FX] RateLimiter initialized (memory, limit=%d/day)", cfg.DailySearchLimit)
	return limiter.NewRateLimiter(limiter.NewMemoryUsageStore(), cfg.DailySearchLimit), nil
}

// NewSearchClient picks the configured search provider and wraps it with
// retries and the rate gate. Tavily wins when both keys are present.
func NewSearchClient(cfg config.Config, rl *limiter.RateLimiter) (*search.Client, error) {
	var provider search.Provider

	switch {
	case cfg.TavilyAPIKey != "":
		provider = tavily.NewClient(cfg.TavilyAPIKey)
		log.Printf("[FX] SearchClient initialized (Tavily)")
	case cfg.SerpAPIKey != "":
		provider = serpapi.NewClient(cfg.SerpAPIKey)
		log.Printf("[FX] SearchClient initialized (SerpApi)")
	default:
		log.Fatal("[FX] No search provider configured. Set TAVILY_API_KEY or SERPAPI_API_KEY")
	}

	return search.NewClient(provider, rl, cfg.SearchAttempts), nil
}

// ExtractionGenerator is a named type for the extraction-side generator
type ExtractionGenerator struct {
	fx.Out
	Generator ai.Generator `name:"extraction"`
}

// ReflectionGenerator is a named type for the reflection-side generator
type ReflectionGenerator struct {
	fx.Out
	Generator ai.Generator `name:"reflection"`
}

// NewExtractionGenerator creates the generator used for content extraction.
// Extraction favors a fast model; Groq/Cerebras act as fallbacks when
// configured.
func NewExtractionGenerator(cfg config.Config) (ExtractionGenerator, error) {
	gen, err := buildGenerator(cfg, cfg.ExtractionModel)
	if err != nil {
		return ExtractionGenerator{}, err
	}
	log.Printf("[FX] ExtractionGenerator initialized (%s, model=%s)", gen.Name(), cfg.ExtractionModel)
	return ExtractionGenerator{Generator: gen}, nil
}

// NewReflectionGenerator creates the generator used for sufficiency
// reflection, favoring a reasoning model
func NewReflectionGenerator(cfg config.Config) (ReflectionGenerator, error) {
	gen, err := buildGenerator(cfg, cfg.ReflectionModel)
	if err != nil {
		return ReflectionGenerator{}, err
	}
	log.Printf("[FX] ReflectionGenerator initialized (%s, model=%s)", gen.Name(), cfg.ReflectionModel)
	return ReflectionGenerator{Generator: gen}, nil
}

func buildGenerator(cfg config.Config, model string) (ai.Generator, error) {
	var gens []ai.Generator

	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		gens = append(gens, gemini)
	}
	if cfg.GroqAPIKey != "" {
		gens = append(gens, ai.NewGroqGenerator(cfg.GroqAPIKey, "openai/gpt-oss-120b"))
	}
	if cfg.CerebrasAPIKey != "" {
		gens = append(gens, ai.NewCerebrasGenerator(cfg.CerebrasAPIKey, "gpt-oss-120b"))
	}

	switch len(gens) {
	case 0:
		log.Fatal("[FX] No generation provider configured. Set GEMINI_API_KEY, GROQ_API_KEY or CEREBRAS_API_KEY")
		return nil, nil
	case 1:
		return gens[0], nil
	default:
		return ai.NewMultiGenerator(gens...), nil
	}
}

// ExtractorParams groups dependencies for the extractor (fx.In for named deps)
type ExtractorParams struct {
	fx.In
	Generator ai.Generator `name:"extraction"`
}

// NewExtractor creates the content extractor
func NewExtractor(p ExtractorParams) *extractor.Extractor {
	e := extractor.NewExtractor(p.Generator)
	log.Printf("[FX] Extractor initialized")
	return e
}

// ReflectorParams groups dependencies for the reflector
type ReflectorParams struct {
	fx.In
	Generator ai.Generator `name:"reflection"`
}

// NewReflector creates the sufficiency reflector
func NewReflector(p ReflectorParams) *reflector.Reflector {
	r := reflector.NewReflector(p.Generator)
	log.Printf("[FX] Reflector initialized")
	return r
}

// NewController wires the full retrieval pipeline
func NewController(cfg config.Config, sc *search.Client, f *fetcher.Fetcher, e *extractor.Extractor, r *reflector.Reflector) *retrieval.Controller {
	opts := retrieval.Options{
		MaxRounds:     cfg.MaxRounds,
		MaxCandidates: cfg.MaxCandidates,
		MaxResults:    cfg.MaxResults,
		MinConfidence: cfg.MinConfidence,
	}
	c := retrieval.NewController(sc, f, e, r, opts)
	log.Printf("[FX] Controller initialized (rounds=%d, candidates=%d)", opts.MaxRounds, opts.MaxCandidates)
	return c
}

// NewMaintenanceWorker creates the scheduled hygiene worker
func NewMaintenanceWorker(c cache.Cache, rl *limiter.RateLimiter) *maintenance.Worker {
	w := maintenance.NewWorker(c, rl)
	log.Printf("[FX] MaintenanceWorker initialized")
	return w
}
