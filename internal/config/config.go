package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Search providers
	TavilyAPIKey string
	SerpAPIKey   string

	// Generation providers
	GeminiAPIKey   string
	GroqAPIKey     string
	CerebrasAPIKey string

	// Model selection: extraction favors speed, reflection favors reasoning
	ExtractionModel string
	ReflectionModel string

	// Optional backing stores
	DatabaseURL string
	RedisURL    string

	// Fetcher
	JinaAPIKey     string
	FetchTimeout   int // seconds, per direct fetch
	ProxyTimeout   int // seconds, for jina/archive tiers
	PageBodyLimit  int // max chars kept from a fetched page
	FetchWorkers   int // concurrent fetches per round
	CacheTTL       int // seconds
	SearchAttempts int // retry budget for the search client

	// Iteration loop
	MaxRounds     int
	MaxCandidates int     // pages fetched per round
	MaxResults    int     // search results requested per round
	MinConfidence float64 // evidence below this confidence is dropped from final output

	// Rate limiting
	DailySearchLimit int // <=0 means always allow

	// HTTP surface
	HTTPAddr string
}

// Load loads configuration from environment variables
func Load() Config {
	return Config{
		TavilyAPIKey:    os.Getenv("TAVILY_API_KEY"),
		SerpAPIKey:      os.Getenv("SERPAPI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
		CerebrasAPIKey:  os.Getenv("CEREBRAS_API_KEY"),
		ExtractionModel: getEnv("EXTRACTION_MODEL", "gemini-2.5-flash"),
		ReflectionModel: getEnv("REFLECTION_MODEL", "gemini-2.5-pro"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JinaAPIKey:     os.Getenv("JINA_API_KEY"),
		FetchTimeout:   getEnvInt("FETCH_TIMEOUT", 8),
		ProxyTimeout:   getEnvInt("PROXY_TIMEOUT", 10),
		PageBodyLimit:  getEnvInt("PAGE_BODY_LIMIT", 8000),
		FetchWorkers:   getEnvInt("FETCH_WORKERS", 2),
		CacheTTL:       getEnvInt("CONTENT_CACHE_TTL", 3600),
		SearchAttempts: getEnvInt("SEARCH_ATTEMPTS", 3),

		MaxRounds:     getEnvInt("MAX_ROUNDS", 3),
		MaxCandidates: getEnvInt("MAX_CANDIDATES", 3),
		MaxResults:    getEnvInt("MAX_SEARCH_RESULTS", 5),
		MinConfidence: getEnvFloat("MIN_CONFIDENCE", 0),

		DailySearchLimit: getEnvInt("WEB_SEARCH_DAILY_LIMIT", 100),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
