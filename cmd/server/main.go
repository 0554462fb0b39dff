package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	appfx "github.com/amityadav/webresearch/internal/fx"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	app := fx.New(
		appfx.ConfigModule,      // Provides: config.Config
		appfx.CacheModule,       // Provides: cache.Cache (memory or Redis)
		appfx.FetcherModule,     // Provides: *fetcher.Fetcher (direct > jina > archive)
		appfx.LimiterModule,     // Provides: *limiter.RateLimiter (memory or Postgres)
		appfx.SearchModule,      // Provides: *search.Client (Tavily or SerpApi)
		appfx.AIModule,          // Provides: ai.Generator (named: "extraction", "reflection")
		appfx.RetrievalModule,   // Provides: *extractor.Extractor, *reflector.Reflector, *retrieval.Controller
		appfx.MaintenanceModule, // Provides: *maintenance.Worker
		appfx.ServerModule,      // Starts HTTP server + maintenance worker

		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ConsoleLogger{W: log.Writer()}
		}),
	)

	// Run blocks until the app receives a shutdown signal
	app.Run()
}
