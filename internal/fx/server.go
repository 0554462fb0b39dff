package fx

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/fx"

	"github.com/amityadav/webresearch/internal/config"
	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/amityadav/webresearch/internal/maintenance"
	"github.com/amityadav/webresearch/internal/retrieval"
	"github.com/amityadav/webresearch/internal/server"
)

// ServerModule starts the HTTP server and the maintenance worker
var ServerModule = fx.Module("server",
	fx.Invoke(
		StartServer,
		StartMaintenanceWorker,
	),
)

// ServerParams groups dependencies for starting the HTTP server
type ServerParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Controller *retrieval.Controller
	Limiter    *limiter.RateLimiter
	Config     config.Config
}

// StartServer starts the HTTP server with lifecycle management
func StartServer(p ServerParams) {
	restHandler := server.CreateRESTHandler(server.Services{
		Controller: p.Controller,
		Limiter:    p.Limiter,
	})
	handler := server.CreateRecoveryHandler(restHandler)

	srv := &http.Server{Addr: p.Config.HTTPAddr, Handler: handler}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Printf("[FX] HTTP Server listening on %s", p.Config.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("[FX] HTTP Server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Printf("[FX] Shutting down HTTP server...")
			return srv.Shutdown(ctx)
		},
	})
}

// WorkerStartParams for the maintenance worker
type WorkerStartParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Worker    *maintenance.Worker
}

// StartMaintenanceWorker starts the scheduled hygiene jobs
func StartMaintenanceWorker(p WorkerStartParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Worker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Worker.Stop()
			return nil
		},
	})
}
