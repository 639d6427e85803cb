package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pawfulness/umamusume-tracker/api"
	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/config"
	"github.com/Pawfulness/umamusume-tracker/fetcher"
	"github.com/Pawfulness/umamusume-tracker/metrics"
	"github.com/Pawfulness/umamusume-tracker/refresh"
	"github.com/Pawfulness/umamusume-tracker/registry"
	"github.com/Pawfulness/umamusume-tracker/worker"
)

func main() {
	// Load configuration
	cfg := config.Load()

	metrics.Init("events-tracker", "1.0.0", cfg.Environment)

	// Wire the refresh pipeline: fetcher -> transformer -> cache store.
	store := cache.NewStore()
	source := fetcher.NewFetcher(cfg)
	coordinator := refresh.NewCoordinator(source, store, cfg.FetchTimeout)

	// Setup router
	r := api.Setup(store, coordinator)

	// Create and start worker
	refreshWorker := worker.NewWorker(cfg, coordinator)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := refreshWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	// Register with the dashboard, if a services file is configured.
	if cfg.RegistryFile != "" {
		registrar := registry.NewRegistrar(cfg)
		if err := registrar.Register(); err != nil {
			log.Printf("[WARN] Failed to register service: %v", err)
		}
		if err := registrar.Watch(ctx); err != nil {
			log.Printf("[WARN] Failed to watch services file: %v", err)
		}
	}

	// Setup HTTP server
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	// Start server in background
	go func() {
		log.Printf("Events tracker starting on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down events tracker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	refreshWorker.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Events tracker stopped")
}
