package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"dotflow/internal/api"
	"dotflow/internal/backend"
	"dotflow/internal/cache"
	"dotflow/internal/config"
	"dotflow/internal/logger"
	"dotflow/internal/planner"
	"dotflow/internal/services"
	"dotflow/internal/websocket"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set up the local cache database
	db, err := cache.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize local cache")
	}
	defer db.Close()

	if err := cache.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply cache migrations")
	}
	store := cache.NewStore(db)

	// Backend command surface and notification channel
	client := backend.NewClient(cfg.BackendURL, cfg.ExecutePerMinute)
	notifier := backend.NewNotifier(cfg.BackendWSURL)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db, hub)
	orderingService := services.NewOrderingService(client, eventService, hub)
	taskService := services.NewTaskService(client, store, orderingService, eventService, hub, cfg.Timezone)

	// Seed from the cache so the first render never waits on the backend,
	// then reconcile against the authoritative task set.
	taskService.SeedFromCache()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := taskService.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial task refresh failed, continuing on cached state")
	}
	cancel()

	notifyCtx, stopNotifier := context.WithCancel(context.Background())
	go notifier.Run(notifyCtx)

	// Queue synchronizer owns the fetch-or-generate protocol
	synchronizer := planner.NewSynchronizer(client, taskService, orderingService, eventService,
		hub, notifier.Notices, cfg.Timezone, cfg.GenerationGrace)
	go synchronizer.Run()

	// Set up router
	router := api.NewRouter(api.Deps{
		Hub:      hub,
		Backend:  client,
		Tasks:    taskService,
		Ordering: orderingService,
		Events:   eventService,
		Queue:    synchronizer,
		Location: cfg.Timezone,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe()")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	synchronizer.Stop()
	stopNotifier()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
