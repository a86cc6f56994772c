package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mr1hm/go-disaster-warehouse/internal/api"
	"github.com/mr1hm/go-disaster-warehouse/internal/bus"
	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/dedup"
	"github.com/mr1hm/go-disaster-warehouse/internal/etl"
	"github.com/mr1hm/go-disaster-warehouse/internal/geocode"
	"github.com/mr1hm/go-disaster-warehouse/internal/ingest"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
	"github.com/mr1hm/go-disaster-warehouse/internal/transform"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	store, err := repository.NewStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fan committed facts out to stream subscribers
	b := bus.New()

	// Start source pollers feeding the staging table
	mgr := ingest.NewManager(cfg, store)
	mgr.Start(ctx)

	// Start the transform/load and dedup loops
	transformer := transform.NewTransformer(geocode.NewClient(cfg.Geocode))
	pipeline := etl.NewPipeline(store, store, transformer, b, cfg.ETL)
	deduper := dedup.NewDeduper(store, cfg.Dedup)
	sched := etl.NewScheduler(pipeline, deduper, cfg.ETL, cfg.Dedup)
	sched.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(store, sched, b)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	sched.Stop()
	mgr.Stop()
	b.Close() // Close all streams gracefully

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
