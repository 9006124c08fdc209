package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/fitness-coach/internal/api"
	"alcyxob/fitness-coach/internal/app"
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/storage"
	"alcyxob/fitness-coach/internal/worker"

	"github.com/gin-gonic/gin"
)

// @title Fitness Coach API
// @version 1.0
// @description Workout plans, progress gating, premium memberships and trainer schedules.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		// The logger is not configured yet.
		logger.New(logger.Config{Level: "info"}).Fatalf("could not load config: %v", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("starting fitness coach server")

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Database ---
	db, disconnect, err := app.Database(cfg.Database)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		log.Info("disconnecting mongodb")
		if err := disconnect(); err != nil {
			log.ErrorWithErr(err, "failed to disconnect mongodb")
		}
	}()
	log.With("database", cfg.Database.Name).Info("database connection established")

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), time.Minute)
	if err := app.EnsureIndexes(indexCtx, db); err != nil {
		cancelIndex()
		log.Fatalf("could not ensure indexes: %v", err)
	}
	cancelIndex()

	// --- Storage ---
	storeCtx, cancelStore := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewS3Storage(storeCtx, cfg.S3, log.With("component", "storage"))
	cancelStore()
	if err != nil {
		log.Fatalf("could not initialize media storage: %v", err)
	}

	// --- Services ---
	repos := app.NewRepositories(db)
	services, err := app.NewServices(cfg, repos, store, timeutil.SystemClock(), log)
	if err != nil {
		log.Fatalf("could not build services: %v", err)
	}

	var sweeper *worker.PremiumSweeper
	if cfg.Premium.SweepEnabled {
		sweeper = worker.NewPremiumSweeper(services.Premium, cfg.Premium.SweepSchedule, log.With("component", "sweeper"))
		if err := sweeper.Start(); err != nil {
			log.Fatalf("could not start premium sweeper: %v", err)
		}
	}

	limiter := api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-stopCleanup:
				return
			}
		}
	}()
	router := api.NewRouter(services, log, limiter)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.ErrorWithErr(err, "server forced to shutdown")
	}
	close(stopCleanup)
	if sweeper != nil {
		sweeper.Stop(ctxShutdown)
	}
	log.Info("server exiting")
}
