package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitloop/internal/config"
	"habitloop/internal/events"
	"habitloop/internal/handler"
	"habitloop/internal/httpserver"
	"habitloop/internal/repository"
	"habitloop/internal/scheduler"
	"habitloop/internal/service/contexts"
	"habitloop/internal/service/habits"
	"habitloop/internal/service/onboarding"
	"habitloop/internal/service/progress"
	"habitloop/internal/service/progression"
	"habitloop/internal/service/scoring"
	"habitloop/pkg/db"
	"habitloop/pkg/logger"
	"habitloop/pkg/outbox"
	"habitloop/pkg/redis"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting habitloop server...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("scheduler_url", cfg.Scheduler.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.EnsureSchema(schemaCtx, dbConn, log); err != nil {
		schemaCancel()
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}
	schemaCancel()

	// Redis lock for per-owner serialization
	redisClient := redis.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	ownerLock := redis.NewOwnerLock(redisClient)

	// Repositories
	habitRepo := repository.NewHabitRepository(dbConn, log)
	progressRepo := repository.NewProgressRepository(dbConn, log)
	contextRepo := repository.NewContextRepository(dbConn, log)
	scoreRepo := repository.NewScoreRepository(dbConn, log)
	linkRepo := repository.NewTriggerLinkRepository(dbConn, log)
	onboardingRepo := repository.NewOnboardingRepository(dbConn, log)

	// Domain events go through the transactional outbox; the worker
	// publishes them.
	outboxRepo := outbox.NewRepository(dbConn)
	sink := events.NewOutboxSink(outboxRepo, log)

	// Scheduler adapter
	location, err := time.LoadLocation(cfg.Habits.DefaultTimezone)
	if err != nil {
		log.Warn("Invalid default timezone, falling back to UTC",
			zap.String("timezone", cfg.Habits.DefaultTimezone),
			zap.Error(err),
		)
		location = time.UTC
	}
	triggerClient := scheduler.NewHTTPTriggerClient(cfg.Scheduler)
	triggers := scheduler.NewTriggers(triggerClient, linkRepo, cfg.Scheduler.Owner, location, log)

	// Services
	habitSvc := habits.NewService(habitRepo, sink, log)
	progressSvc := progress.NewService(progressRepo, habitRepo, sink, log)
	contextSvc := contexts.NewService(contextRepo, sink, log)
	scoringSvc := scoring.NewService(scoreRepo, habitRepo, progressSvc, ownerLock, sink, log)
	progressionSvc := progression.NewService(habitRepo, progressRepo, contextRepo, ownerLock, sink, log)
	onboardingSvc := onboarding.NewService(onboardingRepo, habitSvc, triggers, cfg.Habits.DefaultsFile, log)

	// HTTP server
	router := httpserver.NewRouter(httpserver.Handlers{
		Habits:      handler.NewHabitHandler(habitSvc, log),
		Progress:    handler.NewProgressHandler(progressSvc, log),
		Contexts:    handler.NewContextHandler(contextSvc, log),
		Scores:      handler.NewScoreHandler(scoringSvc, log),
		Progression: handler.NewProgressionHandler(progressionSvc, log),
		Onboarding:  handler.NewOnboardingHandler(onboardingSvc, log),
	}, cfg.JWT.Secret, log, dbConn, nil)

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("habitloop server is fully initialized and running",
		zap.String("http_port", port),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habitloop server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	dbConn.Close()
	log.Info("habitloop server shutdown complete")
}
