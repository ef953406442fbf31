package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitloop/internal/config"
	"habitloop/internal/events"
	"habitloop/internal/mqhandler"
	"habitloop/internal/repository"
	"habitloop/internal/scheduler"
	"habitloop/internal/service/contexts"
	"habitloop/internal/service/progress"
	"habitloop/internal/service/progression"
	"habitloop/internal/service/scoring"
	"habitloop/pkg/db"
	"habitloop/pkg/logger"
	"habitloop/pkg/mq"
	"habitloop/pkg/outbox"
	"habitloop/pkg/redis"

	"go.uber.org/zap"
)

const reconcileInterval = 1 * time.Hour

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting habitloop worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
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

	redisClient := redis.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	ownerLock := redis.NewOwnerLock(redisClient)

	// Repositories and services
	habitRepo := repository.NewHabitRepository(dbConn, log)
	progressRepo := repository.NewProgressRepository(dbConn, log)
	contextRepo := repository.NewContextRepository(dbConn, log)
	scoreRepo := repository.NewScoreRepository(dbConn, log)
	linkRepo := repository.NewTriggerLinkRepository(dbConn, log)

	outboxRepo := outbox.NewRepository(dbConn)
	sink := events.NewOutboxSink(outboxRepo, log)

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

	progressSvc := progress.NewService(progressRepo, habitRepo, sink, log)
	contextSvc := contexts.NewService(contextRepo, sink, log)
	scoringSvc := scoring.NewService(scoreRepo, habitRepo, progressSvc, ownerLock, sink, log)
	progressionSvc := progression.NewService(habitRepo, progressRepo, contextRepo, ownerLock, sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbox dispatcher: drains domain events onto the MQ.
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	go dispatcher.Start(ctx)

	// trigger.fired consumer: routes scheduler callbacks.
	triggerHandler := mqhandler.NewTriggerFiredHandler(
		habitRepo,
		progressionSvc,
		scoringSvc,
		contextSvc,
		triggers,
		log,
	)

	consumer, err := mq.NewConsumer(cfg.MQ.URL, "habitloop.trigger.fired", mq.TriggerFired, log)
	if err != nil {
		log.Fatal("Failed to init trigger.fired consumer", zap.Error(err))
	}
	defer consumer.Close()

	if err := consumer.SetDeadLetter(publisher); err != nil {
		log.Fatal("Failed to set up trigger.fired DLQ", zap.Error(err))
	}
	consumer.SetHandler(triggerHandler.Handle)
	go func() {
		log.Info("Starting trigger.fired consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("trigger.fired consumer failed", zap.Error(err))
		}
	}()

	// habit.created consumer: schedules the daily check-in trigger.
	habitCreatedHandler := mqhandler.NewHabitCreatedHandler(habitRepo, linkRepo, triggers, log)
	habitCreatedConsumer, err := mq.NewConsumer(cfg.MQ.URL, "habitloop.habit.created", mq.HabitCreated, log)
	if err != nil {
		log.Fatal("Failed to init habit.created consumer", zap.Error(err))
	}
	defer habitCreatedConsumer.Close()

	if err := habitCreatedConsumer.SetDeadLetter(publisher); err != nil {
		log.Fatal("Failed to set up habit.created DLQ", zap.Error(err))
	}
	habitCreatedConsumer.SetHandler(habitCreatedHandler.Handle)
	go func() {
		log.Info("Starting habit.created consumer...")
		if err := habitCreatedConsumer.StartConsuming(); err != nil {
			log.Fatal("habit.created consumer failed", zap.Error(err))
		}
	}()

	// context.created consumer: schedules the context refresh trigger.
	contextCreatedHandler := mqhandler.NewContextCreatedHandler(contextRepo, triggers, log)
	contextCreatedConsumer, err := mq.NewConsumer(cfg.MQ.URL, "habitloop.context.created", mq.ContextCreated, log)
	if err != nil {
		log.Fatal("Failed to init context.created consumer", zap.Error(err))
	}
	defer contextCreatedConsumer.Close()

	if err := contextCreatedConsumer.SetDeadLetter(publisher); err != nil {
		log.Fatal("Failed to set up context.created DLQ", zap.Error(err))
	}
	contextCreatedConsumer.SetHandler(contextCreatedHandler.Handle)
	go func() {
		log.Info("Starting context.created consumer...")
		if err := contextCreatedConsumer.StartConsuming(); err != nil {
			log.Fatal("context.created consumer failed", zap.Error(err))
		}
	}()

	// Periodic check-in trigger reconciliation: habits created while
	// the scheduler was unreachable get their triggers backfilled.
	reconciler := scheduler.NewReconciler(triggers, triggerClient, linkRepo, habitRepo, log)
	go func() {
		runReconciliation(ctx, reconciler, habitRepo, log)
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runReconciliation(ctx, reconciler, habitRepo, log)
			}
		}
	}()

	log.Info("habitloop worker is fully initialized and running",
		zap.String("mq_queue", "habitloop.trigger.fired"),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habitloop worker gracefully...")
	cancel()
	consumer.Stop()
	habitCreatedConsumer.Stop()
	contextCreatedConsumer.Stop()
	dbConn.Close()
	log.Info("habitloop worker shutdown complete")
}

func runReconciliation(ctx context.Context, reconciler *scheduler.Reconciler, habitRepo *repository.HabitRepository, log *zap.Logger) {
	owners, err := habitRepo.DistinctOwners(ctx)
	if err != nil {
		log.Error("Reconciliation: failed to list owners", zap.Error(err))
		return
	}
	for _, owner := range owners {
		if _, err := reconciler.EnsureCheckinTriggers(ctx, owner); err != nil {
			log.Error("Reconciliation failed",
				zap.String("owner_id", owner),
				zap.Error(err),
			)
		}
	}
}
