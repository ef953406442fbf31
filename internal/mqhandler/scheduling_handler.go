package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/model"
	"habitloop/internal/scheduler"
	"habitloop/pkg/metrics"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

// CheckinScheduler creates the recurring daily check-in trigger.
type CheckinScheduler interface {
	CreateCheckinTrigger(ctx context.Context, habit *model.Habit) (string, error)
}

// RefreshScheduler creates the recurring context check-in trigger.
type RefreshScheduler interface {
	CreateContextRefreshTrigger(ctx context.Context, cm *model.ContextMemory) (string, error)
}

// LinkChecker reports which habits already have a trigger of a type.
type LinkChecker interface {
	LinkedHabitIDs(ctx context.Context, triggerType string) (map[int64]bool, error)
}

// ContextReader resolves the context a created event refers to.
type ContextReader interface {
	GetByID(ctx context.Context, contextID int64, ownerID string) (*model.ContextMemory, error)
}

// HabitCreatedHandler schedules the check-in trigger for a freshly
// created habit. The link table makes redelivered events harmless.
type HabitCreatedHandler struct {
	habits    HabitReader
	links     LinkChecker
	scheduler CheckinScheduler
	logger    *zap.Logger
}

func NewHabitCreatedHandler(habits HabitReader, links LinkChecker, sched CheckinScheduler, logger *zap.Logger) *HabitCreatedHandler {
	return &HabitCreatedHandler{
		habits:    habits,
		links:     links,
		scheduler: sched,
		logger:    logger,
	}
}

func (h *HabitCreatedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(mq.HabitCreated, "habitloop.habit.created", time.Since(start))
	}()

	var payload mqcontracts.HabitCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("Failed to unmarshal habit.created payload", zap.Error(err))
		// malformed payloads cannot be retried
		return nil
	}

	habit, err := h.habits.GetByID(ctx, payload.HabitID, payload.OwnerID)
	if err != nil {
		h.logger.Warn("habit.created for unknown habit, dropping",
			zap.Int64("habit_id", payload.HabitID),
			zap.Error(err),
		)
		return nil
	}

	linked, err := h.links.LinkedHabitIDs(ctx, scheduler.TypeHabitCheckin)
	if err != nil {
		return fmt.Errorf("failed to read trigger links: %w", err)
	}
	if linked[habit.ID] {
		return nil
	}

	if _, err := h.scheduler.CreateCheckinTrigger(ctx, habit); err != nil {
		return fmt.Errorf("check-in trigger creation failed: %w", err)
	}
	return nil
}

// ContextCreatedHandler schedules the periodic "are you still dealing
// with this?" refresh for contexts that carry a check-in cadence.
type ContextCreatedHandler struct {
	contexts  ContextReader
	scheduler RefreshScheduler
	logger    *zap.Logger
}

func NewContextCreatedHandler(contexts ContextReader, sched RefreshScheduler, logger *zap.Logger) *ContextCreatedHandler {
	return &ContextCreatedHandler{
		contexts:  contexts,
		scheduler: sched,
		logger:    logger,
	}
}

func (h *ContextCreatedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(mq.ContextCreated, "habitloop.context.created", time.Since(start))
	}()

	var payload mqcontracts.ContextCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("Failed to unmarshal context.created payload", zap.Error(err))
		return nil
	}

	cm, err := h.contexts.GetByID(ctx, payload.ContextID, payload.OwnerID)
	if err != nil {
		h.logger.Warn("context.created for unknown context, dropping",
			zap.Int64("context_id", payload.ContextID),
			zap.Error(err),
		)
		return nil
	}
	if cm.Resolved || cm.CheckInFrequencyDays == nil {
		return nil
	}

	if _, err := h.scheduler.CreateContextRefreshTrigger(ctx, cm); err != nil {
		return fmt.Errorf("context refresh trigger creation failed: %w", err)
	}
	return nil
}
