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

// HabitReader resolves the habit a fired trigger refers to.
type HabitReader interface {
	GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error)
}

// ProgressionRunner runs the weekly pass.
type ProgressionRunner interface {
	Evaluate(ctx context.Context, ownerID string) (map[int64]string, error)
}

// ScoreRecalculator refreshes the consistency score.
type ScoreRecalculator interface {
	Recalculate(ctx context.Context, ownerID, reason string) (*model.ConsistencyScore, error)
}

// ContextChecker surfaces contexts whose cadence is due and records
// that they were checked.
type ContextChecker interface {
	NeedingCheckin(ctx context.Context, ownerID string) ([]model.ContextMemory, error)
	MarkChecked(ctx context.Context, contextID int64, ownerID string) (bool, error)
}

// FollowupScheduler creates the one-shot follow-up nudge.
type FollowupScheduler interface {
	CreateFollowupTrigger(ctx context.Context, habit *model.Habit) (string, error)
}

// TriggerFiredHandler routes scheduler callback events to the right
// domain action: weekly progression runs, context refresh checks, and
// follow-up scheduling after a check-in fires.
type TriggerFiredHandler struct {
	habits      HabitReader
	progression ProgressionRunner
	scoring     ScoreRecalculator
	contexts    ContextChecker
	followups   FollowupScheduler
	logger      *zap.Logger
}

func NewTriggerFiredHandler(
	habits HabitReader,
	progression ProgressionRunner,
	scoring ScoreRecalculator,
	contexts ContextChecker,
	followups FollowupScheduler,
	logger *zap.Logger,
) *TriggerFiredHandler {
	return &TriggerFiredHandler{
		habits:      habits,
		progression: progression,
		scoring:     scoring,
		contexts:    contexts,
		followups:   followups,
		logger:      logger,
	}
}

func (h *TriggerFiredHandler) Handle(ctx context.Context, data json.RawMessage) error {
	start := time.Now()

	var payload mqcontracts.TriggerFiredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.logger.Error("Failed to unmarshal trigger.fired payload", zap.Error(err))
		// malformed payloads cannot be retried
		return nil
	}

	triggerType := payload.Type
	if triggerType == "" {
		triggerType = scheduler.ParseTriggerType(payload.Payload)
	}

	h.logger.Info("Trigger fired",
		zap.String("trigger_id", payload.TriggerID),
		zap.String("type", triggerType),
		zap.String("owner_id", payload.OwnerID),
	)

	var err error
	switch triggerType {
	case scheduler.TypeWeeklyProgression:
		err = h.handleWeeklyProgression(ctx, payload.OwnerID)
	case scheduler.TypeContextRefresh:
		err = h.handleContextRefresh(ctx, payload.OwnerID)
	case scheduler.TypeHabitCheckin:
		err = h.handleCheckinFired(ctx, payload)
	case scheduler.TypeHabitFollowup:
		// delivery of the nudge itself is downstream's job
	default:
		h.logger.Warn("Unknown trigger type, dropping",
			zap.String("type", triggerType),
			zap.String("trigger_id", payload.TriggerID),
		)
	}

	metrics.RecordMQConsumeLatency(mq.TriggerFired, "habitloop.trigger.fired", time.Since(start))
	return err
}

func (h *TriggerFiredHandler) handleWeeklyProgression(ctx context.Context, ownerID string) error {
	results, err := h.progression.Evaluate(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("progression evaluation failed: %w", err)
	}
	h.logger.Info("Weekly progression evaluated",
		zap.String("owner_id", ownerID),
		zap.Int("habits_evaluated", len(results)),
	)

	if _, err := h.scoring.Recalculate(ctx, ownerID, "weekly_progression"); err != nil {
		h.logger.Error("Score recalculation after progression failed",
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
	}
	return nil
}

func (h *TriggerFiredHandler) handleContextRefresh(ctx context.Context, ownerID string) error {
	due, err := h.contexts.NeedingCheckin(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("listing contexts needing check-in failed: %w", err)
	}

	for _, cm := range due {
		if _, err := h.contexts.MarkChecked(ctx, cm.ID, ownerID); err != nil {
			h.logger.Error("Failed to mark context checked",
				zap.Int64("context_id", cm.ID),
				zap.Error(err),
			)
		}
	}

	h.logger.Info("Context refresh processed",
		zap.String("owner_id", ownerID),
		zap.Int("contexts_due", len(due)),
	)
	return nil
}

// handleCheckinFired schedules the follow-up nudge for the habit the
// check-in belongs to. Pre-link-table triggers carry the habit id only
// in their payload text.
func (h *TriggerFiredHandler) handleCheckinFired(ctx context.Context, payload mqcontracts.TriggerFiredPayload) error {
	habitID := payload.HabitID
	if habitID == 0 {
		habitID = scheduler.ParseHabitID(payload.Payload)
	}
	if habitID == 0 {
		h.logger.Warn("Check-in fired without a habit id, dropping",
			zap.String("trigger_id", payload.TriggerID),
		)
		return nil
	}

	habit, err := h.habits.GetByID(ctx, habitID, payload.OwnerID)
	if err != nil {
		h.logger.Warn("Check-in fired for unknown habit",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return nil
	}
	if !habit.Active {
		return nil
	}

	if _, err := h.followups.CreateFollowupTrigger(ctx, habit); err != nil {
		return fmt.Errorf("follow-up trigger creation failed: %w", err)
	}
	return nil
}
