package scheduler

import (
	"context"

	"habitloop/internal/model"

	"go.uber.org/zap"
)

// HabitLister enumerates the owner's active habits for reconciliation.
type HabitLister interface {
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error)
}

// Reconciler backfills missing check-in triggers. It runs at startup
// and periodically, so habits created while the scheduler was down
// still end up scheduled.
type Reconciler struct {
	triggers *Triggers
	client   TriggerClient
	links    LinkStore
	habits   HabitLister
	logger   *zap.Logger
}

func NewReconciler(triggers *Triggers, client TriggerClient, links LinkStore, habits HabitLister, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		triggers: triggers,
		client:   client,
		links:    links,
		habits:   habits,
		logger:   logger,
	}
}

// EnsureCheckinTriggers creates a check-in trigger for every active
// habit that has none. The link table is authoritative; payloads of
// triggers created before link tracking are parsed as a fallback and
// backfilled into the table. Safe to run repeatedly.
func (r *Reconciler) EnsureCheckinTriggers(ctx context.Context, ownerID string) (int, error) {
	habits, err := r.habits.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return 0, err
	}
	if len(habits) == 0 {
		return 0, nil
	}

	linked, err := r.links.LinkedHabitIDs(ctx, TypeHabitCheckin)
	if err != nil {
		return 0, err
	}

	// Pre-link-table triggers only identify their habit inside the
	// payload text.
	remote, err := r.client.List(ctx, r.triggers.agentName)
	if err != nil {
		r.logger.Warn("Failed to list remote triggers, relying on link table only", zap.Error(err))
		remote = nil
	}
	for _, tr := range remote {
		if ParseTriggerType(tr.Payload) != TypeHabitCheckin {
			continue
		}
		habitID := ParseHabitID(tr.Payload)
		if habitID == 0 || linked[habitID] {
			continue
		}
		if err := r.links.Upsert(ctx, habitID, tr.ID, TypeHabitCheckin); err != nil {
			r.logger.Warn("Failed to backfill trigger link",
				zap.Int64("habit_id", habitID),
				zap.String("trigger_id", tr.ID),
				zap.Error(err),
			)
			continue
		}
		linked[habitID] = true
	}

	created := 0
	for i := range habits {
		if linked[habits[i].ID] {
			continue
		}
		if _, err := r.triggers.CreateCheckinTrigger(ctx, &habits[i]); err != nil {
			r.logger.Error("Failed to reconcile check-in trigger",
				zap.Int64("habit_id", habits[i].ID),
				zap.Error(err),
			)
			continue
		}
		created++
	}

	if created > 0 {
		r.logger.Info("Check-in triggers reconciled",
			zap.String("owner_id", ownerID),
			zap.Int("created", created),
		)
	}
	return created, nil
}
