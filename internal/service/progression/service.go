package progression

import (
	"context"
	"fmt"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/events"
	"habitloop/internal/model"
	"habitloop/pkg/metrics"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

const (
	minWeeksAtLevel = 2
	increaseAt      = 80.0
	decreaseBelow   = 50.0
	frequencyStep   = 2
	lockTTL         = 15 * time.Second
)

// HabitStore is the habit surface the engine reads and adjusts.
type HabitStore interface {
	GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error)
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error)
	Update(ctx context.Context, habitID int64, ownerID string, patch model.HabitUpdate) (bool, error)
}

// ProgressReader reads ledger windows.
type ProgressReader interface {
	GetRange(ctx context.Context, habitID int64, startDate, endDate time.Time) ([]model.ProgressEntry, error)
}

// ContextReader lists the contexts linked to a habit, resolved included.
type ContextReader interface {
	ListForHabit(ctx context.Context, habitID int64, ownerID string) ([]model.ContextMemory, error)
}

// Locker serializes evaluations per owner across replicas.
type Locker interface {
	Acquire(ctx context.Context, ownerID string, ttl time.Duration) error
	Release(ctx context.Context, ownerID string) error
}

// Status reports where a habit sits in its progression cycle.
type Status struct {
	HabitID             int64   `json:"habit_id"`
	HabitName           string  `json:"habit_name"`
	CurrentFrequency    int     `json:"current_frequency"`
	TargetFrequency     int     `json:"target_frequency"`
	WeeksAtCurrentLevel int     `json:"weeks_at_current_level"`
	SuccessRate         float64 `json:"success_rate"`
	ProgressPercentage  float64 `json:"progress_percentage"`
	ReadyForEvaluation  bool    `json:"ready_for_evaluation"`
}

type Service struct {
	habits   HabitStore
	progress ProgressReader
	contexts ContextReader
	lock     Locker
	events   events.Sink
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(habits HabitStore, progress ProgressReader, contexts ContextReader, lock Locker, sink events.Sink, logger *zap.Logger) *Service {
	return &Service{
		habits:   habits,
		progress: progress,
		contexts: contexts,
		lock:     lock,
		events:   sink,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate runs the weekly progression pass over every active habit and
// returns the per-habit decision text.
func (s *Service) Evaluate(ctx context.Context, ownerID string) (map[int64]string, error) {
	if err := s.lock.Acquire(ctx, ownerID, lockTTL); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), ownerID); err != nil {
			s.logger.Warn("Failed to release owner lock", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}()

	habits, err := s.habits.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}

	results := make(map[int64]string, len(habits))
	for i := range habits {
		decision, err := s.evaluateHabit(ctx, &habits[i])
		if err != nil {
			return nil, err
		}
		results[habits[i].ID] = decision
		s.logger.Info("Habit progression evaluated",
			zap.Int64("habit_id", habits[i].ID),
			zap.String("habit_name", habits[i].Name),
			zap.String("decision", decision),
		)
	}
	return results, nil
}

func (s *Service) evaluateHabit(ctx context.Context, habit *model.Habit) (string, error) {
	if habit.CurrentFrequency >= habit.TargetFrequency {
		metrics.IncrementProgressionDecision("at_target")
		return "Already at target frequency", nil
	}

	today := model.DateOf(s.now())
	weeksAtLevel := int(today.Sub(model.DateOf(habit.ProgressionStartDate)).Hours()/24) / 7
	if weeksAtLevel < minWeeksAtLevel {
		metrics.IncrementProgressionDecision("deferred")
		return fmt.Sprintf("Only %d week(s) at current level, need 2", weeksAtLevel), nil
	}

	week1, err := s.progress.GetRange(ctx, habit.ID, today.AddDate(0, 0, -13), today.AddDate(0, 0, -7))
	if err != nil {
		return "", err
	}
	week2, err := s.progress.GetRange(ctx, habit.ID, today.AddDate(0, 0, -6), today)
	if err != nil {
		return "", err
	}

	contexts, err := s.contexts.ListForHabit(ctx, habit.ID, habit.OwnerID)
	if err != nil {
		return "", err
	}
	week1 = filterContextualDays(week1, contexts, today)
	week2 = filterContextualDays(week2, contexts, today)

	completed := 0
	for _, e := range week1 {
		if e.Completed {
			completed++
		}
	}
	for _, e := range week2 {
		if e.Completed {
			completed++
		}
	}

	expected := habit.CurrentFrequency * 2
	if expected == 0 {
		metrics.IncrementProgressionDecision("deferred")
		return "No expected completions", nil
	}
	successRate := float64(completed) / float64(expected) * 100

	switch {
	case successRate >= increaseAt:
		next := habit.CurrentFrequency + frequencyStep
		if next > habit.TargetFrequency {
			next = habit.TargetFrequency
		}
		decision := fmt.Sprintf("Increased from %dx to %dx per week (success rate: %.1f%%)",
			habit.CurrentFrequency, next, successRate)
		if err := s.applyChange(ctx, habit, next, successRate, decision); err != nil {
			return "", err
		}
		metrics.IncrementProgressionDecision("increased")
		return decision, nil

	case successRate < decreaseBelow && habit.CurrentFrequency > 1:
		next := habit.CurrentFrequency - 1
		decision := fmt.Sprintf("Decreased from %dx to %dx per week (success rate: %.1f%%)",
			habit.CurrentFrequency, next, successRate)
		if err := s.applyChange(ctx, habit, next, successRate, decision); err != nil {
			return "", err
		}
		metrics.IncrementProgressionDecision("decreased")
		return decision, nil

	default:
		metrics.IncrementProgressionDecision("maintained")
		return fmt.Sprintf("Maintaining at %dx per week (success rate: %.1f%%)",
			habit.CurrentFrequency, successRate), nil
	}
}

func (s *Service) applyChange(ctx context.Context, habit *model.Habit, newFrequency int, successRate float64, decision string) error {
	today := model.DateOf(s.now())
	patch := model.HabitUpdate{
		CurrentFrequency:     &newFrequency,
		ProgressionStartDate: &today,
	}
	if _, err := s.habits.Update(ctx, habit.ID, habit.OwnerID, patch); err != nil {
		return err
	}

	if err := s.events.Emit(ctx, "habit", habit.ID, mq.ProgressionChanged, mqcontracts.ProgressionChangedPayload{
		HabitID:      habit.ID,
		OwnerID:      habit.OwnerID,
		OldFrequency: habit.CurrentFrequency,
		NewFrequency: newFrequency,
		SuccessRate:  successRate,
		Decision:     decision,
	}); err != nil {
		s.logger.Warn("Failed to emit progression.changed event", zap.Error(err))
	}
	return nil
}

// filterContextualDays drops entries that fall inside any linked
// context's exemption window, so sick or travel days neither reward nor
// penalize progression.
func filterContextualDays(entries []model.ProgressEntry, contexts []model.ContextMemory, today time.Time) []model.ProgressEntry {
	if len(contexts) == 0 {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		covered := false
		for i := range contexts {
			if contexts[i].Covers(e.Date, today) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, e)
		}
	}
	return kept
}

// Status reports tenure and performance for a single habit without
// changing anything.
func (s *Service) Status(ctx context.Context, habitID int64, ownerID string) (*Status, error) {
	habit, err := s.habits.GetByID(ctx, habitID, ownerID)
	if err != nil {
		return nil, err
	}

	today := model.DateOf(s.now())
	weeksAtLevel := int(today.Sub(model.DateOf(habit.ProgressionStartDate)).Hours()/24) / 7

	entries, err := s.progress.GetRange(ctx, habitID, today.AddDate(0, 0, -13), today)
	if err != nil {
		return nil, err
	}
	completed := 0
	for _, e := range entries {
		if e.Completed {
			completed++
		}
	}

	expected := habit.CurrentFrequency * 2
	successRate := 0.0
	if expected > 0 {
		successRate = float64(completed) / float64(expected) * 100
	}

	return &Status{
		HabitID:             habitID,
		HabitName:           habit.Name,
		CurrentFrequency:    habit.CurrentFrequency,
		TargetFrequency:     habit.TargetFrequency,
		WeeksAtCurrentLevel: weeksAtLevel,
		SuccessRate:         successRate,
		ProgressPercentage:  float64(habit.CurrentFrequency) / float64(habit.TargetFrequency) * 100,
		ReadyForEvaluation:  weeksAtLevel >= minWeeksAtLevel,
	}, nil
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
