package scoring

import (
	"context"
	"math"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/events"
	"habitloop/internal/model"
	"habitloop/pkg/metrics"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

const (
	baseScore     = 50.0
	lockTTL       = 15 * time.Second
	scoringWindow = 14
)

// ScoreStore persists the per-owner score row.
type ScoreStore interface {
	GetOrCreate(ctx context.Context, ownerID string) (*model.ConsistencyScore, error)
	Update(ctx context.Context, s *model.ConsistencyScore) error
}

// HabitLister enumerates the owner's active habits.
type HabitLister interface {
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error)
}

// ProgressReader exposes the ledger views the formula needs.
type ProgressReader interface {
	Recent(ctx context.Context, habitID int64, days int) ([]model.ProgressEntry, error)
	Streak(ctx context.Context, habitID int64) (int, error)
}

// Locker serializes recalculations per owner across replicas.
type Locker interface {
	Acquire(ctx context.Context, ownerID string, ttl time.Duration) error
	Release(ctx context.Context, ownerID string) error
}

type Service struct {
	scores   ScoreStore
	habits   HabitLister
	progress ProgressReader
	lock     Locker
	events   events.Sink
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(scores ScoreStore, habits HabitLister, progress ProgressReader, lock Locker, sink events.Sink, logger *zap.Logger) *Service {
	return &Service{
		scores:   scores,
		habits:   habits,
		progress: progress,
		lock:     lock,
		events:   sink,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Current(ctx context.Context, ownerID string) (*model.ConsistencyScore, error) {
	return s.scores.GetOrCreate(ctx, ownerID)
}

// Recalculate recomputes the owner's consistency score from the ledger
// and persists it. Owners with no active habits keep their stored score.
func (s *Service) Recalculate(ctx context.Context, ownerID, reason string) (*model.ConsistencyScore, error) {
	if err := s.lock.Acquire(ctx, ownerID, lockTTL); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), ownerID); err != nil {
			s.logger.Warn("Failed to release owner lock", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}()

	stored, err := s.scores.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	habits, err := s.habits.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return stored, nil
	}

	components, err := s.components(ctx, habits)
	if err != nil {
		return nil, err
	}

	final := baseScore + components.Completion + components.Streak +
		components.Progression + components.ExcuseGrace + components.Trend
	final = math.Max(0, math.Min(100, final))

	stored.CurrentScore = final
	stored.PeakScore = math.Max(stored.PeakScore, final)
	stored.ScoreHistory = append(stored.ScoreHistory, model.ScoreHistoryEntry{
		Date:   model.DateOf(s.now()).Format(model.DateLayout),
		Score:  math.Round(final*10) / 10,
		Reason: reason,
	})
	if len(stored.ScoreHistory) > model.ScoreHistoryCap {
		stored.ScoreHistory = stored.ScoreHistory[len(stored.ScoreHistory)-model.ScoreHistoryCap:]
	}

	if err := s.scores.Update(ctx, stored); err != nil {
		return nil, err
	}
	metrics.IncrementScoreRecalculation(reason)

	s.logger.Info("Consistency score recalculated",
		zap.String("owner_id", ownerID),
		zap.Float64("score", final),
		zap.Float64("completion", components.Completion),
		zap.Float64("streak", components.Streak),
		zap.Float64("progression", components.Progression),
		zap.Float64("excuse_grace", components.ExcuseGrace),
		zap.Float64("trend", components.Trend),
	)

	if err := s.events.Emit(ctx, "score", stored.ID, mq.ScoreUpdated, mqcontracts.ScoreUpdatedPayload{
		OwnerID:   ownerID,
		Score:     final,
		PeakScore: stored.PeakScore,
		Reason:    reason,
	}); err != nil {
		s.logger.Warn("Failed to emit score.updated event", zap.Error(err))
	}

	return stored, nil
}

// Breakdown reports the live component values without persisting.
func (s *Service) Breakdown(ctx context.Context, ownerID string) (*model.ScoreBreakdown, error) {
	stored, err := s.scores.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	habits, err := s.habits.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}

	breakdown := &model.ScoreBreakdown{
		CurrentScore: stored.CurrentScore,
		PeakScore:    stored.PeakScore,
		Base:         baseScore,
		UpdatedAt:    stored.UpdatedAt.Format(time.RFC3339),
	}
	if len(habits) == 0 {
		return breakdown, nil
	}

	components, err := s.components(ctx, habits)
	if err != nil {
		return nil, err
	}
	breakdown.Completion = components.Completion
	breakdown.Streak = components.Streak
	breakdown.Progression = components.Progression
	breakdown.ExcuseGrace = components.ExcuseGrace
	breakdown.Trend = components.Trend
	return breakdown, nil
}

type componentValues struct {
	Completion  float64
	Streak      float64
	Progression float64
	ExcuseGrace float64
	Trend       float64
}

func (s *Service) components(ctx context.Context, habits []model.Habit) (*componentValues, error) {
	var (
		weightedCompletion float64
		maxStreak          int
		progressionSum     float64
		totalFailures      int
		legitimateExcuses  int
		currentWeekSum     float64
		previousWeekSum    float64
	)

	today := model.DateOf(s.now())
	weekAgo := today.AddDate(0, 0, -7)

	for _, habit := range habits {
		entries, err := s.progress.Recent(ctx, habit.ID, scoringWindow)
		if err != nil {
			return nil, err
		}

		// Completion: recent rate weighted by how close the habit runs
		// to its target.
		if len(entries) > 0 {
			completed := 0
			for _, e := range entries {
				if e.Completed {
					completed++
				}
			}
			rate := float64(completed) / float64(len(entries))
			difficulty := math.Max(0.5, float64(habit.CurrentFrequency)/float64(habit.TargetFrequency))
			weightedCompletion += rate * difficulty
		}

		streak, err := s.progress.Streak(ctx, habit.ID)
		if err != nil {
			return nil, err
		}
		if streak > maxStreak {
			maxStreak = streak
		}

		progressionSum += float64(habit.CurrentFrequency) / float64(habit.TargetFrequency)

		// Excuse grace: failures backed by a legitimate excuse count
		// toward the grace ratio.
		for _, e := range entries {
			if e.Completed {
				continue
			}
			totalFailures++
			switch e.ExcuseCategory {
			case model.ExcuseSick, model.ExcuseExam, model.ExcuseInjury:
				legitimateExcuses++
			}
		}

		// Trend: this week's rate against last week's. The boundary day
		// seven days back belongs to neither week.
		var curCompleted, curTotal, prevCompleted, prevTotal int
		for _, e := range entries {
			day := model.DateOf(e.Date)
			switch {
			case day.Before(weekAgo):
				prevTotal++
				if e.Completed {
					prevCompleted++
				}
			case day.After(weekAgo):
				curTotal++
				if e.Completed {
					curCompleted++
				}
			}
		}
		if curTotal > 0 {
			currentWeekSum += float64(curCompleted) / float64(curTotal)
		}
		if prevTotal > 0 {
			previousWeekSum += float64(prevCompleted) / float64(prevTotal)
		}
	}

	n := float64(len(habits))

	excuseGrace := 10.0
	if totalFailures > 0 {
		excuseGrace = float64(legitimateExcuses) / float64(totalFailures) * 10
	}

	trend := (currentWeekSum/n - previousWeekSum/n) * 50
	trend = math.Max(-15, math.Min(15, trend))

	return &componentValues{
		Completion:  weightedCompletion / n * 40,
		Streak:      math.Min(float64(maxStreak)/30*20, 20),
		Progression: progressionSum / n * 15,
		ExcuseGrace: excuseGrace,
		Trend:       trend,
	}, nil
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
