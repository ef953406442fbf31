package progress

import (
	"context"
	"fmt"
	"time"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/events"
	"habitloop/internal/model"
	"habitloop/pkg/mq"

	"go.uber.org/zap"
)

// streakLookbackDays bounds how far back the streak walk reads.
const streakLookbackDays = 90

// Ledger is the progress persistence surface.
type Ledger interface {
	Upsert(ctx context.Context, e *model.ProgressEntry) error
	GetByDate(ctx context.Context, habitID int64, day time.Time) (*model.ProgressEntry, error)
	GetRange(ctx context.Context, habitID int64, startDate, endDate time.Time) ([]model.ProgressEntry, error)
	TodayOverview(ctx context.Context, ownerID string, today time.Time) ([]model.TodayProgress, error)
}

// HabitReader resolves habit ownership before ledger writes.
type HabitReader interface {
	GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error)
}

type LogInput struct {
	Completed      bool
	Date           *time.Time
	ExcuseGiven    string
	ExcuseCategory string
	AgentMessage   string
	UserResponse   string
}

type Service struct {
	ledger Ledger
	habits HabitReader
	events events.Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewService(ledger Ledger, habits HabitReader, sink events.Sink, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		habits: habits,
		events: sink,
		logger: logger,
		now:    time.Now,
	}
}

// Log records a check-in answer for a habit. The date defaults to today;
// a repeated answer for the same day overwrites the earlier one.
func (s *Service) Log(ctx context.Context, habitID int64, ownerID string, in LogInput) (*model.ProgressEntry, error) {
	habit, err := s.habits.GetByID(ctx, habitID, ownerID)
	if err != nil {
		return nil, err
	}

	day := model.DateOf(s.now())
	if in.Date != nil {
		day = model.DateOf(*in.Date)
	}

	entry := &model.ProgressEntry{
		HabitID:        habitID,
		Date:           day,
		Completed:      in.Completed,
		ExcuseGiven:    in.ExcuseGiven,
		ExcuseCategory: in.ExcuseCategory,
		AgentMessage:   in.AgentMessage,
		UserResponse:   in.UserResponse,
	}
	if err := s.ledger.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log progress: %w", err)
	}

	s.logger.Info("Progress logged",
		zap.Int64("habit_id", habitID),
		zap.String("habit_name", habit.Name),
		zap.String("date", day.Format(model.DateLayout)),
		zap.Bool("completed", in.Completed),
	)

	if err := s.events.Emit(ctx, "progress", entry.ID, mq.ProgressLogged, mqcontracts.ProgressLoggedPayload{
		HabitID:        habitID,
		OwnerID:        ownerID,
		Date:           day.Format(model.DateLayout),
		Completed:      in.Completed,
		ExcuseCategory: in.ExcuseCategory,
	}); err != nil {
		s.logger.Warn("Failed to emit progress.logged event", zap.Error(err))
	}

	return entry, nil
}

func (s *Service) EntryFor(ctx context.Context, habitID int64, ownerID string, day time.Time) (*model.ProgressEntry, error) {
	if _, err := s.habits.GetByID(ctx, habitID, ownerID); err != nil {
		return nil, err
	}
	return s.ledger.GetByDate(ctx, habitID, model.DateOf(day))
}

func (s *Service) Range(ctx context.Context, habitID int64, ownerID string, startDate, endDate time.Time) ([]model.ProgressEntry, error) {
	if _, err := s.habits.GetByID(ctx, habitID, ownerID); err != nil {
		return nil, err
	}
	return s.ledger.GetRange(ctx, habitID, model.DateOf(startDate), model.DateOf(endDate))
}

// Recent returns the last N days of entries including today.
func (s *Service) Recent(ctx context.Context, habitID int64, days int) ([]model.ProgressEntry, error) {
	today := model.DateOf(s.now())
	start := today.AddDate(0, 0, -(days - 1))
	return s.ledger.GetRange(ctx, habitID, start, today)
}

// CompletionRate is the completed share of the given entries as a
// percentage (0-100); an empty window rates 0.
func CompletionRate(entries []model.ProgressEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	completed := 0
	for _, e := range entries {
		if e.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(entries)) * 100
}

// Streak counts consecutive completed days ending today. A day with no
// entry, or an entry not completed, breaks the streak.
func (s *Service) Streak(ctx context.Context, habitID int64) (int, error) {
	today := model.DateOf(s.now())
	start := today.AddDate(0, 0, -(streakLookbackDays - 1))

	entries, err := s.ledger.GetRange(ctx, habitID, start, today)
	if err != nil {
		return 0, err
	}

	byDay := make(map[string]bool, len(entries))
	for _, e := range entries {
		byDay[model.DateOf(e.Date).Format(model.DateLayout)] = e.Completed
	}

	streak := 0
	for day := today; ; day = day.AddDate(0, 0, -1) {
		completed, ok := byDay[day.Format(model.DateLayout)]
		if !ok || !completed {
			break
		}
		streak++
	}
	return streak, nil
}

// Stats summarises the last 14 days plus the current streak.
func (s *Service) Stats(ctx context.Context, habitID int64, ownerID string) (*model.HabitStats, error) {
	habit, err := s.habits.GetByID(ctx, habitID, ownerID)
	if err != nil {
		return nil, err
	}

	entries, err := s.Recent(ctx, habitID, 14)
	if err != nil {
		return nil, err
	}
	streak, err := s.Streak(ctx, habitID)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, e := range entries {
		if e.Completed {
			completed++
		}
	}

	return &model.HabitStats{
		HabitID:           habitID,
		HabitName:         habit.Name,
		CurrentFrequency:  habit.CurrentFrequency,
		TargetFrequency:   habit.TargetFrequency,
		CompletionRate:    CompletionRate(entries),
		RecentCompletions: completed,
		RecentAttempts:    len(entries),
		CurrentStreak:     streak,
	}, nil
}

// TodayOverview lists every active habit with its check-in state for
// today; nil means not yet checked in.
func (s *Service) TodayOverview(ctx context.Context, ownerID string) ([]model.TodayProgress, error) {
	return s.ledger.TodayOverview(ctx, ownerID, model.DateOf(s.now()))
}

// WithClock overrides the service clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
