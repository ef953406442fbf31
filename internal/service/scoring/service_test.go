package scoring

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeScoreStore struct {
	score   *model.ConsistencyScore
	updates int
}

func (s *fakeScoreStore) GetOrCreate(ctx context.Context, ownerID string) (*model.ConsistencyScore, error) {
	if s.score == nil {
		s.score = &model.ConsistencyScore{ID: 1, OwnerID: ownerID, CurrentScore: 50, PeakScore: 50}
	}
	copied := *s.score
	copied.ScoreHistory = append([]model.ScoreHistoryEntry(nil), s.score.ScoreHistory...)
	return &copied, nil
}

func (s *fakeScoreStore) Update(ctx context.Context, sc *model.ConsistencyScore) error {
	s.updates++
	copied := *sc
	s.score = &copied
	return nil
}

type fakeHabits struct {
	habits []model.Habit
}

func (f *fakeHabits) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error) {
	return f.habits, nil
}

type fakeProgress struct {
	entries map[int64][]model.ProgressEntry
	streaks map[int64]int
}

func (f *fakeProgress) Recent(ctx context.Context, habitID int64, days int) ([]model.ProgressEntry, error) {
	return f.entries[habitID], nil
}

func (f *fakeProgress) Streak(ctx context.Context, habitID int64) (int, error) {
	return f.streaks[habitID], nil
}

type fakeLock struct {
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, ownerID string, ttl time.Duration) error {
	l.acquired++
	return nil
}

func (l *fakeLock) Release(ctx context.Context, ownerID string) error {
	l.released++
	return nil
}

type nopSink struct{}

func (nopSink) Emit(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	return nil
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

// fullWindow builds 14 consecutive daily entries ending today.
func fullWindow(today time.Time, completed func(i int) bool, excuse func(i int) string) []model.ProgressEntry {
	var entries []model.ProgressEntry
	for i := 0; i < 14; i++ {
		e := model.ProgressEntry{
			Date:      today.AddDate(0, 0, -i),
			Completed: completed(i),
		}
		if excuse != nil {
			e.ExcuseCategory = excuse(i)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestRecalculateNoHabitsKeepsStoredScore(t *testing.T) {
	store := &fakeScoreStore{}
	lock := &fakeLock{}
	svc := NewService(store, &fakeHabits{}, &fakeProgress{}, lock, nopSink{}, zap.NewNop())

	score, err := svc.Recalculate(context.Background(), "alice", "daily_update")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if score.CurrentScore != 50 {
		t.Errorf("score = %v, want stored default 50", score.CurrentScore)
	}
	if store.updates != 0 {
		t.Error("no habits must not persist anything")
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquire/release = %d/%d, want 1/1", lock.acquired, lock.released)
	}
}

func TestRecalculatePerfectPerformanceClampsAt100(t *testing.T) {
	today, _ := time.Parse(model.DateLayout, "2026-03-10")
	store := &fakeScoreStore{}
	habits := &fakeHabits{habits: []model.Habit{
		{ID: 1, CurrentFrequency: 5, TargetFrequency: 5},
	}}
	progress := &fakeProgress{
		entries: map[int64][]model.ProgressEntry{
			1: fullWindow(today, func(int) bool { return true }, nil),
		},
		streaks: map[int64]int{1: 30},
	}
	svc := NewService(store, habits, progress, &fakeLock{}, nopSink{}, zap.NewNop()).
		WithClock(fixedClock("2026-03-10"))

	score, err := svc.Recalculate(context.Background(), "alice", "daily_update")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if score.CurrentScore != 100 {
		t.Errorf("score = %v, want clamped 100", score.CurrentScore)
	}
	if score.PeakScore != 100 {
		t.Errorf("peak = %v, want 100", score.PeakScore)
	}
	if len(score.ScoreHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(score.ScoreHistory))
	}
	entry := score.ScoreHistory[0]
	if entry.Date != "2026-03-10" || entry.Reason != "daily_update" || entry.Score != 100 {
		t.Errorf("history entry = %+v", entry)
	}
}

func TestRecalculateCapsHistory(t *testing.T) {
	store := &fakeScoreStore{score: &model.ConsistencyScore{ID: 1, OwnerID: "alice", CurrentScore: 60, PeakScore: 80}}
	for i := 0; i < model.ScoreHistoryCap; i++ {
		store.score.ScoreHistory = append(store.score.ScoreHistory, model.ScoreHistoryEntry{
			Date:   fmt.Sprintf("old-%d", i),
			Score:  50,
			Reason: "daily_update",
		})
	}

	today, _ := time.Parse(model.DateLayout, "2026-03-10")
	habits := &fakeHabits{habits: []model.Habit{{ID: 1, CurrentFrequency: 3, TargetFrequency: 5}}}
	progress := &fakeProgress{
		entries: map[int64][]model.ProgressEntry{1: fullWindow(today, func(int) bool { return true }, nil)},
		streaks: map[int64]int{1: 3},
	}
	svc := NewService(store, habits, progress, &fakeLock{}, nopSink{}, zap.NewNop()).
		WithClock(fixedClock("2026-03-10"))

	score, err := svc.Recalculate(context.Background(), "alice", "daily_update")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if len(score.ScoreHistory) != model.ScoreHistoryCap {
		t.Fatalf("history length = %d, want %d", len(score.ScoreHistory), model.ScoreHistoryCap)
	}
	if score.ScoreHistory[0].Date != "old-1" {
		t.Errorf("oldest kept = %s, want old-1 (old-0 dropped)", score.ScoreHistory[0].Date)
	}
	if score.ScoreHistory[len(score.ScoreHistory)-1].Date != "2026-03-10" {
		t.Error("newest entry should be today's")
	}
}

func TestBreakdownComponents(t *testing.T) {
	today, _ := time.Parse(model.DateLayout, "2026-03-10")
	store := &fakeScoreStore{}
	habits := &fakeHabits{habits: []model.Habit{
		{ID: 1, CurrentFrequency: 5, TargetFrequency: 5},
	}}

	// 4 failures in the window, 2 with legitimate excuses.
	completed := func(i int) bool { return i >= 4 }
	excuse := func(i int) string {
		switch i {
		case 0:
			return model.ExcuseSick
		case 1:
			return model.ExcuseExam
		case 2:
			return model.ExcuseTravel
		default:
			return ""
		}
	}
	progress := &fakeProgress{
		entries: map[int64][]model.ProgressEntry{1: fullWindow(today, completed, excuse)},
		streaks: map[int64]int{1: 15},
	}
	svc := NewService(store, habits, progress, &fakeLock{}, nopSink{}, zap.NewNop()).
		WithClock(fixedClock("2026-03-10"))

	bd, err := svc.Breakdown(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}

	if bd.Base != 50 {
		t.Errorf("base = %v, want 50", bd.Base)
	}
	// rate 10/14, difficulty 1
	wantCompletion := 10.0 / 14.0 * 40
	if math.Abs(bd.Completion-wantCompletion) > 1e-9 {
		t.Errorf("completion = %v, want %v", bd.Completion, wantCompletion)
	}
	// 15-day streak of a 30-day max
	if bd.Streak != 10 {
		t.Errorf("streak = %v, want 10", bd.Streak)
	}
	if bd.Progression != 15 {
		t.Errorf("progression = %v, want 15", bd.Progression)
	}
	// 2 legitimate of 4 failures
	if bd.ExcuseGrace != 5 {
		t.Errorf("excuse grace = %v, want 5", bd.ExcuseGrace)
	}
	if store.updates != 0 {
		t.Error("Breakdown must not persist")
	}
}

func TestBreakdownNoFailuresFullGrace(t *testing.T) {
	today, _ := time.Parse(model.DateLayout, "2026-03-10")
	store := &fakeScoreStore{}
	habits := &fakeHabits{habits: []model.Habit{{ID: 1, CurrentFrequency: 2, TargetFrequency: 5}}}
	progress := &fakeProgress{
		entries: map[int64][]model.ProgressEntry{1: fullWindow(today, func(int) bool { return true }, nil)},
		streaks: map[int64]int{1: 0},
	}
	svc := NewService(store, habits, progress, &fakeLock{}, nopSink{}, zap.NewNop()).
		WithClock(fixedClock("2026-03-10"))

	bd, err := svc.Breakdown(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if bd.ExcuseGrace != 10 {
		t.Errorf("excuse grace = %v, want full 10 with zero failures", bd.ExcuseGrace)
	}
}

func TestBreakdownTrendPenalizesDecline(t *testing.T) {
	today, _ := time.Parse(model.DateLayout, "2026-03-10")
	store := &fakeScoreStore{}
	habits := &fakeHabits{habits: []model.Habit{{ID: 1, CurrentFrequency: 5, TargetFrequency: 5}}}

	// completed every day last week, nothing this week
	completed := func(i int) bool { return i > 7 }
	progress := &fakeProgress{
		entries: map[int64][]model.ProgressEntry{1: fullWindow(today, completed, nil)},
		streaks: map[int64]int{1: 0},
	}
	svc := NewService(store, habits, progress, &fakeLock{}, nopSink{}, zap.NewNop()).
		WithClock(fixedClock("2026-03-10"))

	bd, err := svc.Breakdown(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if bd.Trend != -15 {
		t.Errorf("trend = %v, want floor -15", bd.Trend)
	}
}
