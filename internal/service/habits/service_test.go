package habits

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeStore struct {
	byID    map[int64]*model.Habit
	nextID  int64
	updates []model.HabitUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[int64]*model.Habit)}
}

func (s *fakeStore) Insert(ctx context.Context, h *model.Habit) (int64, error) {
	s.nextID++
	h.ID = s.nextID
	h.CreatedAt = time.Now()
	copied := *h
	s.byID[h.ID] = &copied
	return h.ID, nil
}

func (s *fakeStore) GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error) {
	h, ok := s.byID[habitID]
	if !ok || h.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error) {
	var out []model.Habit
	for _, h := range s.byID {
		if h.OwnerID != ownerID {
			continue
		}
		if activeOnly && !h.Active {
			continue
		}
		out = append(out, *h)
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, habitID int64, ownerID string, patch model.HabitUpdate) (bool, error) {
	h, ok := s.byID[habitID]
	if !ok || h.OwnerID != ownerID {
		return false, nil
	}
	s.updates = append(s.updates, patch)
	if patch.CurrentFrequency != nil {
		h.CurrentFrequency = *patch.CurrentFrequency
	}
	if patch.ProgressionStartDate != nil {
		h.ProgressionStartDate = *patch.ProgressionStartDate
	}
	return true, nil
}

func (s *fakeStore) Deactivate(ctx context.Context, habitID int64, ownerID string) (bool, error) {
	h, ok := s.byID[habitID]
	if !ok || h.OwnerID != ownerID || !h.Active {
		return false, nil
	}
	h.Active = false
	return true, nil
}

type recordingSink struct {
	routingKeys []string
}

func (s *recordingSink) Emit(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	s.routingKeys = append(s.routingKeys, routingKey)
	return nil
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

func TestStartingFrequency(t *testing.T) {
	cases := map[int]int{
		1: 1,
		2: 1,
		3: 1,
		4: 2,
		5: 2,
		6: 3,
		7: 3,
	}
	for target, want := range cases {
		if got := StartingFrequency(target); got != want {
			t.Errorf("StartingFrequency(%d) = %d, want %d", target, got, want)
		}
	}
}

func TestCreateHabit(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	svc := NewService(store, sink, zap.NewNop()).WithClock(fixedClock("2026-03-02"))

	habit, err := svc.Create(context.Background(), "alice", CreateInput{
		Name:            "Morning run",
		TargetFrequency: 5,
		CheckInTime:     "07:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if habit.CurrentFrequency != 2 {
		t.Errorf("starting frequency = %d, want 2", habit.CurrentFrequency)
	}
	if habit.FollowUpDelayMinutes != 60 {
		t.Errorf("follow-up delay = %d, want default 60", habit.FollowUpDelayMinutes)
	}
	if !habit.Active {
		t.Error("new habit should be active")
	}
	if got := habit.ProgressionStartDate.Format(model.DateLayout); got != "2026-03-02" {
		t.Errorf("progression start date = %s, want 2026-03-02", got)
	}
	if len(sink.routingKeys) != 1 || sink.routingKeys[0] != "habit.created" {
		t.Errorf("emitted events = %v, want [habit.created]", sink.routingKeys)
	}
}

func TestCreateHabitKeepsExplicitZeroDelay(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingSink{}, zap.NewNop())

	habit, err := svc.Create(context.Background(), "alice", CreateInput{
		Name:                 "Stretch",
		TargetFrequency:      3,
		FollowUpDelayMinutes: intPtr(0),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if habit.FollowUpDelayMinutes != 0 {
		t.Errorf("follow-up delay = %d, want explicit 0 kept", habit.FollowUpDelayMinutes)
	}
}

func TestCreateHabitDefaultsCheckInTime(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingSink{}, zap.NewNop())

	habit, err := svc.Create(context.Background(), "alice", CreateInput{
		Name:            "Stretch",
		TargetFrequency: 3,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if habit.CheckInTime != model.CheckInAnytime {
		t.Errorf("check-in time = %q, want %q", habit.CheckInTime, model.CheckInAnytime)
	}
}

func TestCreateHabitValidation(t *testing.T) {
	svc := NewService(newFakeStore(), &recordingSink{}, zap.NewNop())

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{TargetFrequency: 3}},
		{"target too low", CreateInput{Name: "x", TargetFrequency: 0}},
		{"target too high", CreateInput{Name: "x", TargetFrequency: 8}},
		{"bad check-in time", CreateInput{Name: "x", TargetFrequency: 3, CheckInTime: "25:00"}},
		{"negative delay", CreateInput{Name: "x", TargetFrequency: 3, FollowUpDelayMinutes: intPtr(-1)}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(context.Background(), "alice", tc.in); !errors.Is(err, model.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestUpdateEmptyPatch(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingSink{}, zap.NewNop())

	updated, err := svc.Update(context.Background(), 1, "alice", model.HabitUpdate{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated {
		t.Error("empty patch should report false")
	}
	if len(store.updates) != 0 {
		t.Error("empty patch must not reach the store")
	}
}

func TestUpdateFrequencyRestampsProgressionStart(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingSink{}, zap.NewNop()).WithClock(fixedClock("2026-03-09"))

	if _, err := svc.Create(context.Background(), "alice", CreateInput{Name: "x", TargetFrequency: 5}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	freq := 4
	if _, err := svc.Update(context.Background(), 1, "alice", model.HabitUpdate{CurrentFrequency: &freq}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(store.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(store.updates))
	}
	patch := store.updates[0]
	if patch.ProgressionStartDate == nil {
		t.Fatal("expected progression start date to be re-stamped")
	}
	if got := patch.ProgressionStartDate.Format(model.DateLayout); got != "2026-03-09" {
		t.Errorf("progression start date = %s, want 2026-03-09", got)
	}
}

func TestDeactivateEmitsEvent(t *testing.T) {
	store := newFakeStore()
	sink := &recordingSink{}
	svc := NewService(store, sink, zap.NewNop())

	if _, err := svc.Create(context.Background(), "alice", CreateInput{Name: "x", TargetFrequency: 3}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Deactivate(context.Background(), 1, "alice")
	if err != nil || !ok {
		t.Fatalf("Deactivate = %v, %v", ok, err)
	}
	if got := sink.routingKeys[len(sink.routingKeys)-1]; got != "habit.deactivated" {
		t.Errorf("last event = %s, want habit.deactivated", got)
	}

	ok, err = svc.Deactivate(context.Background(), 1, "alice")
	if err != nil {
		t.Fatalf("second Deactivate: %v", err)
	}
	if ok {
		t.Error("second deactivate should report false")
	}
}
