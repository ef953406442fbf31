package mqhandler

import (
	"context"
	"encoding/json"
	"testing"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeLinkChecker struct {
	linked map[int64]bool
}

func (f *fakeLinkChecker) LinkedHabitIDs(ctx context.Context, triggerType string) (map[int64]bool, error) {
	return f.linked, nil
}

type fakeCheckinScheduler struct {
	habitIDs []int64
}

func (f *fakeCheckinScheduler) CreateCheckinTrigger(ctx context.Context, habit *model.Habit) (string, error) {
	f.habitIDs = append(f.habitIDs, habit.ID)
	return "trig-checkin", nil
}

type fakeRefreshScheduler struct {
	contextIDs []int64
}

func (f *fakeRefreshScheduler) CreateContextRefreshTrigger(ctx context.Context, cm *model.ContextMemory) (string, error) {
	f.contextIDs = append(f.contextIDs, cm.ID)
	return "trig-refresh", nil
}

type fakeContextReader struct {
	byID map[int64]*model.ContextMemory
}

func (f *fakeContextReader) GetByID(ctx context.Context, contextID int64, ownerID string) (*model.ContextMemory, error) {
	cm, ok := f.byID[contextID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cm, nil
}

func TestHabitCreatedSchedulesCheckin(t *testing.T) {
	habits := &fakeHabits{byID: map[int64]*model.Habit{
		7: {ID: 7, OwnerID: "alice", Name: "run", Active: true},
	}}
	sched := &fakeCheckinScheduler{}
	h := NewHabitCreatedHandler(habits, &fakeLinkChecker{}, sched, zap.NewNop())

	data, _ := json.Marshal(mqcontracts.HabitCreatedPayload{HabitID: 7, OwnerID: "alice"})
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sched.habitIDs) != 1 || sched.habitIDs[0] != 7 {
		t.Errorf("scheduled = %v, want [7]", sched.habitIDs)
	}
}

func TestHabitCreatedSkipsAlreadyLinked(t *testing.T) {
	habits := &fakeHabits{byID: map[int64]*model.Habit{
		7: {ID: 7, OwnerID: "alice", Active: true},
	}}
	sched := &fakeCheckinScheduler{}
	links := &fakeLinkChecker{linked: map[int64]bool{7: true}}
	h := NewHabitCreatedHandler(habits, links, sched, zap.NewNop())

	data, _ := json.Marshal(mqcontracts.HabitCreatedPayload{HabitID: 7, OwnerID: "alice"})
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sched.habitIDs) != 0 {
		t.Error("redelivered event must not schedule a second trigger")
	}
}

func TestContextCreatedSchedulesRefresh(t *testing.T) {
	cadence := 1
	contexts := &fakeContextReader{byID: map[int64]*model.ContextMemory{
		3: {ID: 3, OwnerID: "alice", ContextType: model.ContextSick, CheckInFrequencyDays: &cadence},
	}}
	sched := &fakeRefreshScheduler{}
	h := NewContextCreatedHandler(contexts, sched, zap.NewNop())

	data, _ := json.Marshal(mqcontracts.ContextCreatedPayload{ContextID: 3, OwnerID: "alice"})
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sched.contextIDs) != 1 || sched.contextIDs[0] != 3 {
		t.Errorf("scheduled = %v, want [3]", sched.contextIDs)
	}
}

func TestContextCreatedWithoutCadenceIsSkipped(t *testing.T) {
	contexts := &fakeContextReader{byID: map[int64]*model.ContextMemory{
		3: {ID: 3, OwnerID: "alice", ContextType: model.ContextExamPeriod},
	}}
	sched := &fakeRefreshScheduler{}
	h := NewContextCreatedHandler(contexts, sched, zap.NewNop())

	data, _ := json.Marshal(mqcontracts.ContextCreatedPayload{ContextID: 3, OwnerID: "alice"})
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sched.contextIDs) != 0 {
		t.Error("context without cadence must not get a refresh trigger")
	}
}
