package mqhandler

import (
	"context"
	"encoding/json"
	"testing"

	mqcontracts "habitloop/contracts/mq"
	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeHabits struct {
	byID map[int64]*model.Habit
}

func (f *fakeHabits) GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error) {
	h, ok := f.byID[habitID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return h, nil
}

type fakeProgression struct {
	evaluated []string
}

func (f *fakeProgression) Evaluate(ctx context.Context, ownerID string) (map[int64]string, error) {
	f.evaluated = append(f.evaluated, ownerID)
	return map[int64]string{}, nil
}

type fakeScoring struct {
	reasons []string
}

func (f *fakeScoring) Recalculate(ctx context.Context, ownerID, reason string) (*model.ConsistencyScore, error) {
	f.reasons = append(f.reasons, reason)
	return &model.ConsistencyScore{}, nil
}

type fakeContexts struct {
	due     []model.ContextMemory
	checked []int64
}

func (f *fakeContexts) NeedingCheckin(ctx context.Context, ownerID string) ([]model.ContextMemory, error) {
	return f.due, nil
}

func (f *fakeContexts) MarkChecked(ctx context.Context, contextID int64, ownerID string) (bool, error) {
	f.checked = append(f.checked, contextID)
	return true, nil
}

type fakeFollowups struct {
	habitIDs []int64
}

func (f *fakeFollowups) CreateFollowupTrigger(ctx context.Context, habit *model.Habit) (string, error) {
	f.habitIDs = append(f.habitIDs, habit.ID)
	return "trig-followup", nil
}

type handlerFixture struct {
	habits      *fakeHabits
	progression *fakeProgression
	scoring     *fakeScoring
	contexts    *fakeContexts
	followups   *fakeFollowups
	handler     *TriggerFiredHandler
}

func newFixture() *handlerFixture {
	f := &handlerFixture{
		habits:      &fakeHabits{byID: make(map[int64]*model.Habit)},
		progression: &fakeProgression{},
		scoring:     &fakeScoring{},
		contexts:    &fakeContexts{},
		followups:   &fakeFollowups{},
	}
	f.handler = NewTriggerFiredHandler(f.habits, f.progression, f.scoring, f.contexts, f.followups, zap.NewNop())
	return f
}

func fired(t *testing.T, p mqcontracts.TriggerFiredPayload) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandleWeeklyProgression(t *testing.T) {
	f := newFixture()

	err := f.handler.Handle(context.Background(), fired(t, mqcontracts.TriggerFiredPayload{
		TriggerID: "trig-1",
		OwnerID:   "alice",
		Type:      "WEEKLY_PROGRESSION",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.progression.evaluated) != 1 || f.progression.evaluated[0] != "alice" {
		t.Errorf("evaluated = %v, want [alice]", f.progression.evaluated)
	}
	if len(f.scoring.reasons) != 1 || f.scoring.reasons[0] != "weekly_progression" {
		t.Errorf("recalc reasons = %v", f.scoring.reasons)
	}
}

func TestHandleCheckinSchedulesFollowup(t *testing.T) {
	f := newFixture()
	f.habits.byID[7] = &model.Habit{ID: 7, OwnerID: "alice", Active: true}

	err := f.handler.Handle(context.Background(), fired(t, mqcontracts.TriggerFiredPayload{
		TriggerID: "trig-2",
		OwnerID:   "alice",
		Type:      "HABIT_CHECKIN",
		HabitID:   7,
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.followups.habitIDs) != 1 || f.followups.habitIDs[0] != 7 {
		t.Errorf("follow-ups = %v, want [7]", f.followups.habitIDs)
	}
}

func TestHandleCheckinFallsBackToPayloadParsing(t *testing.T) {
	f := newFixture()
	f.habits.byID[9] = &model.Habit{ID: 9, OwnerID: "alice", Active: true}

	err := f.handler.Handle(context.Background(), fired(t, mqcontracts.TriggerFiredPayload{
		TriggerID: "trig-3",
		OwnerID:   "alice",
		Payload:   "Check in with user about habit: run\n\nHabit ID: 9\nType: HABIT_CHECKIN\n",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.followups.habitIDs) != 1 || f.followups.habitIDs[0] != 9 {
		t.Errorf("follow-ups = %v, want [9]", f.followups.habitIDs)
	}
}

func TestHandleCheckinSkipsInactiveHabit(t *testing.T) {
	f := newFixture()
	f.habits.byID[7] = &model.Habit{ID: 7, OwnerID: "alice", Active: false}

	err := f.handler.Handle(context.Background(), fired(t, mqcontracts.TriggerFiredPayload{
		TriggerID: "trig-4",
		OwnerID:   "alice",
		Type:      "HABIT_CHECKIN",
		HabitID:   7,
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.followups.habitIDs) != 0 {
		t.Error("inactive habit must not get a follow-up")
	}
}

func TestHandleContextRefreshMarksDueContexts(t *testing.T) {
	f := newFixture()
	f.contexts.due = []model.ContextMemory{{ID: 3}, {ID: 5}}

	err := f.handler.Handle(context.Background(), fired(t, mqcontracts.TriggerFiredPayload{
		TriggerID: "trig-5",
		OwnerID:   "alice",
		Type:      "CONTEXT_REFRESH",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(f.contexts.checked) != 2 {
		t.Errorf("checked = %v, want both due contexts", f.contexts.checked)
	}
}

func TestHandleMalformedPayloadIsDropped(t *testing.T) {
	f := newFixture()

	if err := f.handler.Handle(context.Background(), json.RawMessage(`not json`)); err != nil {
		t.Errorf("malformed payload should not error for retry, got %v", err)
	}
	if len(f.progression.evaluated)+len(f.followups.habitIDs) != 0 {
		t.Error("malformed payload must not trigger any action")
	}
}
