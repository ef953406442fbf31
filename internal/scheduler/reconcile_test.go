package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeHabitLister struct {
	habits []model.Habit
}

func (f *fakeHabitLister) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error) {
	return f.habits, nil
}

func newTestReconciler(client *fakeClient, links *fakeLinks, habits []model.Habit) *Reconciler {
	trg := newTestTriggers(client, links, at(2026, time.March, 4, 8, 0))
	return NewReconciler(trg, client, links, &fakeHabitLister{habits: habits}, zap.NewNop())
}

func TestReconcileCreatesMissingTriggers(t *testing.T) {
	client := &fakeClient{}
	links := newFakeLinks()
	habits := []model.Habit{
		{ID: 1, Name: "run", CheckInTime: "09:30", Active: true},
		{ID: 2, Name: "read", CheckInTime: model.CheckInAnytime, Active: true},
	}
	r := newTestReconciler(client, links, habits)

	created, err := r.EnsureCheckinTriggers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureCheckinTriggers: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	// second run finds everything linked
	created, err = r.EnsureCheckinTriggers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created = %d, want 0", created)
	}
	if len(client.requests) != 2 {
		t.Errorf("scheduler calls = %d, want 2", len(client.requests))
	}
}

func TestReconcileBackfillsFromRemotePayloads(t *testing.T) {
	client := &fakeClient{triggers: []Trigger{
		{ID: "trig-old", Payload: "Check in with user about habit: run\n\nHabit ID: 1\nType: HABIT_CHECKIN\n"},
		{ID: "trig-other", Payload: "Weekly habit progression evaluation\n\nType: WEEKLY_PROGRESSION\n"},
	}}
	links := newFakeLinks()
	habits := []model.Habit{{ID: 1, Name: "run", CheckInTime: "09:30", Active: true}}
	r := newTestReconciler(client, links, habits)

	created, err := r.EnsureCheckinTriggers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureCheckinTriggers: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0 (remote trigger already covers the habit)", created)
	}
	if !links.linked[1] {
		t.Error("remote trigger should have been backfilled into the link table")
	}
	if len(client.requests) != 0 {
		t.Errorf("scheduler calls = %d, want none", len(client.requests))
	}
}

func TestReconcileToleratesListFailure(t *testing.T) {
	client := &fakeClient{listErr: errors.New("scheduler down")}
	links := newFakeLinks()
	habits := []model.Habit{{ID: 1, Name: "run", CheckInTime: "09:30", Active: true}}
	r := newTestReconciler(client, links, habits)

	created, err := r.EnsureCheckinTriggers(context.Background(), "alice")
	if err != nil {
		t.Fatalf("EnsureCheckinTriggers: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 despite list failure", created)
	}
}
