package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"habitloop/internal/model"

	"go.uber.org/zap"
)

type fakeClient struct {
	requests []CreateTriggerRequest
	triggers []Trigger
	listErr  error
}

func (c *fakeClient) Create(ctx context.Context, req CreateTriggerRequest) (string, error) {
	c.requests = append(c.requests, req)
	return "trig-" + string(rune('a'+len(c.requests)-1)), nil
}

func (c *fakeClient) List(ctx context.Context, agentName string) ([]Trigger, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.triggers, nil
}

type fakeLinks struct {
	linked  map[int64]bool
	upserts []int64
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{linked: make(map[int64]bool)}
}

func (l *fakeLinks) Upsert(ctx context.Context, habitID int64, triggerID, triggerType string) error {
	l.linked[habitID] = true
	l.upserts = append(l.upserts, habitID)
	return nil
}

func (l *fakeLinks) LinkedHabitIDs(ctx context.Context, triggerType string) (map[int64]bool, error) {
	out := make(map[int64]bool, len(l.linked))
	for id := range l.linked {
		out[id] = true
	}
	return out, nil
}

func at(year int, month time.Month, day, hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	}
}

func newTestTriggers(client *fakeClient, links *fakeLinks, now func() time.Time) *Triggers {
	return NewTriggers(client, links, "habit-tracker", time.UTC, zap.NewNop()).WithClock(now)
}

func TestCheckinTriggerStartsTodayBeforeSlot(t *testing.T) {
	client := &fakeClient{}
	links := newFakeLinks()
	// 08:00, check-in at 09:30 still ahead
	trg := newTestTriggers(client, links, at(2026, time.March, 4, 8, 0))

	habit := &model.Habit{ID: 7, Name: "Morning run", CheckInTime: "09:30", CurrentFrequency: 2, TargetFrequency: 5}
	id, err := trg.CreateCheckinTrigger(context.Background(), habit)
	if err != nil {
		t.Fatalf("CreateCheckinTrigger: %v", err)
	}
	if id == "" {
		t.Fatal("expected a trigger id")
	}

	req := client.requests[0]
	if req.RecurrenceRule != "FREQ=DAILY;INTERVAL=1" {
		t.Errorf("rrule = %q", req.RecurrenceRule)
	}
	if req.StartTime != "2026-03-04T09:30:00Z" {
		t.Errorf("start = %q, want today 09:30", req.StartTime)
	}
	if !strings.Contains(req.Payload, "Habit ID: 7") {
		t.Error("payload missing habit id line")
	}
	if !strings.Contains(req.Payload, "Type: HABIT_CHECKIN") {
		t.Error("payload missing type header")
	}
	if !links.linked[7] {
		t.Error("check-in trigger should be linked to the habit")
	}
}

func TestCheckinTriggerRollsToTomorrow(t *testing.T) {
	client := &fakeClient{}
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 4, 10, 0))

	habit := &model.Habit{ID: 7, Name: "Morning run", CheckInTime: "07:30"}
	if _, err := trg.CreateCheckinTrigger(context.Background(), habit); err != nil {
		t.Fatalf("CreateCheckinTrigger: %v", err)
	}
	if got := client.requests[0].StartTime; got != "2026-03-05T07:30:00Z" {
		t.Errorf("start = %q, want tomorrow 07:30", got)
	}
}

func TestCheckinTriggerAnytimeDefaultsToTen(t *testing.T) {
	client := &fakeClient{}
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 4, 8, 0))

	habit := &model.Habit{ID: 7, Name: "Stretch", CheckInTime: model.CheckInAnytime}
	if _, err := trg.CreateCheckinTrigger(context.Background(), habit); err != nil {
		t.Fatalf("CreateCheckinTrigger: %v", err)
	}
	if got := client.requests[0].StartTime; got != "2026-03-04T10:00:00Z" {
		t.Errorf("start = %q, want today 10:00", got)
	}
}

func TestFollowupTriggerIsOneShot(t *testing.T) {
	client := &fakeClient{}
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 4, 14, 0))

	habit := &model.Habit{ID: 3, Name: "Read", FollowUpDelayMinutes: 90}
	if _, err := trg.CreateFollowupTrigger(context.Background(), habit); err != nil {
		t.Fatalf("CreateFollowupTrigger: %v", err)
	}

	req := client.requests[0]
	if req.RecurrenceRule != "" {
		t.Errorf("follow-up should not recur, got rrule %q", req.RecurrenceRule)
	}
	if req.StartTime != "2026-03-04T15:30:00Z" {
		t.Errorf("start = %q, want now plus 90 minutes", req.StartTime)
	}
	if !strings.Contains(req.Payload, "Type: HABIT_FOLLOWUP") {
		t.Error("payload missing type header")
	}
}

func TestWeeklyProgressionTriggerNextSunday(t *testing.T) {
	client := &fakeClient{}
	// Wednesday
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 4, 12, 0))

	if _, err := trg.CreateWeeklyProgressionTrigger(context.Background(), "alice"); err != nil {
		t.Fatalf("CreateWeeklyProgressionTrigger: %v", err)
	}

	req := client.requests[0]
	if req.RecurrenceRule != "FREQ=WEEKLY;BYDAY=SU" {
		t.Errorf("rrule = %q", req.RecurrenceRule)
	}
	if req.StartTime != "2026-03-08T23:00:00Z" {
		t.Errorf("start = %q, want Sunday 23:00", req.StartTime)
	}
	if !strings.Contains(req.Payload, "User ID: alice") {
		t.Error("payload missing user id line")
	}
}

func TestWeeklyProgressionTriggerSundayLateRollsAWeek(t *testing.T) {
	client := &fakeClient{}
	// Sunday 23:30, past the slot
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 8, 23, 30))

	if _, err := trg.CreateWeeklyProgressionTrigger(context.Background(), "alice"); err != nil {
		t.Fatalf("CreateWeeklyProgressionTrigger: %v", err)
	}
	if got := client.requests[0].StartTime; got != "2026-03-15T23:00:00Z" {
		t.Errorf("start = %q, want next Sunday 23:00", got)
	}
}

func TestContextRefreshTriggerUsesCadence(t *testing.T) {
	client := &fakeClient{}
	trg := newTestTriggers(client, newFakeLinks(), at(2026, time.March, 4, 18, 0))

	cadence := 3
	cm := &model.ContextMemory{ID: 11, ContextType: model.ContextTravel, Description: "work trip", CheckInFrequencyDays: &cadence}
	if _, err := trg.CreateContextRefreshTrigger(context.Background(), cm); err != nil {
		t.Fatalf("CreateContextRefreshTrigger: %v", err)
	}

	req := client.requests[0]
	if req.RecurrenceRule != "FREQ=DAILY;INTERVAL=3" {
		t.Errorf("rrule = %q", req.RecurrenceRule)
	}
	if req.StartTime != "2026-03-05T10:00:00Z" {
		t.Errorf("start = %q, want tomorrow 10:00", req.StartTime)
	}
	if !strings.Contains(req.Payload, "Context ID: 11") {
		t.Error("payload missing context id line")
	}
}

func TestParsePayloadHeaders(t *testing.T) {
	payload := `Check in with user about habit: Morning run

Habit ID: 42
Type: HABIT_CHECKIN

Ask the user.`

	if got := ParseHabitID(payload); got != 42 {
		t.Errorf("ParseHabitID = %d, want 42", got)
	}
	if got := ParseTriggerType(payload); got != "HABIT_CHECKIN" {
		t.Errorf("ParseTriggerType = %q", got)
	}

	if got := ParseHabitID("no headers here"); got != 0 {
		t.Errorf("ParseHabitID without header = %d, want 0", got)
	}
	if got := ParseTriggerType("no headers here"); got != "" {
		t.Errorf("ParseTriggerType without header = %q, want empty", got)
	}
	if got := ParseHabitID("Habit ID: nope"); got != 0 {
		t.Errorf("ParseHabitID with garbage = %d, want 0", got)
	}
}
