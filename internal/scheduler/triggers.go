package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"habitloop/internal/model"
	"habitloop/pkg/metrics"

	"go.uber.org/zap"
)

// Trigger type headers embedded in trigger payloads.
const (
	TypeHabitCheckin      = "HABIT_CHECKIN"
	TypeHabitFollowup     = "HABIT_FOLLOWUP"
	TypeWeeklyProgression = "WEEKLY_PROGRESSION"
	TypeContextRefresh    = "CONTEXT_REFRESH"
)

const (
	dailyRule  = "FREQ=DAILY;INTERVAL=1"
	weeklyRule = "FREQ=WEEKLY;BYDAY=SU"
)

// LinkStore records which trigger serves which habit.
type LinkStore interface {
	Upsert(ctx context.Context, habitID int64, triggerID, triggerType string) error
	LinkedHabitIDs(ctx context.Context, triggerType string) (map[int64]bool, error)
}

// Triggers builds the scheduling side of habits: daily check-ins,
// one-shot follow-ups, the weekly progression run and context refreshes.
type Triggers struct {
	client    TriggerClient
	links     LinkStore
	agentName string
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

func NewTriggers(client TriggerClient, links LinkStore, agentName string, location *time.Location, logger *zap.Logger) *Triggers {
	if location == nil {
		location = time.UTC
	}
	return &Triggers{
		client:    client,
		links:     links,
		agentName: agentName,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCheckinTrigger schedules the daily check-in for a habit at its
// check-in time (10:00 for "anytime" habits). If today's slot has
// already passed, the schedule starts tomorrow.
func (t *Triggers) CreateCheckinTrigger(ctx context.Context, habit *model.Habit) (string, error) {
	hour, minute, err := model.ParseCheckInTime(habit.CheckInTime)
	if err != nil {
		return "", err
	}

	now := t.now().In(t.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, t.location)
	if !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}

	payload := fmt.Sprintf(`Check in with user about habit: %s

Habit ID: %d
Type: %s
Current Frequency: %dx per week
Target Frequency: %dx per week

Ask the user if they have completed this habit today. Be supportive and context-aware.`,
		habit.Name, habit.ID, TypeHabitCheckin, habit.CurrentFrequency, habit.TargetFrequency)

	triggerID, err := t.client.Create(ctx, CreateTriggerRequest{
		AgentName:      t.agentName,
		Payload:        payload,
		RecurrenceRule: dailyRule,
		StartTime:      start.Format(time.RFC3339),
		TimezoneName:   t.location.String(),
		Status:         "active",
	})
	if err != nil {
		metrics.IncrementTriggerCreated(TypeHabitCheckin, "failed")
		return "", fmt.Errorf("failed to create check-in trigger: %w", err)
	}
	metrics.IncrementTriggerCreated(TypeHabitCheckin, "success")

	if err := t.links.Upsert(ctx, habit.ID, triggerID, TypeHabitCheckin); err != nil {
		t.logger.Warn("Failed to store trigger link",
			zap.Int64("habit_id", habit.ID),
			zap.String("trigger_id", triggerID),
			zap.Error(err),
		)
	}

	t.logger.Info("Check-in trigger created",
		zap.String("trigger_id", triggerID),
		zap.Int64("habit_id", habit.ID),
		zap.String("habit_name", habit.Name),
		zap.String("check_in_time", habit.CheckInTime),
	)
	return triggerID, nil
}

// CreateFollowupTrigger schedules a one-shot nudge after the habit's
// follow-up delay.
func (t *Triggers) CreateFollowupTrigger(ctx context.Context, habit *model.Habit) (string, error) {
	start := t.now().In(t.location).Add(time.Duration(habit.FollowUpDelayMinutes) * time.Minute)

	payload := fmt.Sprintf(`Follow up with user about habit: %s

Habit ID: %d
Type: %s

Send a gentle follow-up asking if they completed this habit today. Keep it friendly and non-pushy.`,
		habit.Name, habit.ID, TypeHabitFollowup)

	triggerID, err := t.client.Create(ctx, CreateTriggerRequest{
		AgentName:    t.agentName,
		Payload:      payload,
		StartTime:    start.Format(time.RFC3339),
		TimezoneName: t.location.String(),
		Status:       "active",
	})
	if err != nil {
		metrics.IncrementTriggerCreated(TypeHabitFollowup, "failed")
		return "", fmt.Errorf("failed to create follow-up trigger: %w", err)
	}
	metrics.IncrementTriggerCreated(TypeHabitFollowup, "success")

	t.logger.Info("Follow-up trigger created",
		zap.String("trigger_id", triggerID),
		zap.Int64("habit_id", habit.ID),
		zap.Int("delay_minutes", habit.FollowUpDelayMinutes),
	)
	return triggerID, nil
}

// CreateWeeklyProgressionTrigger schedules the progression run for
// Sunday 23:00. A Sunday past 23:00 rolls to the next week.
func (t *Triggers) CreateWeeklyProgressionTrigger(ctx context.Context, ownerID string) (string, error) {
	now := t.now().In(t.location)

	daysUntilSunday := (7 - int(now.Weekday())) % 7
	if daysUntilSunday == 0 && now.Hour() >= 23 {
		daysUntilSunday = 7
	}
	sunday := now.AddDate(0, 0, daysUntilSunday)
	start := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 0, 0, 0, t.location)

	payload := fmt.Sprintf(`Weekly habit progression evaluation

Type: %s
User ID: %s

Evaluate all habits for progression. Check performance over the last 2 weeks and adjust difficulty levels accordingly.
Send encouraging messages about progressions to the user.`, TypeWeeklyProgression, ownerID)

	triggerID, err := t.client.Create(ctx, CreateTriggerRequest{
		AgentName:      t.agentName,
		Payload:        payload,
		RecurrenceRule: weeklyRule,
		StartTime:      start.Format(time.RFC3339),
		TimezoneName:   t.location.String(),
		Status:         "active",
	})
	if err != nil {
		metrics.IncrementTriggerCreated(TypeWeeklyProgression, "failed")
		return "", fmt.Errorf("failed to create weekly progression trigger: %w", err)
	}
	metrics.IncrementTriggerCreated(TypeWeeklyProgression, "success")

	t.logger.Info("Weekly progression trigger created",
		zap.String("trigger_id", triggerID),
		zap.String("owner_id", ownerID),
	)
	return triggerID, nil
}

// CreateContextRefreshTrigger schedules the "are you still sick?"
// style check, starting tomorrow 10:00 at the context's cadence.
func (t *Triggers) CreateContextRefreshTrigger(ctx context.Context, cm *model.ContextMemory) (string, error) {
	cadence := 1
	if cm.CheckInFrequencyDays != nil && *cm.CheckInFrequencyDays > 0 {
		cadence = *cm.CheckInFrequencyDays
	}

	now := t.now().In(t.location)
	tomorrow := now.AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, t.location)

	payload := fmt.Sprintf(`Context check-in: %s

Context ID: %d
Type: %s
Context Type: %s

Check in with the user about this context. Ask if they're still dealing with it or if things have improved.`,
		cm.Description, cm.ID, TypeContextRefresh, cm.ContextType)

	triggerID, err := t.client.Create(ctx, CreateTriggerRequest{
		AgentName:      t.agentName,
		Payload:        payload,
		RecurrenceRule: fmt.Sprintf("FREQ=DAILY;INTERVAL=%d", cadence),
		StartTime:      start.Format(time.RFC3339),
		TimezoneName:   t.location.String(),
		Status:         "active",
	})
	if err != nil {
		metrics.IncrementTriggerCreated(TypeContextRefresh, "failed")
		return "", fmt.Errorf("failed to create context refresh trigger: %w", err)
	}
	metrics.IncrementTriggerCreated(TypeContextRefresh, "success")

	t.logger.Info("Context refresh trigger created",
		zap.String("trigger_id", triggerID),
		zap.Int64("context_id", cm.ID),
		zap.Int("check_in_days", cadence),
	)
	return triggerID, nil
}

// ParseHabitID extracts the "Habit ID: <n>" line from a trigger payload.
// Returns 0 when no such line exists.
func ParseHabitID(payload string) int64 {
	scanner := bufio.NewScanner(strings.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "Habit ID:"); ok {
			id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return 0
			}
			return id
		}
	}
	return 0
}

// ParseTriggerType extracts the "Type: <T>" header from a trigger
// payload. Returns "" when absent.
func ParseTriggerType(payload string) string {
	scanner := bufio.NewScanner(strings.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "Type:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// WithClock overrides the clock; used by tests.
func (t *Triggers) WithClock(now func() time.Time) *Triggers {
	t.now = now
	return t
}
