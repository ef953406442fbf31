package model

import "time"

// CheckInAnytime is the sentinel check-in time for habits without a
// fixed schedule; the scheduler substitutes 10:00.
const CheckInAnytime = "anytime"

type Habit struct {
	ID                   int64     `json:"id"`
	OwnerID              string    `json:"owner_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description,omitempty"`
	TargetFrequency      int       `json:"target_frequency"`  // times per week, 1-7
	CurrentFrequency     int       `json:"current_frequency"` // progressive target, >= 1
	CheckInTime          string    `json:"check_in_time"` // "HH:MM" or "anytime"
	FollowUpDelayMinutes int       `json:"follow_up_delay_minutes"`
	CreatedAt            time.Time `json:"created_at"`
	ProgressionStartDate time.Time `json:"progression_start_date"`
	Active               bool      `json:"active"`
}

// HabitUpdate is a partial patch; nil fields are left untouched.
type HabitUpdate struct {
	Name                 *string
	Description          *string
	TargetFrequency      *int
	CurrentFrequency     *int
	CheckInTime          *string
	FollowUpDelayMinutes *int
	ProgressionStartDate *time.Time
}

// Empty reports whether the patch changes nothing.
func (u HabitUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.TargetFrequency == nil &&
		u.CurrentFrequency == nil && u.CheckInTime == nil &&
		u.FollowUpDelayMinutes == nil && u.ProgressionStartDate == nil
}

// HabitStats is derived from the progress ledger, never persisted.
type HabitStats struct {
	HabitID           int64   `json:"habit_id"`
	HabitName         string  `json:"habit_name"`
	CurrentFrequency  int     `json:"current_frequency"`
	TargetFrequency   int     `json:"target_frequency"`
	CompletionRate    float64 `json:"completion_rate"`
	RecentCompletions int     `json:"recent_completions"`
	RecentAttempts    int     `json:"recent_attempts"`
	CurrentStreak     int     `json:"current_streak"`
}
