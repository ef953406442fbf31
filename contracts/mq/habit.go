package mq

type HabitCreatedPayload struct {
	HabitID           int64  `json:"habit_id"`
	OwnerID           string `json:"owner_id"`
	Name              string `json:"name"`
	TargetFrequency   int    `json:"target_frequency"`
	CurrentFrequency  int    `json:"current_frequency"`
	CheckInTime       string `json:"check_in_time"`
	SchedulingPending bool   `json:"scheduling_pending,omitempty"`
}

type HabitDeactivatedPayload struct {
	HabitID int64  `json:"habit_id"`
	OwnerID string `json:"owner_id"`
}

type ProgressLoggedPayload struct {
	HabitID        int64  `json:"habit_id"`
	OwnerID        string `json:"owner_id"`
	Date           string `json:"date"` // YYYY-MM-DD
	Completed      bool   `json:"completed"`
	ExcuseCategory string `json:"excuse_category,omitempty"`
}

type ProgressionChangedPayload struct {
	HabitID      int64   `json:"habit_id"`
	OwnerID      string  `json:"owner_id"`
	OldFrequency int     `json:"old_frequency"`
	NewFrequency int     `json:"new_frequency"`
	SuccessRate  float64 `json:"success_rate"`
	Decision     string  `json:"decision"`
}

type ScoreUpdatedPayload struct {
	OwnerID   string  `json:"owner_id"`
	Score     float64 `json:"score"`
	PeakScore float64 `json:"peak_score"`
	Reason    string  `json:"reason"`
}

type ContextCreatedPayload struct {
	ContextID     int64   `json:"context_id"`
	OwnerID       string  `json:"owner_id"`
	ContextType   string  `json:"context_type"`
	RelatedHabits []int64 `json:"related_habits,omitempty"`
}

type ContextResolvedPayload struct {
	ContextID int64  `json:"context_id"`
	OwnerID   string `json:"owner_id"`
}

// TriggerFiredPayload is the scheduler's callback event. Type mirrors
// the trigger payload header (HABIT_CHECKIN, HABIT_FOLLOWUP,
// WEEKLY_PROGRESSION, CONTEXT_REFRESH).
type TriggerFiredPayload struct {
	TriggerID string `json:"trigger_id"`
	OwnerID   string `json:"owner_id"`
	Type      string `json:"type"`
	HabitID   int64  `json:"habit_id,omitempty"`
	ContextID int64  `json:"context_id,omitempty"`
	Payload   string `json:"payload,omitempty"`
}
