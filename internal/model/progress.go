package model

import "time"

// Excuse categories treated as legitimate by the scoring grace component.
const (
	ExcuseSick   = "sick"
	ExcuseExam   = "exam"
	ExcuseTravel = "travel"
	ExcuseInjury = "injury"
	ExcuseOther  = "other"
)

type ProgressEntry struct {
	ID             int64     `json:"id"`
	HabitID        int64     `json:"habit_id"`
	Date           time.Time `json:"date"`
	Completed      bool      `json:"completed"`
	ExcuseGiven    string    `json:"excuse_given,omitempty"`
	ExcuseCategory string    `json:"excuse_category,omitempty"`
	CheckedInAt    time.Time `json:"checked_in_at"`
	AgentMessage   string    `json:"agent_message,omitempty"`
	UserResponse   string    `json:"user_response,omitempty"`
}

// TodayProgress is a per-habit slice of today's check-in state.
// Completed is nil when no entry exists yet.
type TodayProgress struct {
	HabitID   int64  `json:"habit_id"`
	HabitName string `json:"habit_name"`
	Completed *bool  `json:"completed"`
}
