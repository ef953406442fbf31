package mq

// Routing keys published and consumed by the habit service.
const (
	HabitCreated       = "habit.created"
	HabitDeactivated   = "habit.deactivated"
	ProgressLogged     = "habit.progress.logged"
	ProgressionChanged = "habit.progression.changed"
	ScoreUpdated       = "consistency.score.updated"
	ContextCreated     = "context.created"
	ContextResolved    = "context.resolved"
	TriggerFired       = "trigger.fired"
)
