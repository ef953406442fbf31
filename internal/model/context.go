package model

import "time"

// Context types.
const (
	ContextSick       = "sick"
	ContextInjury     = "injury"
	ContextExamPeriod = "exam_period"
	ContextTravel     = "travel"
)

// ContextMemory is a time-bounded situational exception (illness, exams,
// travel) that exempts affected dates from progression penalties.
type ContextMemory struct {
	ID                   int64      `json:"id"`
	OwnerID              string     `json:"owner_id"`
	ContextType          string     `json:"context_type"`
	Description          string     `json:"description"`
	StartDate            time.Time  `json:"start_date"`
	ExpectedEndDate      *time.Time `json:"expected_end_date,omitempty"`
	CheckInFrequencyDays *int       `json:"check_in_frequency_days,omitempty"`
	LastCheckedAt        *time.Time `json:"last_checked_at,omitempty"`
	Resolved             bool       `json:"resolved"`
	ResolvedDate         *time.Time `json:"resolved_date,omitempty"`
	RelatedHabits        []int64    `json:"related_habits"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Covers reports whether the given day falls inside the context's
// exemption window: start_date through resolved_date, or through today
// while unresolved.
func (c *ContextMemory) Covers(day, today time.Time) bool {
	end := today
	if c.ResolvedDate != nil {
		end = *c.ResolvedDate
	}
	d := DateOf(day)
	return !d.Before(DateOf(c.StartDate)) && !d.After(DateOf(end))
}
