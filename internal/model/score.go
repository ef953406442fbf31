package model

import "time"

// ScoreHistoryCap bounds score_history; oldest entries are dropped first.
const ScoreHistoryCap = 90

type ScoreHistoryEntry struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ConsistencyScore is one evolving row per owner, created lazily with a
// default of 50.
type ConsistencyScore struct {
	ID           int64               `json:"id"`
	OwnerID      string              `json:"owner_id"`
	CurrentScore float64             `json:"current_score"`
	PeakScore    float64             `json:"peak_score"`
	UpdatedAt    time.Time           `json:"updated_at"`
	ScoreHistory []ScoreHistoryEntry `json:"score_history"`
}

// ScoreBreakdown mirrors the recalculation components without persisting.
type ScoreBreakdown struct {
	CurrentScore float64 `json:"current_score"`
	PeakScore    float64 `json:"peak_score"`
	Base         float64 `json:"base"`
	Completion   float64 `json:"completion"`
	Streak       float64 `json:"streak"`
	Progression  float64 `json:"progression"`
	ExcuseGrace  float64 `json:"excuse_grace"`
	Trend        float64 `json:"trend"`
	UpdatedAt    string  `json:"updated_at"`
}
