package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// progress_log carries UNIQUE(habit_id, date): a second check-in for the
// same day overwrites the first (latest entry per day wins).
const schemaSQL = `
CREATE TABLE IF NOT EXISTS habits (
    id BIGSERIAL PRIMARY KEY,
    owner_id TEXT NOT NULL DEFAULT 'default_user',
    name TEXT NOT NULL,
    description TEXT,
    target_frequency INT NOT NULL,
    current_frequency INT NOT NULL,
    check_in_time TEXT NOT NULL,
    follow_up_delay_minutes INT NOT NULL DEFAULT 60,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    progression_start_date DATE NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS progress_log (
    id BIGSERIAL PRIMARY KEY,
    habit_id BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
    date DATE NOT NULL,
    completed BOOLEAN NOT NULL,
    excuse_given TEXT,
    excuse_category TEXT,
    checked_in_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    agent_message TEXT,
    user_response TEXT,
    UNIQUE (habit_id, date)
);

CREATE TABLE IF NOT EXISTS context_memory (
    id BIGSERIAL PRIMARY KEY,
    owner_id TEXT NOT NULL DEFAULT 'default_user',
    context_type TEXT NOT NULL,
    description TEXT NOT NULL,
    start_date DATE NOT NULL,
    expected_end_date DATE,
    check_in_frequency_days INT,
    last_checked_at TIMESTAMPTZ,
    resolved BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_date DATE,
    related_habits BIGINT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS consistency_score (
    id BIGSERIAL PRIMARY KEY,
    owner_id TEXT NOT NULL UNIQUE,
    current_score DOUBLE PRECISION NOT NULL DEFAULT 50.0,
    peak_score DOUBLE PRECISION NOT NULL DEFAULT 50.0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    score_history JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS habit_triggers (
    habit_id BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
    trigger_id TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (habit_id, trigger_type)
);

CREATE TABLE IF NOT EXISTS user_onboarding (
    owner_id TEXT PRIMARY KEY,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    habits_created INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outbox_events (
    id BIGSERIAL PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id BIGINT,
    routing_key TEXT NOT NULL,
    payload JSONB NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INT NOT NULL DEFAULT 0,
    next_retry_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_habits_owner ON habits(owner_id);
CREATE INDEX IF NOT EXISTS idx_habits_active ON habits(active);
CREATE INDEX IF NOT EXISTS idx_progress_log_habit_date ON progress_log(habit_id, date);
CREATE INDEX IF NOT EXISTS idx_progress_log_date ON progress_log(date);
CREATE INDEX IF NOT EXISTS idx_context_memory_owner_resolved ON context_memory(owner_id, resolved);
CREATE INDEX IF NOT EXISTS idx_outbox_events_status ON outbox_events(status, next_retry_at);
`

// EnsureSchema creates the habit tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		logger.Error("Failed to ensure schema", zap.Error(err))
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	logger.Info("Database schema ensured")
	return nil
}
