package repository

import (
	"context"
	"errors"
	"time"

	"habitloop/internal/model"
	"habitloop/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProgressRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProgressRepository(db *pgxpool.Pool, logger *zap.Logger) *ProgressRepository {
	return &ProgressRepository{
		db:     db,
		logger: logger,
	}
}

const progressColumns = `id, habit_id, date, completed, COALESCE(excuse_given, ''),
		COALESCE(excuse_category, ''), checked_in_at, COALESCE(agent_message, ''),
		COALESCE(user_response, '')`

// Upsert records a check-in answer. A second answer for the same
// habit/date overwrites the first: latest entry per day wins.
func (r *ProgressRepository) Upsert(ctx context.Context, e *model.ProgressEntry) error {
	r.logger.Debug("Upserting progress entry",
		zap.Int64("habit_id", e.HabitID),
		zap.Time("date", e.Date),
		zap.Bool("completed", e.Completed),
	)

	start := time.Now()
	query := `
        INSERT INTO progress_log (habit_id, date, completed, excuse_given,
            excuse_category, agent_message, user_response)
        VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))
        ON CONFLICT (habit_id, date) DO UPDATE SET
            completed = EXCLUDED.completed,
            excuse_given = EXCLUDED.excuse_given,
            excuse_category = EXCLUDED.excuse_category,
            agent_message = EXCLUDED.agent_message,
            user_response = EXCLUDED.user_response,
            checked_in_at = NOW()
        RETURNING id, checked_in_at
    `
	err := r.db.QueryRow(ctx, query,
		e.HabitID,
		e.Date,
		e.Completed,
		e.ExcuseGiven,
		e.ExcuseCategory,
		e.AgentMessage,
		e.UserResponse,
	).Scan(&e.ID, &e.CheckedInAt)
	metrics.RecordDBQueryDuration("upsert", "progress_log", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to upsert progress entry",
			zap.Int64("habit_id", e.HabitID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Progress entry recorded",
		zap.Int64("id", e.ID),
		zap.Int64("habit_id", e.HabitID),
		zap.Bool("completed", e.Completed),
	)
	return nil
}

func (r *ProgressRepository) GetByDate(ctx context.Context, habitID int64, day time.Time) (*model.ProgressEntry, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_log WHERE habit_id = $1 AND date = $2`

	start := time.Now()
	row := r.db.QueryRow(ctx, query, habitID, day)
	e, err := scanProgress(row)
	metrics.RecordDBQueryDuration("select", "progress_log", time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get progress entry",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return nil, err
	}
	return e, nil
}

// GetRange returns entries for [startDate, endDate], newest first.
func (r *ProgressRepository) GetRange(ctx context.Context, habitID int64, startDate, endDate time.Time) ([]model.ProgressEntry, error) {
	query := `
        SELECT ` + progressColumns + `
        FROM progress_log
        WHERE habit_id = $1 AND date >= $2 AND date <= $3
        ORDER BY date DESC
    `

	start := time.Now()
	rows, err := r.db.Query(ctx, query, habitID, startDate, endDate)
	if err != nil {
		r.logger.Error("Failed to query progress range",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var entries []model.ProgressEntry
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			r.logger.Error("Failed to scan progress entry", zap.Error(err))
			return nil, err
		}
		entries = append(entries, *e)
	}
	metrics.RecordDBQueryDuration("select", "progress_log", time.Since(start))

	return entries, rows.Err()
}

// TodayOverview joins active habits against today's entries.
func (r *ProgressRepository) TodayOverview(ctx context.Context, ownerID string, today time.Time) ([]model.TodayProgress, error) {
	query := `
        SELECT h.id, h.name, p.completed
        FROM habits h
        LEFT JOIN progress_log p ON h.id = p.habit_id AND p.date = $1
        WHERE h.owner_id = $2 AND h.active = TRUE
        ORDER BY h.id
    `

	start := time.Now()
	rows, err := r.db.Query(ctx, query, today, ownerID)
	if err != nil {
		r.logger.Error("Failed to query today's progress", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var overview []model.TodayProgress
	for rows.Next() {
		var tp model.TodayProgress
		if err := rows.Scan(&tp.HabitID, &tp.HabitName, &tp.Completed); err != nil {
			r.logger.Error("Failed to scan today's progress", zap.Error(err))
			return nil, err
		}
		overview = append(overview, tp)
	}
	metrics.RecordDBQueryDuration("select", "progress_log", time.Since(start))

	return overview, rows.Err()
}

func scanProgress(row pgx.Row) (*model.ProgressEntry, error) {
	var e model.ProgressEntry
	err := row.Scan(
		&e.ID,
		&e.HabitID,
		&e.Date,
		&e.Completed,
		&e.ExcuseGiven,
		&e.ExcuseCategory,
		&e.CheckedInAt,
		&e.AgentMessage,
		&e.UserResponse,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
