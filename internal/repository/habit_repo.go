package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitloop/internal/model"
	"habitloop/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type HabitRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHabitRepository(db *pgxpool.Pool, logger *zap.Logger) *HabitRepository {
	return &HabitRepository{
		db:     db,
		logger: logger,
	}
}

const habitColumns = `id, owner_id, name, COALESCE(description, ''), target_frequency,
		current_frequency, check_in_time, follow_up_delay_minutes, created_at,
		progression_start_date, active`

func (r *HabitRepository) Insert(ctx context.Context, h *model.Habit) (int64, error) {
	r.logger.Debug("Inserting habit",
		zap.String("owner_id", h.OwnerID),
		zap.String("name", h.Name),
		zap.Int("target_frequency", h.TargetFrequency),
		zap.Int("current_frequency", h.CurrentFrequency),
	)

	start := time.Now()
	query := `
        INSERT INTO habits (owner_id, name, description, target_frequency,
            current_frequency, check_in_time, follow_up_delay_minutes, progression_start_date)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		h.OwnerID,
		h.Name,
		h.Description,
		h.TargetFrequency,
		h.CurrentFrequency,
		h.CheckInTime,
		h.FollowUpDelayMinutes,
		h.ProgressionStartDate,
	).Scan(&h.ID, &h.CreatedAt)
	metrics.RecordDBQueryDuration("insert", "habits", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to insert habit", zap.Error(err))
		return 0, err
	}

	r.logger.Info("Habit inserted successfully",
		zap.Int64("id", h.ID),
		zap.String("owner_id", h.OwnerID),
	)
	return h.ID, nil
}

func (r *HabitRepository) GetByID(ctx context.Context, habitID int64, ownerID string) (*model.Habit, error) {
	query := fmt.Sprintf(`SELECT %s FROM habits WHERE id = $1 AND owner_id = $2`, habitColumns)

	start := time.Now()
	row := r.db.QueryRow(ctx, query, habitID, ownerID)
	h, err := scanHabit(row)
	metrics.RecordDBQueryDuration("select", "habits", time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get habit", zap.Int64("habit_id", habitID), zap.Error(err))
		return nil, err
	}
	return h, nil
}

// DistinctOwners returns every owner with at least one active habit.
// The worker's trigger reconciliation iterates these.
func (r *HabitRepository) DistinctOwners(ctx context.Context) ([]string, error) {
	start := time.Now()
	rows, err := r.db.Query(ctx, `SELECT DISTINCT owner_id FROM habits WHERE active = TRUE`)
	if err != nil {
		r.logger.Error("Failed to list habit owners", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	metrics.RecordDBQueryDuration("select", "habits", time.Since(start))

	return owners, rows.Err()
}

func (r *HabitRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]model.Habit, error) {
	r.logger.Debug("Listing habits",
		zap.String("owner_id", ownerID),
		zap.Bool("active_only", activeOnly),
	)

	query := fmt.Sprintf(`SELECT %s FROM habits WHERE owner_id = $1 ORDER BY id`, habitColumns)
	if activeOnly {
		query = fmt.Sprintf(`SELECT %s FROM habits WHERE owner_id = $1 AND active = TRUE ORDER BY id`, habitColumns)
	}

	start := time.Now()
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, err
		}
		habits = append(habits, *h)
	}
	metrics.RecordDBQueryDuration("select", "habits", time.Since(start))

	r.logger.Debug("Listed habits",
		zap.String("owner_id", ownerID),
		zap.Int("count", len(habits)),
	)
	return habits, rows.Err()
}

// Update applies a partial patch; returns false when nothing matched.
func (r *HabitRepository) Update(ctx context.Context, habitID int64, ownerID string, patch model.HabitUpdate) (bool, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 9)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.TargetFrequency != nil {
		add("target_frequency", *patch.TargetFrequency)
	}
	if patch.CurrentFrequency != nil {
		add("current_frequency", *patch.CurrentFrequency)
	}
	if patch.CheckInTime != nil {
		add("check_in_time", *patch.CheckInTime)
	}
	if patch.FollowUpDelayMinutes != nil {
		add("follow_up_delay_minutes", *patch.FollowUpDelayMinutes)
	}
	if patch.ProgressionStartDate != nil {
		add("progression_start_date", *patch.ProgressionStartDate)
	}

	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, habitID, ownerID)
	query := fmt.Sprintf(
		"UPDATE habits SET %s WHERE id = $%d AND owner_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, args...)
	metrics.RecordDBQueryDuration("update", "habits", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to update habit",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return false, err
	}

	r.logger.Info("Habit updated",
		zap.Int64("habit_id", habitID),
		zap.Int("fields", len(sets)),
	)
	return tag.RowsAffected() > 0, nil
}

// Deactivate soft-deletes a habit; rows are never hard-deleted.
func (r *HabitRepository) Deactivate(ctx context.Context, habitID int64, ownerID string) (bool, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE habits SET active = FALSE WHERE id = $1 AND owner_id = $2`,
		habitID, ownerID,
	)
	metrics.RecordDBQueryDuration("update", "habits", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to deactivate habit",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return false, err
	}

	r.logger.Info("Habit deactivated", zap.Int64("habit_id", habitID))
	return tag.RowsAffected() > 0, nil
}

func scanHabit(row pgx.Row) (*model.Habit, error) {
	var h model.Habit
	err := row.Scan(
		&h.ID,
		&h.OwnerID,
		&h.Name,
		&h.Description,
		&h.TargetFrequency,
		&h.CurrentFrequency,
		&h.CheckInTime,
		&h.FollowUpDelayMinutes,
		&h.CreatedAt,
		&h.ProgressionStartDate,
		&h.Active,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
