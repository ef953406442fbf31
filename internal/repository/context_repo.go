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

type ContextRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewContextRepository(db *pgxpool.Pool, logger *zap.Logger) *ContextRepository {
	return &ContextRepository{
		db:     db,
		logger: logger,
	}
}

const contextColumns = `id, owner_id, context_type, description, start_date,
		expected_end_date, check_in_frequency_days, last_checked_at, resolved,
		resolved_date, related_habits, created_at`

func (r *ContextRepository) Insert(ctx context.Context, c *model.ContextMemory) (int64, error) {
	r.logger.Debug("Inserting context",
		zap.String("owner_id", c.OwnerID),
		zap.String("context_type", c.ContextType),
	)

	start := time.Now()
	query := `
        INSERT INTO context_memory (owner_id, context_type, description, start_date,
            expected_end_date, check_in_frequency_days, last_checked_at, related_habits)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		c.OwnerID,
		c.ContextType,
		c.Description,
		c.StartDate,
		c.ExpectedEndDate,
		c.CheckInFrequencyDays,
		c.LastCheckedAt,
		c.RelatedHabits,
	).Scan(&c.ID, &c.CreatedAt)
	metrics.RecordDBQueryDuration("insert", "context_memory", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to insert context", zap.Error(err))
		return 0, err
	}

	r.logger.Info("Context inserted successfully",
		zap.Int64("id", c.ID),
		zap.String("context_type", c.ContextType),
	)
	return c.ID, nil
}

func (r *ContextRepository) GetByID(ctx context.Context, contextID int64, ownerID string) (*model.ContextMemory, error) {
	query := `SELECT ` + contextColumns + ` FROM context_memory WHERE id = $1 AND owner_id = $2`

	start := time.Now()
	row := r.db.QueryRow(ctx, query, contextID, ownerID)
	c, err := scanContext(row)
	metrics.RecordDBQueryDuration("select", "context_memory", time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get context", zap.Int64("context_id", contextID), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// ListUnresolved returns unresolved contexts, newest first.
func (r *ContextRepository) ListUnresolved(ctx context.Context, ownerID string) ([]model.ContextMemory, error) {
	query := `
        SELECT ` + contextColumns + `
        FROM context_memory
        WHERE owner_id = $1 AND resolved = FALSE
        ORDER BY created_at DESC
    `

	start := time.Now()
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		r.logger.Error("Failed to list unresolved contexts", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var contexts []model.ContextMemory
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			r.logger.Error("Failed to scan context", zap.Error(err))
			return nil, err
		}
		contexts = append(contexts, *c)
	}
	metrics.RecordDBQueryDuration("select", "context_memory", time.Since(start))

	return contexts, rows.Err()
}

func (r *ContextRepository) UpdateLastChecked(ctx context.Context, contextID int64, ownerID string, at time.Time) (bool, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE context_memory SET last_checked_at = $1 WHERE id = $2 AND owner_id = $3`,
		at, contextID, ownerID,
	)
	metrics.RecordDBQueryDuration("update", "context_memory", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to update context check timestamp",
			zap.Int64("context_id", contextID),
			zap.Error(err),
		)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ContextRepository) Resolve(ctx context.Context, contextID int64, ownerID string, resolvedDate time.Time) (bool, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE context_memory SET resolved = TRUE, resolved_date = $1 WHERE id = $2 AND owner_id = $3`,
		resolvedDate, contextID, ownerID,
	)
	metrics.RecordDBQueryDuration("update", "context_memory", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to resolve context",
			zap.Int64("context_id", contextID),
			zap.Error(err),
		)
		return false, err
	}

	r.logger.Info("Context resolved", zap.Int64("context_id", contextID))
	return tag.RowsAffected() > 0, nil
}

// ListForHabit returns every context (resolved included) whose
// related_habits contains the habit. Progression filtering needs the
// resolved ones too: their exemption window still covers past days.
func (r *ContextRepository) ListForHabit(ctx context.Context, habitID int64, ownerID string) ([]model.ContextMemory, error) {
	query := `
        SELECT ` + contextColumns + `
        FROM context_memory
        WHERE owner_id = $1 AND related_habits @> ARRAY[$2]::BIGINT[]
        ORDER BY created_at DESC
    `

	start := time.Now()
	rows, err := r.db.Query(ctx, query, ownerID, habitID)
	if err != nil {
		r.logger.Error("Failed to list contexts for habit",
			zap.Int64("habit_id", habitID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	var contexts []model.ContextMemory
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			r.logger.Error("Failed to scan context", zap.Error(err))
			return nil, err
		}
		contexts = append(contexts, *c)
	}
	metrics.RecordDBQueryDuration("select", "context_memory", time.Since(start))

	return contexts, rows.Err()
}

func scanContext(row pgx.Row) (*model.ContextMemory, error) {
	var c model.ContextMemory
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.ContextType,
		&c.Description,
		&c.StartDate,
		&c.ExpectedEndDate,
		&c.CheckInFrequencyDays,
		&c.LastCheckedAt,
		&c.Resolved,
		&c.ResolvedDate,
		&c.RelatedHabits,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
