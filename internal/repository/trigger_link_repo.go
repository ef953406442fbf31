package repository

import (
	"context"
	"time"

	"habitloop/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TriggerLinkRepository maintains the habit -> scheduled-trigger mapping.
// This table is the authoritative link; the habit id embedded in trigger
// payload text is kept only for compatibility with pre-existing triggers.
type TriggerLinkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTriggerLinkRepository(db *pgxpool.Pool, logger *zap.Logger) *TriggerLinkRepository {
	return &TriggerLinkRepository{
		db:     db,
		logger: logger,
	}
}

func (r *TriggerLinkRepository) Upsert(ctx context.Context, habitID int64, triggerID, triggerType string) error {
	start := time.Now()
	query := `
        INSERT INTO habit_triggers (habit_id, trigger_id, trigger_type)
        VALUES ($1, $2, $3)
        ON CONFLICT (habit_id, trigger_type) DO UPDATE SET
            trigger_id = EXCLUDED.trigger_id,
            created_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, habitID, triggerID, triggerType)
	metrics.RecordDBQueryDuration("upsert", "habit_triggers", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to upsert trigger link",
			zap.Int64("habit_id", habitID),
			zap.String("trigger_type", triggerType),
			zap.Error(err),
		)
		return err
	}

	r.logger.Debug("Trigger link stored",
		zap.Int64("habit_id", habitID),
		zap.String("trigger_id", triggerID),
		zap.String("trigger_type", triggerType),
	)
	return nil
}

// LinkedHabitIDs returns the habit ids that have a stored trigger of the
// given type.
func (r *TriggerLinkRepository) LinkedHabitIDs(ctx context.Context, triggerType string) (map[int64]bool, error) {
	start := time.Now()
	rows, err := r.db.Query(ctx,
		`SELECT habit_id FROM habit_triggers WHERE trigger_type = $1`,
		triggerType,
	)
	if err != nil {
		r.logger.Error("Failed to list trigger links", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	linked := make(map[int64]bool)
	for rows.Next() {
		var habitID int64
		if err := rows.Scan(&habitID); err != nil {
			return nil, err
		}
		linked[habitID] = true
	}
	metrics.RecordDBQueryDuration("select", "habit_triggers", time.Since(start))

	return linked, rows.Err()
}
