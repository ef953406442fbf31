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

type ScoreRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewScoreRepository(db *pgxpool.Pool, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the owner's score row, creating the default 50/50
// row on first read.
func (r *ScoreRepository) GetOrCreate(ctx context.Context, ownerID string) (*model.ConsistencyScore, error) {
	start := time.Now()
	query := `
        SELECT id, owner_id, current_score, peak_score, updated_at, score_history
        FROM consistency_score WHERE owner_id = $1
    `
	s, err := scanScore(r.db.QueryRow(ctx, query, ownerID))
	metrics.RecordDBQueryDuration("select", "consistency_score", time.Since(start))

	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to get consistency score", zap.Error(err))
		return nil, err
	}

	r.logger.Info("Creating consistency score row", zap.String("owner_id", ownerID))

	start = time.Now()
	insert := `
        INSERT INTO consistency_score (owner_id)
        VALUES ($1)
        ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
        RETURNING id, owner_id, current_score, peak_score, updated_at, score_history
    `
	s, err = scanScore(r.db.QueryRow(ctx, insert, ownerID))
	metrics.RecordDBQueryDuration("insert", "consistency_score", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to create consistency score", zap.Error(err))
		return nil, err
	}
	return s, nil
}

func (r *ScoreRepository) Update(ctx context.Context, s *model.ConsistencyScore) error {
	start := time.Now()
	query := `
        UPDATE consistency_score
        SET current_score = $1, peak_score = $2, updated_at = NOW(), score_history = $3
        WHERE owner_id = $4
        RETURNING updated_at
    `
	err := r.db.QueryRow(ctx, query,
		s.CurrentScore,
		s.PeakScore,
		s.ScoreHistory,
		s.OwnerID,
	).Scan(&s.UpdatedAt)
	metrics.RecordDBQueryDuration("update", "consistency_score", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to update consistency score",
			zap.String("owner_id", s.OwnerID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Consistency score updated",
		zap.String("owner_id", s.OwnerID),
		zap.Float64("score", s.CurrentScore),
		zap.Float64("peak", s.PeakScore),
	)
	return nil
}

func scanScore(row pgx.Row) (*model.ConsistencyScore, error) {
	var s model.ConsistencyScore
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.CurrentScore,
		&s.PeakScore,
		&s.UpdatedAt,
		&s.ScoreHistory,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
