package repository

import (
	"context"
	"time"

	"habitloop/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OnboardingRepository persists the per-owner first-time-setup flag, so
// bootstrap stays idempotent across restarts and replicas.
type OnboardingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewOnboardingRepository(db *pgxpool.Pool, logger *zap.Logger) *OnboardingRepository {
	return &OnboardingRepository{
		db:     db,
		logger: logger,
	}
}

// TryClaim inserts the owner's onboarding row; returns false when another
// caller already claimed it.
func (r *OnboardingRepository) TryClaim(ctx context.Context, ownerID string) (bool, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO user_onboarding (owner_id, habits_created) VALUES ($1, 0)
         ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
	)
	metrics.RecordDBQueryDuration("insert", "user_onboarding", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to claim onboarding", zap.String("owner_id", ownerID), zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OnboardingRepository) SetHabitsCreated(ctx context.Context, ownerID string, count int) error {
	start := time.Now()
	_, err := r.db.Exec(ctx,
		`UPDATE user_onboarding SET habits_created = $1 WHERE owner_id = $2`,
		count, ownerID,
	)
	metrics.RecordDBQueryDuration("update", "user_onboarding", time.Since(start))

	if err != nil {
		r.logger.Error("Failed to record onboarding result", zap.Error(err))
	}
	return err
}

// Release deletes the claim so a failed bootstrap can retry.
func (r *OnboardingRepository) Release(ctx context.Context, ownerID string) error {
	start := time.Now()
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_onboarding WHERE owner_id = $1`,
		ownerID,
	)
	metrics.RecordDBQueryDuration("delete", "user_onboarding", time.Since(start))
	return err
}
