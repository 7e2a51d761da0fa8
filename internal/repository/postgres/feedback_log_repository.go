package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"myMarketplace/business/feedback"
	"myMarketplace/domain"
)

type FeedbackLogRepository struct {
	DB *gorm.DB
}

var _ feedback.FeedbackRepository = (*FeedbackLogRepository)(nil)

func NewFeedbackLogRepository(db *gorm.DB) *FeedbackLogRepository {
	return &FeedbackLogRepository{DB: db}
}

func (r *FeedbackLogRepository) Create(ctx context.Context, log *domain.FeedbackLog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create feedback log: %w", err)
	}

	return nil
}

func (r *FeedbackLogRepository) FindByID(ctx context.Context, id string) (domain.FeedbackLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedbackLog{}, fmt.Errorf("context error: %w", err)
	}

	var log domain.FeedbackLog
	err := r.DB.WithContext(ctx).First(&log, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FeedbackLog{}, domain.ErrNotFound
		}
		return domain.FeedbackLog{}, fmt.Errorf("failed to find feedback log: %w", err)
	}

	return log, nil
}

// UpdateCounters locks the row for the duration of apply so concurrent
// increments cannot interleave between the invariant check and the write.
func (r *FeedbackLogRepository) UpdateCounters(ctx context.Context, id string, apply func(*domain.FeedbackLog) error) (domain.FeedbackLog, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedbackLog{}, fmt.Errorf("context error: %w", err)
	}

	var log domain.FeedbackLog
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&log, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock feedback log: %w", err)
		}

		if err := apply(&log); err != nil {
			return err
		}

		return tx.Model(&domain.FeedbackLog{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"impressions":       log.Impressions,
				"clicks":            log.Clicks,
				"conversions":       log.Conversions,
				"revenue_generated": log.RevenueGenerated,
			}).Error
	})
	if err != nil {
		return log, err
	}

	return log, nil
}

// TotalsByUser sums counters over every batch served to the user, per kind.
func (r *FeedbackLogRepository) TotalsByUser(ctx context.Context, userID uint) ([]domain.FeedbackTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var totals []domain.FeedbackTotals
	err := r.DB.WithContext(ctx).
		Model(&domain.FeedbackLog{}).
		Select(`kind,
			COUNT(*) AS batches,
			COALESCE(SUM(impressions), 0) AS impressions,
			COALESCE(SUM(clicks), 0) AS clicks,
			COALESCE(SUM(conversions), 0) AS conversions,
			COALESCE(SUM(revenue_generated), 0) AS revenue_generated`).
		Where("user_id = ?", userID).
		Group("kind").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to total feedback logs: %w", err)
	}

	return totals, nil
}
