package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"myMarketplace/business/activity"
	"myMarketplace/business/analytics"
	"myMarketplace/business/profile"
	"myMarketplace/business/recommendation"
	"myMarketplace/domain"
)

// ActivityRepository is the append-only activity store.
type ActivityRepository struct {
	DB *gorm.DB
}

var (
	_ activity.ActivityRepository     = (*ActivityRepository)(nil)
	_ profile.ActivityReader          = (*ActivityRepository)(nil)
	_ recommendation.PopularityReader = (*ActivityRepository)(nil)
	_ analytics.ActivityCounter       = (*ActivityRepository)(nil)
)

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) Append(ctx context.Context, event *domain.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}

	return nil
}

// FindByUserBetween returns the user's events in [since, until], oldest first.
func (r *ActivityRepository) FindByUserBetween(ctx context.Context, userID uint, since, until time.Time) ([]domain.ActivityEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var events []domain.ActivityEvent
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at <= ?", userID, since, until).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}

	return events, nil
}

func (r *ActivityRepository) CountByUserBetween(ctx context.Context, userID uint, since, until time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var count int64
	err := r.DB.WithContext(ctx).
		Model(&domain.ActivityEvent{}).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at <= ?", userID, since, until).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count activity events: %w", err)
	}

	return count, nil
}

// PopularProducts ranks active products by how many qualifying events they
// received since the given time.
func (r *ActivityRepository) PopularProducts(ctx context.Context, since time.Time, types []domain.ActivityType, limit int) ([]domain.ProductPopularity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.ProductPopularity
	err := r.DB.WithContext(ctx).
		Model(&domain.ActivityEvent{}).
		Select("activity_events.product_id AS product_id, COUNT(*) AS interactions").
		Joins("JOIN products ON products.id = activity_events.product_id AND products.is_active = ?", true).
		Where("activity_events.occurred_at >= ? AND activity_events.activity_type IN ?", since, types).
		Group("activity_events.product_id").
		Order("interactions DESC, activity_events.product_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank popular products: %w", err)
	}

	return rows, nil
}
