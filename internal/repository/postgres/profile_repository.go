package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"myMarketplace/business/profile"
	"myMarketplace/domain"
)

type ProfileRepository struct {
	DB *gorm.DB
}

var _ profile.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// Upsert replaces every column of the user's profile.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.BehaviorProfile) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert behavior profile: %w", err)
	}

	return nil
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID uint) (domain.BehaviorProfile, error) {
	if err := ctx.Err(); err != nil {
		return domain.BehaviorProfile{}, fmt.Errorf("context error: %w", err)
	}

	var p domain.BehaviorProfile
	err := r.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BehaviorProfile{}, domain.ErrNotFound
		}
		return domain.BehaviorProfile{}, fmt.Errorf("failed to find behavior profile: %w", err)
	}

	return p, nil
}

func (r *ProfileRepository) Delete(ctx context.Context, userID uint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.BehaviorProfile{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete behavior profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
