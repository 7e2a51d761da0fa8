package analytics

import (
	"context"
	"fmt"
	"time"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
)

type ProfileReader interface {
	GetProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, bool, error)
}

type ActivityCounter interface {
	CountByUserBetween(ctx context.Context, userID uint, since, until time.Time) (int64, error)
}

type FeedbackTotalsReader interface {
	TotalsByUser(ctx context.Context, userID uint) (map[domain.FeedbackKind]domain.FeedbackTotals, error)
}

type analyticsService struct {
	profiles   ProfileReader
	activities ActivityCounter
	feedback   FeedbackTotalsReader
	windowDays int
	now        func() time.Time
}

func NewAnalyticsService(profiles ProfileReader, activities ActivityCounter, feedback FeedbackTotalsReader, windowDays int) *analyticsService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &analyticsService{
		profiles:   profiles,
		activities: activities,
		feedback:   feedback,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// GetUserAnalytics summarizes a user's profile, recent activity volume and the
// performance of every batch served to them.
func (s *analyticsService) GetUserAnalytics(ctx context.Context, userID uint) (*domain.UserAnalytics, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	profile, found, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		logger.Error("failed to load profile for analytics", "user_id", userID, "error", err)
		return nil, err
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -s.windowDays)
	count, err := s.activities.CountByUserBetween(ctx, userID, since, now)
	if err != nil {
		logger.Error("failed to count activity for analytics", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	totals, err := s.feedback.TotalsByUser(ctx, userID)
	if err != nil {
		logger.Error("failed to load feedback totals for analytics", "user_id", userID, "error", err)
		return nil, err
	}

	return &domain.UserAnalytics{
		UserID:          userID,
		HasProfile:      found,
		Profile:         profile,
		ActivityCount:   count,
		WindowDays:      s.windowDays,
		Recommendations: domain.NewFeedbackSummary(totals[domain.FeedbackRecommendation]),
		Bundles:         domain.NewFeedbackSummary(totals[domain.FeedbackBundle]),
	}, nil
}
