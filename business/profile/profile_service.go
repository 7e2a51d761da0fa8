package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
)

// ActivityReader is the read side of the activity store.
type ActivityReader interface {
	FindByUserBetween(ctx context.Context, userID uint, since, until time.Time) ([]domain.ActivityEvent, error)
}

// ProfileRepository contract interface
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.BehaviorProfile) error
	FindByUserID(ctx context.Context, userID uint) (domain.BehaviorProfile, error)
	Delete(ctx context.Context, userID uint) error
}

// ProfileCache is a read-through cache in front of the repository. Get returns
// nil, nil on a miss.
type ProfileCache interface {
	Get(ctx context.Context, userID uint) (*domain.BehaviorProfile, error)
	Set(ctx context.Context, profile *domain.BehaviorProfile, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uint) error
}

type profileService struct {
	activityRepo ActivityReader
	profileRepo  ProfileRepository
	cache        ProfileCache
	windowDays   int
	cacheTTL     time.Duration
	now          func() time.Time
}

// NewProfileService builds the profile manager. cache may be nil.
func NewProfileService(activityRepo ActivityReader, profileRepo ProfileRepository, cache ProfileCache, windowDays int, cacheTTL time.Duration) *profileService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &profileService{
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
		cache:        cache,
		windowDays:   windowDays,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

// UpsertProfile rebuilds the user's profile from the activity window and
// replaces the stored one.
func (s *profileService) UpsertProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -s.windowDays)

	events, err := s.activityRepo.FindByUserBetween(ctx, userID, since, now)
	if err != nil {
		logger.Error("failed to load activity window", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load activity window: %w", err)
	}

	profile := Aggregate(events)
	profile.UserID = userID
	profile.LastActivityAt = now

	if err := s.profileRepo.Upsert(ctx, &profile); err != nil {
		logger.Error("failed to upsert behavior profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to upsert behavior profile: %w", err)
	}

	s.writeCache(ctx, &profile)

	logger.Debug("behavior profile refreshed",
		"user_id", userID,
		"events", len(events),
		"lifecycle", profile.CustomerLifecycleStage,
		"trace_id", logger.TraceIDFromContext(ctx),
	)

	return &profile, nil
}

// GetProfile returns the stored profile. found is false for users that have
// never been aggregated; that is not an error.
func (s *profileService) GetProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	if userID == 0 {
		return nil, false, nil
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		} else if cached != nil {
			return cached, true, nil
		}
	}

	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		logger.Error("failed to find behavior profile", "user_id", userID, "error", err)
		return nil, false, fmt.Errorf("failed to find behavior profile: %w", err)
	}

	s.writeCache(ctx, &profile)

	return &profile, true, nil
}

// ResetProfile drops the stored profile and its cached copy. The next tracked
// activity rebuilds it from the window.
func (s *profileService) ResetProfile(ctx context.Context, userID uint) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if userID == 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	if err := s.profileRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		logger.Error("failed to delete behavior profile", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete behavior profile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			logger.Error("failed to invalidate cached profile", "user_id", userID, "error", err)
			return fmt.Errorf("failed to invalidate cached profile: %w", err)
		}
	}

	logger.Info("behavior profile reset", "user_id", userID, "trace_id", logger.TraceIDFromContext(ctx))
	return nil
}

func (s *profileService) writeCache(ctx context.Context, profile *domain.BehaviorProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, profile, s.cacheTTL); err != nil {
		logger.Warn("profile cache write failed", "user_id", profile.UserID, "error", err)
	}
}
