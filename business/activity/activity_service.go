package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
)

// ActivityRepository is the append side of the activity store.
type ActivityRepository interface {
	Append(ctx context.Context, event *domain.ActivityEvent) error
}

// RefreshEnqueuer schedules a background profile rebuild.
type RefreshEnqueuer interface {
	Enqueue(userID uint) error
}

// InteractionRecorder updates feedback counters of a logged batch.
type InteractionRecorder interface {
	Increment(ctx context.Context, logID string, interaction domain.InteractionType, amount int64, revenue float64) (domain.FeedbackCounters, error)
}

// maxClockSkew tolerates client clocks running slightly ahead.
const maxClockSkew = 5 * time.Minute

type TrackInput struct {
	UserID       *uint
	SessionID    string `validate:"required,max=128"`
	ActivityType string `validate:"required"`
	Data         domain.ActivityData
	Context      domain.ActivityContext
}

type activityService struct {
	activityRepo ActivityRepository
	refresh      RefreshEnqueuer
	feedback     InteractionRecorder
	validate     *validator.Validate
	windowDays   int
	now          func() time.Time
}

// NewActivityService wires the tracker. feedback may be nil, in which case
// recommendation linkage is not recorded. Client timestamps older than
// windowDays are rejected.
func NewActivityService(activityRepo ActivityRepository, refresh RefreshEnqueuer, feedback InteractionRecorder, windowDays int) *activityService {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &activityService{
		activityRepo: activityRepo,
		refresh:      refresh,
		feedback:     feedback,
		validate:     validator.New(),
		windowDays:   windowDays,
		now:          time.Now,
	}
}

// TrackActivity validates and records one interaction. Only validation and
// context errors reach the caller; store, queue and linkage failures are logged
// and the activity is still acknowledged.
func (s *activityService) TrackActivity(ctx context.Context, in TrackInput) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	now := s.now()
	activityType, err := s.validateInput(in, now)
	if err != nil {
		metrics.ActivityEventsTotal.WithLabelValues("invalid", "rejected").Inc()
		return err
	}

	event := domain.NewActivityEvent(in.UserID, in.SessionID, activityType, in.Data, in.Context, now)
	traceID := logger.TraceIDFromContext(ctx)

	if err := s.activityRepo.Append(ctx, &event); err != nil {
		metrics.ActivityEventsTotal.WithLabelValues(string(activityType), "store_error").Inc()
		logger.Error("failed to append activity event",
			"activity_type", activityType,
			"session_id", in.SessionID,
			"trace_id", traceID,
			"error", err,
		)
		return nil
	}
	metrics.ActivityEventsTotal.WithLabelValues(string(activityType), "accepted").Inc()

	if in.UserID != nil && *in.UserID != 0 {
		if err := s.refresh.Enqueue(*in.UserID); err != nil {
			logger.Warn("profile refresh not scheduled",
				"user_id", *in.UserID,
				"trace_id", traceID,
				"error", err,
			)
		}
	}

	s.recordLinkage(ctx, activityType, in.Data)

	return nil
}

func (s *activityService) validateInput(in TrackInput, now time.Time) (domain.ActivityType, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}

	activityType, err := domain.ParseActivityType(in.ActivityType)
	if err != nil {
		return "", err
	}

	if err := in.Data.CheckRequired(activityType); err != nil {
		return "", err
	}

	if at := in.Data.OccurredAt; at != nil && !at.IsZero() {
		if at.After(now.Add(maxClockSkew)) {
			return "", fmt.Errorf("%w: occurred_at is in the future", domain.ErrValidation)
		}
		if at.Before(now.AddDate(0, 0, -s.windowDays)) {
			return "", fmt.Errorf("%w: occurred_at is older than %d days", domain.ErrValidation, s.windowDays)
		}
	}

	return activityType, nil
}

// linkedInteraction maps an activity carrying a recommendation log id onto a
// feedback counter.
func linkedInteraction(t domain.ActivityType, data domain.ActivityData) (domain.InteractionType, float64, bool) {
	switch t {
	case domain.ActivityRecommendationView, domain.ActivityBundleView:
		return domain.InteractionView, 0, true
	case domain.ActivityRecommendationClick, domain.ActivityBundleClick:
		return domain.InteractionClick, 0, true
	case domain.ActivityPurchase:
		var revenue float64
		if data.OrderValue != nil {
			revenue = *data.OrderValue
		}
		return domain.InteractionConversion, revenue, true
	}
	return "", 0, false
}

func (s *activityService) recordLinkage(ctx context.Context, t domain.ActivityType, data domain.ActivityData) {
	if s.feedback == nil || data.RecommendationLogID == nil || *data.RecommendationLogID == "" {
		return
	}

	interaction, revenue, ok := linkedInteraction(t, data)
	if !ok {
		return
	}

	_, err := s.feedback.Increment(ctx, *data.RecommendationLogID, interaction, 1, revenue)
	if err != nil {
		level := logger.Warn
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrCounterInvariant) {
			level = logger.Error
		}
		level("recommendation linkage not recorded",
			"log_id", *data.RecommendationLogID,
			"interaction_type", interaction,
			"trace_id", logger.TraceIDFromContext(ctx),
			"error", err,
		)
	}
}
