package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
)

// FeedbackRepository contract interface. UpdateCounters runs apply against the
// locked row and persists the counters only when apply returns nil.
type FeedbackRepository interface {
	Create(ctx context.Context, log *domain.FeedbackLog) error
	FindByID(ctx context.Context, id string) (domain.FeedbackLog, error)
	UpdateCounters(ctx context.Context, id string, apply func(*domain.FeedbackLog) error) (domain.FeedbackLog, error)
	TotalsByUser(ctx context.Context, userID uint) ([]domain.FeedbackTotals, error)
}

type feedbackService struct {
	feedbackRepo FeedbackRepository
	now          func() time.Time
}

func NewFeedbackService(feedbackRepo FeedbackRepository) *feedbackService {
	return &feedbackService{
		feedbackRepo: feedbackRepo,
		now:          time.Now,
	}
}

// LogBatch persists an emitted recommendation or bundle batch and returns its
// log id.
func (s *feedbackService) LogBatch(ctx context.Context, entry domain.LogEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error: %w", err)
	}

	if entry.Kind != domain.FeedbackRecommendation && entry.Kind != domain.FeedbackBundle {
		return "", fmt.Errorf("%w: unknown feedback kind %q", domain.ErrValidation, entry.Kind)
	}

	items, err := json.Marshal(entry.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal logged items: %w", err)
	}

	row := domain.FeedbackLog{
		ID:                 uuid.NewString(),
		Kind:               entry.Kind,
		UserID:             entry.UserID,
		SessionID:          entry.SessionID,
		Strategy:           entry.Strategy,
		RecommendationType: entry.RecommendationType,
		Items:              items,
		ItemCount:          entry.ItemCount,
		MeanScore:          entry.MeanScore,
		CreatedAt:          s.now().UTC(),
		ExpiresAt:          entry.ExpiresAt,
	}

	if err := s.feedbackRepo.Create(ctx, &row); err != nil {
		logger.Error("failed to log batch", "kind", entry.Kind, "session_id", entry.SessionID, "error", err)
		return "", fmt.Errorf("failed to log batch: %w", err)
	}

	return row.ID, nil
}

// Increment records an interaction against a logged batch. An unknown log id
// is domain.ErrNotFound.
func (s *feedbackService) Increment(ctx context.Context, logID string, interaction domain.InteractionType, amount int64, revenue float64) (domain.FeedbackCounters, error) {
	return s.IncrementAs(ctx, nil, logID, interaction, amount, revenue)
}

// IncrementAs is Increment on behalf of caller. A batch served to another user
// is domain.ErrForbidden; a nil caller or an anonymous batch skips the check.
func (s *feedbackService) IncrementAs(ctx context.Context, caller *uint, logID string, interaction domain.InteractionType, amount int64, revenue float64) (domain.FeedbackCounters, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedbackCounters{}, fmt.Errorf("context error: %w", err)
	}

	if _, err := uuid.Parse(logID); err != nil {
		return domain.FeedbackCounters{}, fmt.Errorf("%w: malformed log id", domain.ErrValidation)
	}

	row, err := s.feedbackRepo.UpdateCounters(ctx, logID, func(l *domain.FeedbackLog) error {
		if err := checkOwner(*l, caller); err != nil {
			return err
		}
		return l.ApplyInteraction(interaction, amount, revenue)
	})
	kind := string(row.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if err != nil {
		metrics.FeedbackInteractionsTotal.WithLabelValues(kind, string(interaction), outcome(err)).Inc()
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) ||
			errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrCounterInvariant) {
			return domain.FeedbackCounters{}, err
		}
		logger.Error("failed to update feedback counters", "log_id", logID, "error", err)
		return domain.FeedbackCounters{}, fmt.Errorf("failed to update feedback counters: %w", err)
	}

	metrics.FeedbackInteractionsTotal.WithLabelValues(kind, string(interaction), "success").Inc()
	return row.Counters(), nil
}

// GetCounters reads the counters of a logged batch, with the same ownership
// rule as IncrementAs.
func (s *feedbackService) GetCounters(ctx context.Context, caller *uint, logID string) (domain.FeedbackCounters, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedbackCounters{}, fmt.Errorf("context error: %w", err)
	}

	if _, err := uuid.Parse(logID); err != nil {
		return domain.FeedbackCounters{}, fmt.Errorf("%w: malformed log id", domain.ErrValidation)
	}

	row, err := s.feedbackRepo.FindByID(ctx, logID)
	if err != nil {
		return domain.FeedbackCounters{}, err
	}
	if err := checkOwner(row, caller); err != nil {
		return domain.FeedbackCounters{}, err
	}
	return row.Counters(), nil
}

func checkOwner(l domain.FeedbackLog, caller *uint) error {
	if caller == nil || l.UserID == nil || *l.UserID == *caller {
		return nil
	}
	return fmt.Errorf("%w: batch %s belongs to another user", domain.ErrForbidden, l.ID)
}

// TotalsByUser sums every batch logged for the user, per kind.
func (s *feedbackService) TotalsByUser(ctx context.Context, userID uint) (map[domain.FeedbackKind]domain.FeedbackTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	rows, err := s.feedbackRepo.TotalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback totals: %w", err)
	}

	out := map[domain.FeedbackKind]domain.FeedbackTotals{
		domain.FeedbackRecommendation: {Kind: domain.FeedbackRecommendation},
		domain.FeedbackBundle:         {Kind: domain.FeedbackBundle},
	}
	for _, r := range rows {
		out[r.Kind] = r
	}
	return out, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrCounterInvariant):
		return "invariant"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	}
	return "error"
}
