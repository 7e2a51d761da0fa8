package recommendation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
)

const (
	baseScore       = 0.5
	categoryBonus   = 0.3
	brandBonus      = 0.2
	priceBonus      = 0.1
	popularityDays  = 30
	candidateFactor = 5
)

type ProfileReader interface {
	GetProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, bool, error)
}

type CatalogReader interface {
	// FindByPreferences returns matches ranked by match strength, category
	// matches first, with the price band applied before the limit.
	FindByPreferences(ctx context.Context, q domain.PreferenceQuery) ([]domain.Product, error)
}

type PopularityReader interface {
	PopularProducts(ctx context.Context, since time.Time, types []domain.ActivityType, limit int) ([]domain.ProductPopularity, error)
}

type BatchLogger interface {
	LogBatch(ctx context.Context, entry domain.LogEntry) (string, error)
}

type Config struct {
	DefaultLimit int
	MaxLimit     int
	BatchTTL     time.Duration
	Timeout      time.Duration
}

type recommendationService struct {
	profiles   ProfileReader
	catalog    CatalogReader
	popularity PopularityReader
	feedback   BatchLogger
	cfg        Config
	now        func() time.Time
}

func NewRecommendationService(profiles ProfileReader, catalog CatalogReader, popularity PopularityReader, feedback BatchLogger, cfg Config) *recommendationService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	return &recommendationService{
		profiles:   profiles,
		catalog:    catalog,
		popularity: popularity,
		feedback:   feedback,
		cfg:        cfg,
		now:        time.Now,
	}
}

// GetRecommendations never fails on upstream errors: it applies the request
// timeout and degrades to an empty, unlogged batch. Only validation errors are
// returned.
func (s *recommendationService) GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecommendationBatch{}, fmt.Errorf("context error: %w", err)
	}

	req, err := s.normalize(req)
	if err != nil {
		return domain.RecommendationBatch{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.RecommendationLatency.WithLabelValues("recommendation").Observe(time.Since(start).Seconds())
	}()

	batch, err := s.Generate(ctx, req)
	if err != nil {
		logger.Error("recommendation generation failed, serving empty list",
			"session_id", req.SessionID,
			"trace_id", logger.TraceIDFromContext(ctx),
			"error", err,
		)
		metrics.RecommendationsServed.WithLabelValues("empty").Inc()
		return domain.RecommendationBatch{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			Strategy:  domain.StrategyCollaborative,
			Type:      req.Type,
			Items:     []domain.ScoredItem{},
			CreatedAt: s.now().UTC(),
		}, nil
	}

	metrics.RecommendationsServed.WithLabelValues(string(batch.Strategy)).Inc()
	return batch, nil
}

// Generate picks one strategy, ranks items and logs the batch before returning.
func (s *recommendationService) Generate(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecommendationBatch{}, fmt.Errorf("context error: %w", err)
	}

	req, err := s.normalize(req)
	if err != nil {
		return domain.RecommendationBatch{}, err
	}

	now := s.now().UTC()
	strategy := domain.StrategyCollaborative
	var items []domain.ScoredItem

	if req.Type == domain.RecommendationPersonalized && req.UserID != nil {
		if profile := s.loadProfile(ctx, *req.UserID); profile != nil {
			items, err = s.profileBased(ctx, profile, req.Limit)
			if err != nil {
				logger.Warn("profile-based recommendations failed, falling back",
					"user_id", *req.UserID,
					"trace_id", logger.TraceIDFromContext(ctx),
					"error", err,
				)
			}
			if len(items) > 0 {
				strategy = domain.StrategyProfile
			}
		}
	}

	if strategy == domain.StrategyCollaborative {
		items, err = s.collaborative(ctx, now, req.Limit)
		if err != nil {
			return domain.RecommendationBatch{}, err
		}
	}

	batch := domain.RecommendationBatch{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Strategy:  strategy,
		Type:      req.Type,
		Items:     items,
		MeanScore: meanScore(items),
		CreatedAt: now,
	}
	if s.cfg.BatchTTL > 0 {
		expires := now.Add(s.cfg.BatchTTL)
		batch.ExpiresAt = &expires
	}

	logID, err := s.feedback.LogBatch(ctx, domain.LogEntry{
		Kind:               domain.FeedbackRecommendation,
		UserID:             req.UserID,
		SessionID:          req.SessionID,
		Strategy:           string(strategy),
		RecommendationType: string(req.Type),
		Items:              items,
		ItemCount:          len(items),
		MeanScore:          batch.MeanScore,
		ExpiresAt:          batch.ExpiresAt,
	})
	if err != nil {
		return domain.RecommendationBatch{}, fmt.Errorf("failed to log recommendation batch: %w", err)
	}
	batch.LogID = logID

	return batch, nil
}

func (s *recommendationService) normalize(req domain.RecommendationRequest) (domain.RecommendationRequest, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return req, fmt.Errorf("%w: session id is required", domain.ErrValidation)
	}
	if req.Type == "" {
		req.Type = domain.RecommendationPersonalized
	}
	if !req.Type.Valid() {
		return req, fmt.Errorf("%w: unknown recommendation type %q", domain.ErrValidation, req.Type)
	}
	if req.Limit < 0 {
		return req, fmt.Errorf("%w: limit cannot be negative", domain.ErrValidation)
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit > s.cfg.MaxLimit {
		req.Limit = s.cfg.MaxLimit
	}
	return req, nil
}

func (s *recommendationService) loadProfile(ctx context.Context, userID uint) *domain.BehaviorProfile {
	profile, found, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		logger.Warn("profile lookup failed", "user_id", userID, "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return profile
}

func (s *recommendationService) profileBased(ctx context.Context, profile *domain.BehaviorProfile, limit int) ([]domain.ScoredItem, error) {
	if len(profile.PreferredCategories) == 0 && len(profile.PreferredBrands) == 0 {
		return nil, nil
	}

	q := domain.PreferenceQuery{
		Categories: profile.PreferredCategories,
		Brands:     profile.PreferredBrands,
		Limit:      limit * candidateFactor,
	}
	if band, ok := profile.PriceBand(); ok {
		q.Price = &band
	}

	products, err := s.catalog.FindByPreferences(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate products: %w", err)
	}

	items := make([]domain.ScoredItem, 0, len(products))
	for _, p := range products {
		fits, applies := profile.PriceFits(p.Price())
		if applies && !fits {
			continue
		}
		items = append(items, scoreProduct(profile, p, applies && fits))
	}

	sortItems(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func scoreProduct(profile *domain.BehaviorProfile, p domain.Product, priceFits bool) domain.ScoredItem {
	score := baseScore
	var reasons []string

	if profile.PrefersCategory(p.ProductCategory) {
		score += categoryBonus
		reasons = append(reasons, "matches your interest in "+p.ProductCategory)
	}
	if profile.PrefersBrand(p.Brand) {
		score += brandBonus
		reasons = append(reasons, "from "+p.Brand+", a brand you like")
	}
	if priceFits {
		score += priceBonus
		reasons = append(reasons, "fits your usual price range")
	}

	reason := "based on your browsing"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return domain.ScoredItem{ProductID: p.ID, Score: score, Reason: reason}
}

func (s *recommendationService) collaborative(ctx context.Context, now time.Time, limit int) ([]domain.ScoredItem, error) {
	since := now.AddDate(0, 0, -popularityDays)

	popular, err := s.popularity.PopularProducts(ctx, since, domain.PopularityActivityTypes, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular products: %w", err)
	}

	items := make([]domain.ScoredItem, 0, len(popular))
	for _, p := range popular {
		items = append(items, domain.ScoredItem{
			ProductID: p.ProductID,
			Score:     domain.CollaborativeScore,
			Reason:    "popular with shoppers over the last 30 days",
		})
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func sortItems(items []domain.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ProductID < items[j].ProductID
	})
}

func meanScore(items []domain.ScoredItem) float64 {
	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.Score
	}
	return domain.MeanScore(scores)
}
