package bundle

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
)

type ProfileReader interface {
	GetProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, bool, error)
}

type BatchLogger interface {
	LogBatch(ctx context.Context, entry domain.LogEntry) (string, error)
}

type Config struct {
	DefaultLimit      int
	MaxLimit          int
	BatchTTL          time.Duration
	Timeout           time.Duration
	PromoPriceFloor   float64
	UpsellPriceFloor  float64
	UpsellGlobalFloor float64
}

type bundleService struct {
	profiles   ProfileReader
	feedback   BatchLogger
	archetypes []Archetype
	cfg        Config
	now        func() time.Time
}

func NewBundleService(profiles ProfileReader, feedback BatchLogger, archetypes []Archetype, cfg Config) *bundleService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	return &bundleService{
		profiles:   profiles,
		feedback:   feedback,
		archetypes: archetypes,
		cfg:        cfg,
		now:        time.Now,
	}
}

// GetBundles applies the request timeout and degrades to an empty batch on
// any internal failure. Only validation errors are returned.
func (s *bundleService) GetBundles(ctx context.Context, req domain.BundleRequest) (domain.BundleBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.BundleBatch{}, fmt.Errorf("context error: %w", err)
	}

	req, err := s.normalize(req)
	if err != nil {
		return domain.BundleBatch{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		metrics.RecommendationLatency.WithLabelValues("bundle").Observe(time.Since(start).Seconds())
	}()

	batch, _, err := s.Generate(ctx, req)
	if err != nil {
		logger.Error("bundle generation failed, serving empty list",
			"session_id", req.SessionID,
			"trace_id", logger.TraceIDFromContext(ctx),
			"error", err,
		)
		return domain.BundleBatch{Bundles: []domain.BundleCandidate{}, CreatedAt: req.Now}, nil
	}
	return batch, nil
}

// Generate runs every archetype concurrently, merges their bundles by
// descending score and logs the batch. A failing archetype only removes its
// own contribution; its result carries the error.
func (s *bundleService) Generate(ctx context.Context, req domain.BundleRequest) (domain.BundleBatch, []domain.ArchetypeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.BundleBatch{}, nil, fmt.Errorf("context error: %w", err)
	}

	req, err := s.normalize(req)
	if err != nil {
		return domain.BundleBatch{}, nil, err
	}

	var profile *domain.BehaviorProfile
	if req.UserID != nil {
		p, found, err := s.profiles.GetProfile(ctx, *req.UserID)
		if err != nil {
			logger.Warn("profile lookup failed, generating anonymous bundles", "user_id", *req.UserID, "error", err)
		} else if found {
			profile = p
		}
	}

	in := Input{Profile: profile, CartItems: req.CartItems, Now: req.Now, Limit: req.Limit}
	results := s.runArchetypes(ctx, in)

	var merged []domain.BundleCandidate
	for _, r := range results {
		if r.Err != nil {
			metrics.BundleArchetypeResults.WithLabelValues(string(r.Archetype), "error").Inc()
			logger.Warn("bundle archetype failed",
				"archetype", r.Archetype,
				"reason", r.Reason,
				"trace_id", logger.TraceIDFromContext(ctx),
				"error", r.Err,
			)
			continue
		}
		outcome := "bundles"
		if len(r.Bundles) == 0 {
			outcome = "empty"
		}
		metrics.BundleArchetypeResults.WithLabelValues(string(r.Archetype), outcome).Inc()
		merged = append(merged, r.Bundles...)
	}

	bundles := rank(dedupe(merged), req.Limit)

	batch := domain.BundleBatch{Bundles: bundles, CreatedAt: req.Now}
	if s.cfg.BatchTTL > 0 {
		expires := req.Now.Add(s.cfg.BatchTTL)
		batch.ExpiresAt = &expires
	}

	scores := make([]float64, len(bundles))
	for i, b := range bundles {
		scores[i] = b.RecommendationScore
	}

	logID, err := s.feedback.LogBatch(ctx, domain.LogEntry{
		Kind:      domain.FeedbackBundle,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Strategy:  bundleStrategy(profile),
		Items:     bundles,
		ItemCount: len(bundles),
		MeanScore: domain.MeanScore(scores),
		ExpiresAt: batch.ExpiresAt,
	})
	if err != nil {
		return domain.BundleBatch{}, results, fmt.Errorf("failed to log bundle batch: %w", err)
	}
	batch.LogID = logID

	return batch, results, nil
}

func (s *bundleService) runArchetypes(ctx context.Context, in Input) []domain.ArchetypeResult {
	results := make([]domain.ArchetypeResult, len(s.archetypes))

	var g errgroup.Group
	for i, a := range s.archetypes {
		g.Go(func() error {
			results[i] = runArchetype(ctx, a, in)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runArchetype(ctx context.Context, a Archetype, in Input) (result domain.ArchetypeResult) {
	result.Archetype = a.Name()
	defer func() {
		if r := recover(); r != nil {
			result.Bundles = nil
			result.Err = fmt.Errorf("archetype panicked: %v", r)
			result.Reason = "generator panicked"
		}
	}()

	candidates, err := a.GenerateCandidates(ctx, in)
	if err != nil {
		result.Err = err
		result.Reason = "candidate generation failed"
		return result
	}

	for _, c := range candidates {
		if len(c.Products) < 2 {
			continue
		}
		result.Bundles = append(result.Bundles, price(a, c, in.Profile))
	}
	if len(result.Bundles) == 0 {
		result.Reason = "no qualifying candidates"
	}
	return result
}

func (s *bundleService) normalize(req domain.BundleRequest) (domain.BundleRequest, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return req, fmt.Errorf("%w: session id is required", domain.ErrValidation)
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
	if req.Now.IsZero() {
		req.Now = s.now().UTC()
	}
	return req, nil
}

// dedupe keeps the best scored bundle for each distinct member set.
func dedupe(bundles []domain.BundleCandidate) []domain.BundleCandidate {
	best := make(map[string]int, len(bundles))
	var out []domain.BundleCandidate
	for _, b := range bundles {
		key := memberKey(b.ProductIDs)
		if i, ok := best[key]; ok {
			if b.RecommendationScore > out[i].RecommendationScore {
				out[i] = b
			}
			continue
		}
		best[key] = len(out)
		out = append(out, b)
	}
	return out
}

func rank(bundles []domain.BundleCandidate, limit int) []domain.BundleCandidate {
	sort.SliceStable(bundles, func(i, j int) bool {
		a, b := bundles[i], bundles[j]
		if a.RecommendationScore != b.RecommendationScore {
			return a.RecommendationScore > b.RecommendationScore
		}
		if a.ExpectedConversionRate != b.ExpectedConversionRate {
			return a.ExpectedConversionRate > b.ExpectedConversionRate
		}
		return a.Archetype < b.Archetype
	})
	if len(bundles) > limit {
		bundles = bundles[:limit]
	}
	if bundles == nil {
		bundles = []domain.BundleCandidate{}
	}
	return bundles
}

func memberKey(ids []uint64) string {
	sorted := make([]uint64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func bundleStrategy(profile *domain.BehaviorProfile) string {
	if profile == nil {
		return string(domain.StrategyCollaborative)
	}
	return string(domain.StrategyProfile)
}
