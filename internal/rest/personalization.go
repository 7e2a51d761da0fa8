package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"myMarketplace/business/activity"
	"myMarketplace/domain"
	"myMarketplace/internal/middleware"
	"myMarketplace/pkg/logger"
	jsonres "myMarketplace/pkg/response"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	ActivityTracker interface {
		TrackActivity(ctx context.Context, in activity.TrackInput) error
	}

	Recommender interface {
		GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (domain.RecommendationBatch, error)
	}

	BundleGenerator interface {
		GetBundles(ctx context.Context, req domain.BundleRequest) (domain.BundleBatch, error)
	}

	InteractionRecorder interface {
		IncrementAs(ctx context.Context, caller *uint, logID string, interaction domain.InteractionType, amount int64, revenue float64) (domain.FeedbackCounters, error)
		GetCounters(ctx context.Context, caller *uint, logID string) (domain.FeedbackCounters, error)
	}

	AnalyticsReader interface {
		GetUserAnalytics(ctx context.Context, userID uint) (*domain.UserAnalytics, error)
	}

	ProfileResetter interface {
		ResetProfile(ctx context.Context, userID uint) error
	}

	PersonalizationHandler struct {
		activities      ActivityTracker
		recommendations Recommender
		bundles         BundleGenerator
		feedback        InteractionRecorder
		analytics       AnalyticsReader
		profiles        ProfileResetter
		validator       *validator.Validate
		timeout         time.Duration
	}

	TrackActivityRequest struct {
		SessionID    string                 `json:"session_id" validate:"required,max=128"`
		ActivityType string                 `json:"activity_type" validate:"required"`
		Data         domain.ActivityData    `json:"data"`
		Context      domain.ActivityContext `json:"context"`
	}

	InteractionRequest struct {
		InteractionType string  `json:"interaction_type" validate:"required"`
		Amount          *int64  `json:"amount,omitempty" validate:"omitempty,gt=0"`
		Revenue         float64 `json:"revenue" validate:"gte=0"`
	}
)

func NewPersonalizationHandler(
	activities ActivityTracker,
	recommendations Recommender,
	bundles BundleGenerator,
	feedback InteractionRecorder,
	analytics AnalyticsReader,
	profiles ProfileResetter,
	timeout time.Duration,
) *PersonalizationHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PersonalizationHandler{
		activities:      activities,
		recommendations: recommendations,
		bundles:         bundles,
		feedback:        feedback,
		analytics:       analytics,
		profiles:        profiles,
		validator:       validator.New(),
		timeout:         timeout,
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, jsonres.Error("VALIDATION_ERROR", msg, nil))
}

func optionalUser(c echo.Context) *uint {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

// TrackActivity stores the event and records recommendation linkage before
// acknowledging. Only the profile refresh runs in the background.
func (h *PersonalizationHandler) TrackActivity(c echo.Context) error {
	var req TrackActivityRequest

	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.Warn("Invalid activity payload", "error", err)
		return badRequest(c, fmt.Sprintf("invalid request body: %v", err))
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	err := h.activities.TrackActivity(ctx, activity.TrackInput{
		UserID:       optionalUser(c),
		SessionID:    req.SessionID,
		ActivityType: req.ActivityType,
		Data:         req.Data,
		Context:      req.Context,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"acknowledged": true,
	})
}

func (h *PersonalizationHandler) GetRecommendations(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	batch, err := h.recommendations.GetRecommendations(ctx, domain.RecommendationRequest{
		UserID:    optionalUser(c),
		SessionID: c.QueryParam("session_id"),
		Limit:     limit,
		Type:      domain.RecommendationType(c.QueryParam("type")),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(batch))
}

func (h *PersonalizationHandler) GetBundles(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}

	cartItems, err := parseIDList(c.QueryParam("cart_items"))
	if err != nil {
		return badRequest(c, "cart_items must be a comma separated list of product ids")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	batch, err := h.bundles.GetBundles(ctx, domain.BundleRequest{
		UserID:    optionalUser(c),
		SessionID: c.QueryParam("session_id"),
		CartItems: cartItems,
		Limit:     limit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(batch))
}

func (h *PersonalizationHandler) RecordInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Invalid interaction payload", "error", err)
		return badRequest(c, "invalid request body")
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	interaction, err := domain.ParseInteractionType(req.InteractionType)
	if err != nil {
		return err
	}

	amount := int64(1)
	if req.Amount != nil {
		amount = *req.Amount
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	counters, err := h.feedback.IncrementAs(ctx, optionalUser(c), c.Param("log_id"), interaction, amount, req.Revenue)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(counters))
}

func (h *PersonalizationHandler) GetFeedbackCounters(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	counters, err := h.feedback.GetCounters(ctx, optionalUser(c), c.Param("log_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(counters))
}

func (h *PersonalizationHandler) GetUserAnalytics(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	analytics, err := h.analytics.GetUserAnalytics(ctx, uint(userID))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(analytics))
}

// ResetUserProfile drops the derived profile; raw activity is kept.
func (h *PersonalizationHandler) ResetUserProfile(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		return badRequest(c, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.profiles.ResetProfile(ctx, uint(userID)); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "profile reset",
		"user_id": userID,
	})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseIDList(raw string) ([]uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid product id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
