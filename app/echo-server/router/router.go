package router

import (
	"myMarketplace/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupActivityRoutes(api *echo.Group, handler *rest.PersonalizationHandler, optionalAuth echo.MiddlewareFunc) {
	api.POST("/activities", handler.TrackActivity, optionalAuth)
}

func SetupRecommendationRoutes(api *echo.Group, handler *rest.PersonalizationHandler, optionalAuth echo.MiddlewareFunc) {
	api.GET("/recommendations", handler.GetRecommendations, optionalAuth)
	api.GET("/bundles", handler.GetBundles, optionalAuth)
}

func SetupFeedbackRoutes(api *echo.Group, handler *rest.PersonalizationHandler, optionalAuth echo.MiddlewareFunc) {
	feedback := api.Group("/feedback")
	feedback.GET("/:log_id", handler.GetFeedbackCounters, optionalAuth)
	feedback.POST("/:log_id/interactions", handler.RecordInteraction, optionalAuth)
}

func SetupUserRoutes(api *echo.Group, handler *rest.PersonalizationHandler, authRequired, selfOrAdmin, adminOnly echo.MiddlewareFunc) {
	users := api.Group("/users")
	users.GET("/:id/analytics", handler.GetUserAnalytics, authRequired, selfOrAdmin)
	users.DELETE("/:id/profile", handler.ResetUserProfile, authRequired, adminOnly)
}

func SetupMetricsRoute(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
