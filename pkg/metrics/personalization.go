package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Activity events accepted by the tracker, by activity type
	ActivityEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_activity_events_total",
		Help: "Tracked activity events by activity type and outcome.",
	}, []string{"activity_type", "outcome"})

	// Background profile recomputations, by outcome (success, error)
	ProfileRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_profile_refresh_total",
		Help: "Behavior profile recomputations by outcome.",
	}, []string{"outcome"})

	// Refresh jobs dropped because the queue was full or the user was already pending
	ProfileRefreshDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_profile_refresh_dropped_total",
		Help: "Profile refresh jobs not enqueued, by reason.",
	}, []string{"reason"})

	RecommendationsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_recommendations_served_total",
		Help: "Recommendation batches served by strategy.",
	}, []string{"strategy"})

	RecommendationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "personalization_generation_latency_seconds",
		Help:    "Latency of recommendation and bundle generation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	BundleArchetypeResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_bundle_archetype_results_total",
		Help: "Bundle archetype generator runs by archetype and outcome.",
	}, []string{"archetype", "outcome"})

	FeedbackInteractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personalization_feedback_interactions_total",
		Help: "Feedback counter increments by log kind, interaction type and outcome.",
	}, []string{"kind", "interaction_type", "outcome"})
)

func Init() {
	prometheus.MustRegister(
		ActivityEventsTotal,
		ProfileRefreshTotal,
		ProfileRefreshDropped,
		RecommendationsServed,
		RecommendationLatency,
		BundleArchetypeResults,
		FeedbackInteractionsTotal,
	)
}
