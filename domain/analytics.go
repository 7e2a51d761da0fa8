package domain

type FeedbackSummary struct {
	FeedbackTotals
	ClickThroughRate float64 `json:"click_through_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
}

// NewFeedbackSummary derives rates from raw totals. Rates are 0 when the
// denominator is 0.
func NewFeedbackSummary(t FeedbackTotals) FeedbackSummary {
	s := FeedbackSummary{FeedbackTotals: t}
	if t.Impressions > 0 {
		s.ClickThroughRate = float64(t.Clicks) / float64(t.Impressions)
	}
	if t.Clicks > 0 {
		s.ConversionRate = float64(t.Conversions) / float64(t.Clicks)
	}
	return s
}

type UserAnalytics struct {
	UserID          uint             `json:"user_id"`
	HasProfile      bool             `json:"has_profile"`
	Profile         *BehaviorProfile `json:"profile,omitempty"`
	ActivityCount   int64            `json:"activity_count"`
	WindowDays      int              `json:"window_days"`
	Recommendations FeedbackSummary  `json:"recommendations"`
	Bundles         FeedbackSummary  `json:"bundles"`
}
