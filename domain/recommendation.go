package domain

import "time"

type Strategy string

const (
	StrategyProfile       Strategy = "profile"
	StrategyCollaborative Strategy = "collaborative"
)

type RecommendationType string

const (
	RecommendationPersonalized RecommendationType = "personalized"
	RecommendationTrending     RecommendationType = "trending"
)

func (t RecommendationType) Valid() bool {
	return t == RecommendationPersonalized || t == RecommendationTrending
}

// CollaborativeScore is the flat score every popularity fallback item carries.
const CollaborativeScore = 0.8

type ScoredItem struct {
	ProductID uint64  `json:"product_id"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// RecommendationBatch is one emitted, logged list of recommendations.
type RecommendationBatch struct {
	LogID     string             `json:"log_id"`
	UserID    *uint              `json:"user_id,omitempty"`
	SessionID string             `json:"session_id"`
	Strategy  Strategy           `json:"strategy"`
	Type      RecommendationType `json:"type"`
	Items     []ScoredItem       `json:"items"`
	MeanScore float64            `json:"mean_score"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// PreferenceQuery selects catalog products matching a profile's preferred
// categories or brands. Price, when set, restricts the pool before Limit is
// applied.
type PreferenceQuery struct {
	Categories []string
	Brands     []string
	Price      *PriceBand
	Limit      int
}

type RecommendationRequest struct {
	UserID    *uint
	SessionID string
	Limit     int
	Type      RecommendationType
}

func MeanScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
