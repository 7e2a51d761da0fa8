package domain

import "time"

type Archetype string

const (
	ArchetypeComplementary Archetype = "complementary"
	ArchetypeSeasonal      Archetype = "seasonal"
	ArchetypePromotional   Archetype = "promotional"
	ArchetypeCrossSell     Archetype = "cross_sell"
	ArchetypeUpsell        Archetype = "upsell"
)

const (
	DefaultBundleDiscount     = 15.0
	PromotionalBundleDiscount = 25.0
	MaxExpectedConversionRate = 0.30
)

// BundleCandidate is a synthesized multi-product offer. It is logged but never
// stored as a catalog object.
type BundleCandidate struct {
	Archetype              Archetype `json:"archetype"`
	ProductIDs             []uint64  `json:"product_ids"`
	IndividualPrice        float64   `json:"individual_price"`
	BundlePrice            float64   `json:"bundle_price"`
	DiscountPercentage     float64   `json:"discount_percentage"`
	SavingsAmount          float64   `json:"savings_amount"`
	RecommendationScore    float64   `json:"recommendation_score"`
	ConfidenceScore        float64   `json:"confidence_score"`
	ExpectedConversionRate float64   `json:"expected_conversion_rate"`
	ExpectedRevenue        float64   `json:"expected_revenue"`
	Reason                 string    `json:"reason"`
}

// ArchetypeResult is what one archetype contributed to a bundle request. Err is
// set when the archetype failed; Reason explains an empty or failed result.
type ArchetypeResult struct {
	Archetype Archetype
	Bundles   []BundleCandidate
	Err       error
	Reason    string
}

type BundleRequest struct {
	UserID    *uint
	SessionID string
	CartItems []uint64
	Limit     int
	Now       time.Time
}

type BundleBatch struct {
	LogID     string            `json:"log_id"`
	Bundles   []BundleCandidate `json:"bundles"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}
