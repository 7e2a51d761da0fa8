package domain

import (
	"time"

	"gorm.io/datatypes"
)

type ShoppingFrequency string

const (
	FrequencyDaily   ShoppingFrequency = "daily"
	FrequencyWeekly  ShoppingFrequency = "weekly"
	FrequencyMonthly ShoppingFrequency = "monthly"
)

type LifecycleStage string

const (
	LifecycleNew    LifecycleStage = "new"
	LifecycleAtRisk LifecycleStage = "at_risk"
	LifecycleActive LifecycleStage = "active"
	LifecycleLoyal  LifecycleStage = "loyal"
)

type ShoppingDay string

const (
	ShoppingDayWeekday ShoppingDay = "weekday"
	ShoppingDayWeekend ShoppingDay = "weekend"
)

const (
	LowPriceSensitivity  = 0.3
	HighPriceSensitivity = 0.7
)

// BehaviorProfile is derived state for one user, rebuilt wholesale from the
// activity window on every refresh.
type BehaviorProfile struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false" json:"user_id"`

	PreferredCategories datatypes.JSONSlice[string] `gorm:"column:preferred_categories;type:jsonb" json:"preferred_categories"`
	PreferredBrands     datatypes.JSONSlice[string] `gorm:"column:preferred_brands;type:jsonb" json:"preferred_brands"`

	PriceSensitivity      float64           `gorm:"column:price_sensitivity" json:"price_sensitivity"`
	BrandLoyalty          float64           `gorm:"column:brand_loyalty" json:"brand_loyalty"`
	ShoppingFrequency     ShoppingFrequency `gorm:"column:shopping_frequency;type:text" json:"shopping_frequency"`
	PreferredShoppingHour int               `gorm:"column:preferred_shopping_hour" json:"preferred_shopping_hour"`
	PreferredShoppingDay  ShoppingDay       `gorm:"column:preferred_shopping_day;type:text" json:"preferred_shopping_day"`

	AvgSessionDuration float64 `gorm:"column:avg_session_duration" json:"avg_session_duration"`
	AvgPagesPerSession float64 `gorm:"column:avg_pages_per_session" json:"avg_pages_per_session"`
	BounceRate         float64 `gorm:"column:bounce_rate" json:"bounce_rate"`

	AvgOrderValue     float64 `gorm:"column:avg_order_value;type:numeric" json:"avg_order_value"`
	TotalOrders       int     `gorm:"column:total_orders" json:"total_orders"`
	TotalSpent        float64 `gorm:"column:total_spent;type:numeric" json:"total_spent"`
	PurchaseFrequency float64 `gorm:"column:purchase_frequency" json:"purchase_frequency"`

	CustomerLifecycleStage LifecycleStage `gorm:"column:customer_lifecycle_stage;type:text" json:"customer_lifecycle_stage"`
	CustomerLifetimeValue  float64        `gorm:"column:customer_lifetime_value;type:numeric" json:"customer_lifetime_value"`
	PersonalizationScore   float64        `gorm:"column:personalization_score" json:"personalization_score"`
	EngagementScore        float64        `gorm:"column:engagement_score" json:"engagement_score"`

	LastActivityAt time.Time `gorm:"column:last_activity_at" json:"last_activity_at"`
}

func (BehaviorProfile) TableName() string {
	return "behavior_profiles"
}

func (p *BehaviorProfile) PrefersCategory(category string) bool {
	return containsString(p.PreferredCategories, category)
}

func (p *BehaviorProfile) PrefersBrand(brand string) bool {
	return containsString(p.PreferredBrands, brand)
}

// PriceFits applies the price-sensitivity rule to a single price. applies is
// false when the profile sits in the neutral band or has no order history, in
// which case fits carries no meaning.
func (p *BehaviorProfile) PriceFits(price float64) (fits bool, applies bool) {
	band, ok := p.PriceBand()
	if !ok {
		return false, false
	}
	return band.Contains(price), true
}

// PriceBand is an open price interval. A zero bound is unbounded.
type PriceBand struct {
	Above float64
	Below float64
}

func (b PriceBand) Contains(price float64) bool {
	if b.Above > 0 && price <= b.Above {
		return false
	}
	if b.Below > 0 && price >= b.Below {
		return false
	}
	return true
}

// PriceBand returns the interval PriceFits accepts, or false when the rule
// does not apply to this profile.
func (p *BehaviorProfile) PriceBand() (PriceBand, bool) {
	if p.AvgOrderValue <= 0 {
		return PriceBand{}, false
	}
	switch {
	case p.PriceSensitivity < LowPriceSensitivity:
		return PriceBand{Above: 1.2 * p.AvgOrderValue}, true
	case p.PriceSensitivity > HighPriceSensitivity:
		return PriceBand{Below: 0.8 * p.AvgOrderValue}, true
	}
	return PriceBand{}, false
}

func (p *BehaviorProfile) DealSeeker() bool {
	return p.PriceSensitivity > HighPriceSensitivity
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
