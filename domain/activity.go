package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type ActivityType string

const (
	ActivitySessionStart ActivityType = "session_start"
	ActivitySessionEnd   ActivityType = "session_end"
	ActivityLogin        ActivityType = "login"
	ActivityLogout       ActivityType = "logout"
	ActivitySignup       ActivityType = "signup"

	ActivityPageView          ActivityType = "page_view"
	ActivityProductView       ActivityType = "product_view"
	ActivityCategoryView      ActivityType = "category_view"
	ActivityBrandView         ActivityType = "brand_view"
	ActivitySearch            ActivityType = "search"
	ActivitySearchResultsView ActivityType = "search_results_view"
	ActivitySearchResultClick ActivityType = "search_result_click"
	ActivityFilterApply       ActivityType = "filter_apply"
	ActivitySortApply         ActivityType = "sort_apply"
	ActivityScroll            ActivityType = "scroll"
	ActivityClick             ActivityType = "click"
	ActivityProductClick      ActivityType = "product_click"
	ActivityBannerClick       ActivityType = "banner_click"
	ActivityImageZoom         ActivityType = "image_zoom"
	ActivityVideoPlay         ActivityType = "video_play"

	ActivityAddToCart          ActivityType = "add_to_cart"
	ActivityRemoveFromCart     ActivityType = "remove_from_cart"
	ActivityUpdateCartQuantity ActivityType = "update_cart_quantity"
	ActivityCartView           ActivityType = "cart_view"

	ActivityCheckoutStart    ActivityType = "checkout_start"
	ActivityCheckoutStep     ActivityType = "checkout_step"
	ActivityCheckoutComplete ActivityType = "checkout_complete"
	ActivityPurchase         ActivityType = "purchase"
	ActivityOrderCancel      ActivityType = "order_cancel"
	ActivityOrderReturn      ActivityType = "order_return"
	ActivityCouponApply      ActivityType = "coupon_apply"

	ActivityAddToWishlist      ActivityType = "add_to_wishlist"
	ActivityRemoveFromWishlist ActivityType = "remove_from_wishlist"
	ActivityWishlistView       ActivityType = "wishlist_view"

	ActivityReviewWrite  ActivityType = "review_write"
	ActivityReviewRead   ActivityType = "review_read"
	ActivityRatingSubmit ActivityType = "rating_submit"
	ActivityShare        ActivityType = "share"
	ActivityCompareAdd   ActivityType = "compare_add"
	ActivityCompareView  ActivityType = "compare_view"

	ActivityPromotionView     ActivityType = "promotion_view"
	ActivityPromotionClick    ActivityType = "promotion_click"
	ActivityNotificationClick ActivityType = "notification_click"
	ActivityEmailOpen         ActivityType = "email_open"

	ActivityRecommendationView  ActivityType = "recommendation_view"
	ActivityRecommendationClick ActivityType = "recommendation_click"
	ActivityBundleView          ActivityType = "bundle_view"
	ActivityBundleClick         ActivityType = "bundle_click"
	ActivityBundleAddToCart     ActivityType = "bundle_add_to_cart"
)

type activityClass int

const (
	classOther activityClass = iota
	classView
	classClick
)

type dataField string

const (
	fieldProduct           dataField = "product_id"
	fieldCategory          dataField = "category"
	fieldBrand             dataField = "brand"
	fieldQuantity          dataField = "quantity"
	fieldOrderValue        dataField = "order_value"
	fieldSearchQuery       dataField = "search_query"
	fieldRecommendationLog dataField = "recommendation_log_id"
)

type activitySpec struct {
	class    activityClass
	requires []dataField
}

var activityCatalog = map[ActivityType]activitySpec{
	ActivitySessionStart: {},
	ActivitySessionEnd:   {},
	ActivityLogin:        {},
	ActivityLogout:       {},
	ActivitySignup:       {},

	ActivityPageView:          {class: classView},
	ActivityProductView:       {class: classView, requires: []dataField{fieldProduct}},
	ActivityCategoryView:      {class: classView, requires: []dataField{fieldCategory}},
	ActivityBrandView:         {class: classView, requires: []dataField{fieldBrand}},
	ActivitySearch:            {requires: []dataField{fieldSearchQuery}},
	ActivitySearchResultsView: {class: classView, requires: []dataField{fieldSearchQuery}},
	ActivitySearchResultClick: {class: classClick, requires: []dataField{fieldProduct}},
	ActivityFilterApply:       {},
	ActivitySortApply:         {},
	ActivityScroll:            {},
	ActivityClick:             {class: classClick},
	ActivityProductClick:      {class: classClick, requires: []dataField{fieldProduct}},
	ActivityBannerClick:       {class: classClick},
	ActivityImageZoom:         {requires: []dataField{fieldProduct}},
	ActivityVideoPlay:         {requires: []dataField{fieldProduct}},

	ActivityAddToCart:          {requires: []dataField{fieldProduct, fieldQuantity}},
	ActivityRemoveFromCart:     {requires: []dataField{fieldProduct}},
	ActivityUpdateCartQuantity: {requires: []dataField{fieldProduct, fieldQuantity}},
	ActivityCartView:           {class: classView},

	ActivityCheckoutStart:    {},
	ActivityCheckoutStep:     {},
	ActivityCheckoutComplete: {requires: []dataField{fieldOrderValue}},
	ActivityPurchase:         {requires: []dataField{fieldOrderValue}},
	ActivityOrderCancel:      {},
	ActivityOrderReturn:      {},
	ActivityCouponApply:      {},

	ActivityAddToWishlist:      {requires: []dataField{fieldProduct}},
	ActivityRemoveFromWishlist: {requires: []dataField{fieldProduct}},
	ActivityWishlistView:       {class: classView},

	ActivityReviewWrite:  {requires: []dataField{fieldProduct}},
	ActivityReviewRead:   {class: classView},
	ActivityRatingSubmit: {requires: []dataField{fieldProduct}},
	ActivityShare:        {},
	ActivityCompareAdd:   {requires: []dataField{fieldProduct}},
	ActivityCompareView:  {class: classView},

	ActivityPromotionView:     {class: classView},
	ActivityPromotionClick:    {class: classClick},
	ActivityNotificationClick: {class: classClick},
	ActivityEmailOpen:         {},

	ActivityRecommendationView:  {class: classView, requires: []dataField{fieldRecommendationLog}},
	ActivityRecommendationClick: {class: classClick, requires: []dataField{fieldRecommendationLog}},
	ActivityBundleView:          {class: classView, requires: []dataField{fieldRecommendationLog}},
	ActivityBundleClick:         {class: classClick, requires: []dataField{fieldRecommendationLog}},
	ActivityBundleAddToCart:     {requires: []dataField{fieldRecommendationLog}},
}

// PopularityActivityTypes are the view/cart/purchase interactions counted by the
// collaborative fallback.
var PopularityActivityTypes = []ActivityType{
	ActivityProductView,
	ActivityAddToCart,
	ActivityPurchase,
}

func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := activityCatalog[t]; !ok {
		names := make([]string, 0, len(activityCatalog))
		for _, known := range ActivityTypes() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("%w: unknown activity type %q, want one of %s", ErrValidation, s, strings.Join(names, ", "))
	}
	return t, nil
}

func (t ActivityType) Valid() bool {
	_, ok := activityCatalog[t]
	return ok
}

func (t ActivityType) IsView() bool {
	return activityCatalog[t].class == classView
}

func (t ActivityType) IsClick() bool {
	return activityCatalog[t].class == classClick
}

// ActivityTypes lists every known activity type in lexical order.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, 0, len(activityCatalog))
	for t := range activityCatalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActivityData is the closed payload accepted with an activity. Which fields are
// mandatory depends on the activity type.
type ActivityData struct {
	ProductID              *uint64    `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Category               *string    `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Brand                  *string    `json:"brand,omitempty" validate:"omitempty,min=1,max=100"`
	Price                  *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Quantity               *int       `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	CartValue              *float64   `json:"cart_value,omitempty" validate:"omitempty,gte=0"`
	OrderValue             *float64   `json:"order_value,omitempty" validate:"omitempty,gte=0"`
	OrderID                *uint64    `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	SearchQuery            *string    `json:"search_query,omitempty" validate:"omitempty,min=1,max=256"`
	TimeSpent              *float64   `json:"time_spent,omitempty" validate:"omitempty,gte=0"`
	ScrollDepth            *float64   `json:"scroll_depth,omitempty" validate:"omitempty,gte=0,lte=1"`
	OccurredAt             *time.Time `json:"occurred_at,omitempty"`
	RecommendationLogID    *string    `json:"recommendation_log_id,omitempty" validate:"omitempty,uuid"`
	RecommendationPosition *int       `json:"recommendation_position,omitempty" validate:"omitempty,gte=0"`
}

// ActivityContext describes where the interaction happened.
type ActivityContext struct {
	Platform   string `json:"platform,omitempty" gorm:"column:platform" validate:"omitempty,max=32"`
	DeviceType string `json:"device_type,omitempty" gorm:"column:device_type" validate:"omitempty,max=32"`
	PageURL    string `json:"page_url,omitempty" gorm:"column:page_url" validate:"omitempty,max=2048"`
	Referrer   string `json:"referrer,omitempty" gorm:"column:referrer" validate:"omitempty,max=2048"`
	UserAgent  string `json:"user_agent,omitempty" gorm:"column:user_agent" validate:"omitempty,max=512"`
}

// CheckRequired reports the fields the activity type needs but the payload lacks.
func (d ActivityData) CheckRequired(t ActivityType) error {
	entry, ok := activityCatalog[t]
	if !ok {
		return fmt.Errorf("%w: unknown activity type %q", ErrValidation, t)
	}

	var missing []string
	for _, f := range entry.requires {
		if !d.has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s requires %s", ErrValidation, t, strings.Join(missing, ", "))
	}
	return nil
}

func (d ActivityData) has(f dataField) bool {
	switch f {
	case fieldProduct:
		return d.ProductID != nil
	case fieldCategory:
		return d.Category != nil && *d.Category != ""
	case fieldBrand:
		return d.Brand != nil && *d.Brand != ""
	case fieldQuantity:
		return d.Quantity != nil
	case fieldOrderValue:
		return d.OrderValue != nil
	case fieldSearchQuery:
		return d.SearchQuery != nil && *d.SearchQuery != ""
	case fieldRecommendationLog:
		return d.RecommendationLogID != nil && *d.RecommendationLogID != ""
	}
	return false
}

// ActivityEvent is one immutable row of the activity log.
type ActivityEvent struct {
	ID           uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       *uint        `gorm:"column:user_id;index:idx_activity_user_time,priority:1" json:"user_id,omitempty"`
	SessionID    string       `gorm:"column:session_id;type:text;not null;index" json:"session_id"`
	ActivityType ActivityType `gorm:"column:activity_type;type:text;not null;index" json:"activity_type"`
	OccurredAt   time.Time    `gorm:"column:occurred_at;not null;index:idx_activity_user_time,priority:2" json:"occurred_at"`

	ProductID   *uint64  `gorm:"column:product_id;index" json:"product_id,omitempty"`
	Category    *string  `gorm:"column:category;type:text" json:"category,omitempty"`
	Brand       *string  `gorm:"column:brand;type:text" json:"brand,omitempty"`
	Price       *float64 `gorm:"column:price;type:numeric" json:"price,omitempty"`
	Quantity    *int     `gorm:"column:quantity" json:"quantity,omitempty"`
	CartValue   *float64 `gorm:"column:cart_value;type:numeric" json:"cart_value,omitempty"`
	OrderValue  *float64 `gorm:"column:order_value;type:numeric" json:"order_value,omitempty"`
	OrderID     *uint64  `gorm:"column:order_id" json:"order_id,omitempty"`
	SearchQuery *string  `gorm:"column:search_query;type:text" json:"search_query,omitempty"`
	TimeSpent   *float64 `gorm:"column:time_spent_seconds" json:"time_spent,omitempty"`
	ScrollDepth *float64 `gorm:"column:scroll_depth" json:"scroll_depth,omitempty"`

	RecommendationLogID    *string `gorm:"column:recommendation_log_id;type:text;index" json:"recommendation_log_id,omitempty"`
	RecommendationPosition *int    `gorm:"column:recommendation_position" json:"recommendation_position,omitempty"`

	Context   ActivityContext `gorm:"embedded;embeddedPrefix:ctx_" json:"context"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}

// NewActivityEvent builds a log row from a validated payload.
func NewActivityEvent(userID *uint, sessionID string, t ActivityType, data ActivityData, actx ActivityContext, now time.Time) ActivityEvent {
	occurred := now
	if data.OccurredAt != nil && !data.OccurredAt.IsZero() {
		occurred = *data.OccurredAt
	}

	return ActivityEvent{
		UserID:                 userID,
		SessionID:              sessionID,
		ActivityType:           t,
		OccurredAt:             occurred.UTC(),
		ProductID:              data.ProductID,
		Category:               data.Category,
		Brand:                  data.Brand,
		Price:                  data.Price,
		Quantity:               data.Quantity,
		CartValue:              data.CartValue,
		OrderValue:             data.OrderValue,
		OrderID:                data.OrderID,
		SearchQuery:            data.SearchQuery,
		TimeSpent:              data.TimeSpent,
		ScrollDepth:            data.ScrollDepth,
		RecommendationLogID:    data.RecommendationLogID,
		RecommendationPosition: data.RecommendationPosition,
		Context:                actx,
	}
}
