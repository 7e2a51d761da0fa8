package domain

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type FeedbackKind string

const (
	FeedbackRecommendation FeedbackKind = "recommendation"
	FeedbackBundle         FeedbackKind = "bundle"
)

type InteractionType string

const (
	InteractionView       InteractionType = "view"
	InteractionClick      InteractionType = "click"
	InteractionConversion InteractionType = "conversion"
)

func ParseInteractionType(s string) (InteractionType, error) {
	switch t := InteractionType(strings.ToLower(strings.TrimSpace(s))); t {
	case InteractionView, InteractionClick, InteractionConversion:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown interaction type %q", ErrValidation, s)
}

// FeedbackLog is the persisted row for one emitted recommendation or bundle batch.
type FeedbackLog struct {
	ID                 string         `gorm:"primaryKey;type:text" json:"id"`
	Kind               FeedbackKind   `gorm:"column:kind;type:text;not null;index" json:"kind"`
	UserID             *uint          `gorm:"column:user_id;index" json:"user_id,omitempty"`
	SessionID          string         `gorm:"column:session_id;type:text" json:"session_id"`
	Strategy           string         `gorm:"column:strategy;type:text" json:"strategy"`
	RecommendationType string         `gorm:"column:recommendation_type;type:text" json:"recommendation_type"`
	Items              datatypes.JSON `gorm:"column:items;type:jsonb" json:"items"`
	ItemCount          int            `gorm:"column:item_count" json:"item_count"`
	MeanScore          float64        `gorm:"column:mean_score" json:"mean_score"`

	Impressions      int64   `gorm:"column:impressions;not null;default:0" json:"impressions"`
	Clicks           int64   `gorm:"column:clicks;not null;default:0" json:"clicks"`
	Conversions      int64   `gorm:"column:conversions;not null;default:0" json:"conversions"`
	RevenueGenerated float64 `gorm:"column:revenue_generated;type:numeric;not null;default:0" json:"revenue_generated"`

	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
}

func (FeedbackLog) TableName() string {
	return "feedback_logs"
}

func (l FeedbackLog) Counters() FeedbackCounters {
	return FeedbackCounters{
		LogID:            l.ID,
		Impressions:      l.Impressions,
		Clicks:           l.Clicks,
		Conversions:      l.Conversions,
		RevenueGenerated: l.RevenueGenerated,
	}
}

type FeedbackCounters struct {
	LogID            string  `json:"log_id"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	Conversions      int64   `json:"conversions"`
	RevenueGenerated float64 `json:"revenue_generated"`
}

// ApplyInteraction adds amount to the counter for the interaction type. It
// refuses increments that would leave clicks above impressions or conversions
// above clicks. Revenue is only accepted with a conversion.
func (l *FeedbackLog) ApplyInteraction(t InteractionType, amount int64, revenue float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if revenue < 0 {
		return fmt.Errorf("%w: revenue cannot be negative", ErrValidation)
	}
	if revenue > 0 && t != InteractionConversion {
		return fmt.Errorf("%w: revenue is only recorded with a conversion", ErrValidation)
	}

	switch t {
	case InteractionView:
		l.Impressions += amount
	case InteractionClick:
		if l.Clicks+amount > l.Impressions {
			return fmt.Errorf("%w: clicks %d would exceed impressions %d", ErrCounterInvariant, l.Clicks+amount, l.Impressions)
		}
		l.Clicks += amount
	case InteractionConversion:
		if l.Conversions+amount > l.Clicks {
			return fmt.Errorf("%w: conversions %d would exceed clicks %d", ErrCounterInvariant, l.Conversions+amount, l.Clicks)
		}
		l.Conversions += amount
		l.RevenueGenerated += revenue
	default:
		return fmt.Errorf("%w: unknown interaction type %q", ErrValidation, t)
	}
	return nil
}

// Consistent reports whether clicks <= impressions and conversions <= clicks.
func (c FeedbackCounters) Consistent() bool {
	return c.Clicks <= c.Impressions && c.Conversions <= c.Clicks
}

// LogEntry is what a generator hands to the feedback recorder.
type LogEntry struct {
	Kind               FeedbackKind
	UserID             *uint
	SessionID          string
	Strategy           string
	RecommendationType string
	Items              interface{}
	ItemCount          int
	MeanScore          float64
	ExpiresAt          *time.Time
}

// FeedbackTotals sums the counters of all batches of one kind.
type FeedbackTotals struct {
	Kind             FeedbackKind `gorm:"column:kind" json:"kind"`
	Batches          int64        `gorm:"column:batches" json:"batches"`
	Impressions      int64        `gorm:"column:impressions" json:"impressions"`
	Clicks           int64        `gorm:"column:clicks" json:"clicks"`
	Conversions      int64        `gorm:"column:conversions" json:"conversions"`
	RevenueGenerated float64      `gorm:"column:revenue_generated" json:"revenue_generated"`
}
