package bundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"myMarketplace/domain"
)

type stubArchetype struct {
	name       domain.Archetype
	discount   float64
	multiplier float64
}

func (s stubArchetype) Name() domain.Archetype        { return s.name }
func (s stubArchetype) Discount() float64             { return s.discount }
func (s stubArchetype) ConversionMultiplier() float64 { return s.multiplier }
func (s stubArchetype) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	return nil, nil
}

func products(prices ...float64) []domain.Product {
	out := make([]domain.Product, len(prices))
	for i, p := range prices {
		out[i] = domain.Product{ID: uint64(i + 1), NormalPrice: p, ProductCategory: "c", Brand: "b"}
	}
	return out
}

func TestPrice_AnonymousDefaults(t *testing.T) {
	a := stubArchetype{name: domain.ArchetypeComplementary, discount: 15, multiplier: 1.2}

	b := price(a, Candidate{Products: products(60, 40), Reason: "r"}, nil)

	assert.Equal(t, []uint64{1, 2}, b.ProductIDs)
	assert.InDelta(t, 100, b.IndividualPrice, 1e-9)
	assert.InDelta(t, 85, b.BundlePrice, 1e-9)
	assert.InDelta(t, 15, b.SavingsAmount, 1e-9)
	assert.InDelta(t, 0.6, b.RecommendationScore, 1e-9)
	assert.InDelta(t, 0.8, b.ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.05*1.2*0.6, b.ExpectedConversionRate, 1e-9)
	assert.InDelta(t, 85*0.05*1.2*0.6, b.ExpectedRevenue, 1e-9)
	assert.Equal(t, "r", b.Reason)
}

func TestPrice_ProfileOverlapAndBonus(t *testing.T) {
	a := stubArchetype{name: domain.ArchetypeUpsell, discount: 15, multiplier: 0.8}
	profile := &domain.BehaviorProfile{
		PreferredCategories: []string{"c"},
		PreferredBrands:     []string{"other"},
		PriceSensitivity:    0.1,
		AvgOrderValue:       10,
	}
	members := products(60, 40)
	members[1].ProductCategory = "x"

	b := price(a, Candidate{Products: members}, profile)

	// half the members match the category, none the brand, 85 > 1.2*10
	assert.InDelta(t, 0.6+0.1+0.1, b.RecommendationScore, 1e-9)
	assert.InDelta(t, 1.0, b.ConfidenceScore, 1e-9)
}

func TestPrice_ScoreIsClamped(t *testing.T) {
	a := stubArchetype{name: domain.ArchetypeSeasonal, discount: 15, multiplier: 1.1}
	profile := &domain.BehaviorProfile{
		PreferredCategories: []string{"c"},
		PreferredBrands:     []string{"b"},
		PriceSensitivity:    0.9,
		AvgOrderValue:       1000,
	}

	b := price(a, Candidate{Products: products(10, 10)}, profile)
	assert.Equal(t, 1.0, b.RecommendationScore)
}

func TestPrice_PromotionalUsesFixedScoreAndDealSeekerLift(t *testing.T) {
	a := &promotional{}
	profile := &domain.BehaviorProfile{PriceSensitivity: 0.9}

	b := price(a, Candidate{Products: products(200, 100)}, profile)

	assert.Equal(t, 0.9, b.RecommendationScore)
	assert.Equal(t, 25.0, b.DiscountPercentage)
	assert.InDelta(t, 225, b.BundlePrice, 1e-9)
	assert.InDelta(t, 0.05*1.5*0.9*1.4, b.ExpectedConversionRate, 1e-9)
}

func TestPrice_BehaviorMultipliersStack(t *testing.T) {
	profile := &domain.BehaviorProfile{
		ShoppingFrequency:      domain.FrequencyDaily,
		AvgSessionDuration:     30,
		PriceSensitivity:       0.95,
		CustomerLifecycleStage: domain.LifecycleLoyal,
	}
	assert.InDelta(t, 1.3*1.4*1.2, behaviorMultiplier(domain.ArchetypePromotional, profile), 1e-9)
	assert.InDelta(t, 1.3*1.2, behaviorMultiplier(domain.ArchetypeUpsell, profile), 1e-9)
	assert.Equal(t, 1.0, behaviorMultiplier(domain.ArchetypeUpsell, nil))
}

func TestPrice_ConversionRateIsCapped(t *testing.T) {
	a := stubArchetype{name: "aggressive", discount: 15, multiplier: 50}

	b := price(a, Candidate{Products: products(10, 10)}, nil)

	assert.Equal(t, domain.MaxExpectedConversionRate, b.ExpectedConversionRate)
	assert.InDelta(t, b.BundlePrice*0.30, b.ExpectedRevenue, 1e-9)
}
