package bundle

import (
	"math"

	"myMarketplace/domain"
)

const (
	baseBundleScore      = 0.6
	categoryOverlapBonus = 0.2
	brandOverlapBonus    = 0.2
	priceFitBonus        = 0.1
	confidenceLift       = 0.2
	baseConversionRate   = 0.05

	impulseMultiplier     = 1.3
	dealSeekerMultiplier  = 1.4
	loyalMultiplier       = 1.2
	impulseSessionSeconds = 120
)

// price turns a candidate into a priced, scored bundle. It is the only place
// bundle pricing and conversion estimates are computed.
func price(a Archetype, c Candidate, profile *domain.BehaviorProfile) domain.BundleCandidate {
	ids := make([]uint64, len(c.Products))
	var individual float64
	for i, p := range c.Products {
		ids[i] = p.ID
		individual += p.Price()
	}

	discount := a.Discount()
	bundlePrice := individual * (1 - discount/100)

	var score float64
	if fs, ok := a.(FixedScorer); ok {
		score = fs.FixedScore()
	} else {
		score = recommendationScore(c.Products, bundlePrice, profile)
	}

	ecr := baseConversionRate * a.ConversionMultiplier() * score * behaviorMultiplier(a.Name(), profile)
	ecr = math.Min(ecr, domain.MaxExpectedConversionRate)

	return domain.BundleCandidate{
		Archetype:              a.Name(),
		ProductIDs:             ids,
		IndividualPrice:        individual,
		BundlePrice:            bundlePrice,
		DiscountPercentage:     discount,
		SavingsAmount:          individual - bundlePrice,
		RecommendationScore:    score,
		ConfidenceScore:        math.Min(1, score+confidenceLift),
		ExpectedConversionRate: ecr,
		ExpectedRevenue:        bundlePrice * ecr,
		Reason:                 c.Reason,
	}
}

func recommendationScore(products []domain.Product, bundlePrice float64, profile *domain.BehaviorProfile) float64 {
	score := baseBundleScore
	if profile == nil || len(products) == 0 {
		return score
	}

	var catHits, brandHits int
	for _, p := range products {
		if profile.PrefersCategory(p.ProductCategory) {
			catHits++
		}
		if profile.PrefersBrand(p.Brand) {
			brandHits++
		}
	}
	n := float64(len(products))
	score += categoryOverlapBonus * float64(catHits) / n
	score += brandOverlapBonus * float64(brandHits) / n

	if fits, applies := profile.PriceFits(bundlePrice); applies && fits {
		score += priceFitBonus
	}

	return math.Min(1, score)
}

func behaviorMultiplier(archetype domain.Archetype, profile *domain.BehaviorProfile) float64 {
	if profile == nil {
		return 1
	}

	m := 1.0
	if profile.ShoppingFrequency == domain.FrequencyDaily && profile.AvgSessionDuration < impulseSessionSeconds {
		m *= impulseMultiplier
	}
	if profile.DealSeeker() && archetype == domain.ArchetypePromotional {
		m *= dealSeekerMultiplier
	}
	if profile.CustomerLifecycleStage == domain.LifecycleLoyal {
		m *= loyalMultiplier
	}
	return m
}
