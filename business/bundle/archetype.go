package bundle

import (
	"context"
	"time"

	"myMarketplace/domain"
)

// Catalog is the read-only catalog surface the archetypes query.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	ProductsByCategory(ctx context.Context, category string, excludeIDs []uint64, limit int) ([]domain.Product, error)
	ProductsByPriceRange(ctx context.Context, categories []string, minPrice float64, limit int) ([]domain.Product, error)
	CoOccurringProducts(ctx context.Context, since time.Time, minOrders int) ([]domain.ProductPair, error)
	TopViewedProducts(ctx context.Context, category string, since time.Time, limit int) ([]domain.Product, error)
}

// Input is what every archetype sees for one request. Profile is nil for
// anonymous users and users without a profile.
type Input struct {
	Profile   *domain.BehaviorProfile
	CartItems []uint64
	Now       time.Time
	Limit     int
}

// Candidate is an unpriced group of products proposed by an archetype.
type Candidate struct {
	Products []domain.Product
	Reason   string
}

// Archetype is one bundle generation strategy. Pricing and scoring are applied
// centrally from Discount and ConversionMultiplier.
type Archetype interface {
	Name() domain.Archetype
	Discount() float64
	ConversionMultiplier() float64
	GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error)
}

// FixedScorer is implemented by archetypes whose recommendation score does not
// depend on the profile.
type FixedScorer interface {
	FixedScore() float64
}

// Registry builds the five archetypes over one catalog.
func Registry(catalog Catalog, cfg Config) []Archetype {
	return []Archetype{
		&complementary{catalog: catalog},
		&seasonal{catalog: catalog},
		&promotional{catalog: catalog, minPrice: cfg.PromoPriceFloor},
		&crossSell{catalog: catalog},
		&upsell{catalog: catalog, minPrice: cfg.UpsellPriceFloor, globalMinPrice: cfg.UpsellGlobalFloor},
	}
}

// groupProducts splits products into bundles of two or three members. A lone
// leftover borrows one member from the previous group.
func groupProducts(products []domain.Product) [][]domain.Product {
	var groups [][]domain.Product
	for i := 0; i < len(products); i += 3 {
		end := i + 3
		if end > len(products) {
			end = len(products)
		}
		groups = append(groups, products[i:end])
	}

	if n := len(groups); n > 0 && len(groups[n-1]) == 1 {
		if n == 1 {
			return nil
		}
		prev := groups[n-2]
		groups[n-2] = prev[:2]
		groups[n-1] = []domain.Product{prev[2], groups[n-1][0]}
	}
	return groups
}
