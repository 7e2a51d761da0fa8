package bundle

import (
	"context"
	"fmt"
	"sort"

	"myMarketplace/domain"
)

const (
	complementaryWindowDays = 30
	complementaryMinOrders  = 2
	complementaryNeighbors  = 2

	seasonalWindowDays  = 7
	seasonalPerCategory = 3

	crossSellPerItem = 3

	groupedCandidateFactor = 3
)

// complementary bundles products that keep being bought together.
type complementary struct {
	catalog Catalog
}

func (a *complementary) Name() domain.Archetype        { return domain.ArchetypeComplementary }
func (a *complementary) Discount() float64             { return domain.DefaultBundleDiscount }
func (a *complementary) ConversionMultiplier() float64 { return 1.2 }

func (a *complementary) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	since := in.Now.AddDate(0, 0, -complementaryWindowDays)

	pairs, err := a.catalog.CoOccurringProducts(ctx, since, complementaryMinOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to mine co-occurring products: %w", err)
	}

	groups := coOccurrenceBundles(pairs, complementaryNeighbors)
	if len(groups) == 0 {
		return nil, nil
	}

	var ids []uint64
	for _, g := range groups {
		ids = append(ids, g...)
	}
	products, err := a.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load co-occurring products: %w", err)
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var out []Candidate
	for _, g := range groups {
		var members []domain.Product
		for _, id := range g {
			if p, ok := byID[id]; ok {
				members = append(members, p)
			}
		}
		if len(members) < 2 {
			continue
		}
		out = append(out, Candidate{
			Products: members,
			Reason:   fmt.Sprintf("frequently bought together with %s", members[0].ProductName),
		})
	}
	return out, nil
}

// coOccurrenceBundles clusters the pair graph into connected components and
// returns, per component, its anchor followed by up to maxNeighbors of the
// anchor's strongest neighbours. The anchor is the node with the highest total
// co-occurrence weight. Ties go to the lower product id throughout.
func coOccurrenceBundles(pairs []domain.ProductPair, maxNeighbors int) [][]uint64 {
	uf := newUnionFind()
	weight := make(map[uint64]int64)
	adjacent := make(map[uint64]map[uint64]int64)

	link := func(a, b uint64, n int64) {
		if adjacent[a] == nil {
			adjacent[a] = make(map[uint64]int64)
		}
		adjacent[a][b] += n
	}

	for _, p := range pairs {
		if p.ProductA == p.ProductB {
			continue
		}
		uf.union(p.ProductA, p.ProductB)
		weight[p.ProductA] += p.OrderCount
		weight[p.ProductB] += p.OrderCount
		link(p.ProductA, p.ProductB, p.OrderCount)
		link(p.ProductB, p.ProductA, p.OrderCount)
	}

	anchors := make(map[uint64]uint64)
	for node := range weight {
		root := uf.find(node)
		cur, ok := anchors[root]
		if !ok || weight[node] > weight[cur] || (weight[node] == weight[cur] && node < cur) {
			anchors[root] = node
		}
	}

	var out [][]uint64
	for _, anchor := range anchors {
		neighbors := make([]uint64, 0, len(adjacent[anchor]))
		for n := range adjacent[anchor] {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool {
			wi, wj := adjacent[anchor][neighbors[i]], adjacent[anchor][neighbors[j]]
			if wi != wj {
				return wi > wj
			}
			return neighbors[i] < neighbors[j]
		})
		if len(neighbors) > maxNeighbors {
			neighbors = neighbors[:maxNeighbors]
		}
		out = append(out, append([]uint64{anchor}, neighbors...))
	}

	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

type unionFind struct {
	parent map[uint64]uint64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[uint64]uint64)}
}

func (u *unionFind) find(x uint64) uint64 {
	p, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b uint64) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// seasonal bundles the most viewed products of this month's seasonal categories.
type seasonal struct {
	catalog Catalog
}

func (a *seasonal) Name() domain.Archetype        { return domain.ArchetypeSeasonal }
func (a *seasonal) Discount() float64             { return domain.DefaultBundleDiscount }
func (a *seasonal) ConversionMultiplier() float64 { return 1.1 }

func (a *seasonal) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	since := in.Now.AddDate(0, 0, -seasonalWindowDays)

	var out []Candidate
	for _, category := range SeasonalCategories(in.Now.Month()) {
		products, err := a.catalog.TopViewedProducts(ctx, category, since, seasonalPerCategory)
		if err != nil {
			return nil, fmt.Errorf("failed to load seasonal products for %s: %w", category, err)
		}
		if len(products) < 2 {
			continue
		}
		out = append(out, Candidate{
			Products: products,
			Reason:   fmt.Sprintf("trending this season in %s", category),
		})
	}
	return out, nil
}

// promotional groups high-priced products behind a deeper discount.
type promotional struct {
	catalog  Catalog
	minPrice float64
}

func (a *promotional) Name() domain.Archetype        { return domain.ArchetypePromotional }
func (a *promotional) Discount() float64             { return domain.PromotionalBundleDiscount }
func (a *promotional) ConversionMultiplier() float64 { return 1.5 }
func (a *promotional) FixedScore() float64           { return 0.9 }

func (a *promotional) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	products, err := a.catalog.ProductsByPriceRange(ctx, nil, a.minPrice, in.Limit*groupedCandidateFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to load promotional products: %w", err)
	}

	var out []Candidate
	for _, g := range groupProducts(products) {
		out = append(out, Candidate{Products: g, Reason: "limited-time promotional bundle"})
	}
	return out, nil
}

// crossSell pairs each cart item with other products from its category.
type crossSell struct {
	catalog Catalog
}

func (a *crossSell) Name() domain.Archetype        { return domain.ArchetypeCrossSell }
func (a *crossSell) Discount() float64             { return domain.DefaultBundleDiscount }
func (a *crossSell) ConversionMultiplier() float64 { return 1.3 }

func (a *crossSell) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	if len(in.CartItems) == 0 {
		return nil, nil
	}

	cart, err := a.catalog.FindByIDs(ctx, in.CartItems)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	var out []Candidate
	for _, item := range cart {
		if item.ProductCategory == "" {
			continue
		}
		related, err := a.catalog.ProductsByCategory(ctx, item.ProductCategory, in.CartItems, crossSellPerItem)
		if err != nil {
			return nil, fmt.Errorf("failed to load products related to %d: %w", item.ID, err)
		}
		if len(related) < 2 {
			continue
		}
		out = append(out, Candidate{
			Products: related,
			Reason:   fmt.Sprintf("goes well with %s in your cart", item.ProductName),
		})
	}
	return out, nil
}

// upsell proposes premium products from the categories the user prefers.
type upsell struct {
	catalog        Catalog
	minPrice       float64
	globalMinPrice float64
}

func (a *upsell) Name() domain.Archetype        { return domain.ArchetypeUpsell }
func (a *upsell) Discount() float64             { return domain.DefaultBundleDiscount }
func (a *upsell) ConversionMultiplier() float64 { return 0.8 }

func (a *upsell) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	categories, minPrice := []string(nil), a.globalMinPrice
	reason := "premium picks from our catalog"
	if in.Profile != nil && len(in.Profile.PreferredCategories) > 0 {
		categories, minPrice = in.Profile.PreferredCategories, a.minPrice
		reason = "premium picks from categories you like"
	}

	products, err := a.catalog.ProductsByPriceRange(ctx, categories, minPrice, in.Limit*groupedCandidateFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to load upsell products: %w", err)
	}

	var out []Candidate
	for _, g := range groupProducts(products) {
		out = append(out, Candidate{Products: g, Reason: reason})
	}
	return out, nil
}
