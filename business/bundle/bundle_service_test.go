package bundle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myMarketplace/domain"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	pairs    []domain.ProductPair
	errs     map[string]error

	seasonalAsked []string
}

func (f *fakeCatalog) fail(method string) error {
	if f.errs == nil {
		return nil
	}
	return f.errs[method]
}

func (f *fakeCatalog) FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if err := f.fail("FindByIDs"); err != nil {
		return nil, err
	}
	want := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Product
	for _, p := range f.products {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ProductsByCategory(ctx context.Context, category string, exclude []uint64, limit int) ([]domain.Product, error) {
	if err := f.fail("ProductsByCategory"); err != nil {
		return nil, err
	}
	skip := make(map[uint64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []domain.Product
	for _, p := range f.products {
		if p.ProductCategory == category && !skip[p.ID] {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) ProductsByPriceRange(ctx context.Context, categories []string, minPrice float64, limit int) ([]domain.Product, error) {
	if err := f.fail("ProductsByPriceRange"); err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range f.products {
		if p.Price() <= minPrice {
			continue
		}
		if len(categories) > 0 && !containsString(categories, p.ProductCategory) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price() > out[j].Price() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCatalog) CoOccurringProducts(ctx context.Context, since time.Time, minOrders int) ([]domain.ProductPair, error) {
	if err := f.fail("CoOccurringProducts"); err != nil {
		return nil, err
	}
	var out []domain.ProductPair
	for _, p := range f.pairs {
		if p.OrderCount >= int64(minOrders) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) TopViewedProducts(ctx context.Context, category string, since time.Time, limit int) ([]domain.Product, error) {
	if err := f.fail("TopViewedProducts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.seasonalAsked = append(f.seasonalAsked, category)
	f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		if p.ProductCategory == category {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeProfiles struct {
	profile *domain.BehaviorProfile
	err     error
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.profile == nil {
		return nil, false, nil
	}
	return f.profile, true, nil
}

type fakeLogger struct {
	entries []domain.LogEntry
	err     error
}

func (f *fakeLogger) LogBatch(ctx context.Context, entry domain.LogEntry) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.entries = append(f.entries, entry)
	return "bundle-log", nil
}

var december = time.Date(2026, 12, 10, 18, 0, 0, 0, time.UTC)

var testConfig = Config{
	DefaultLimit:      5,
	MaxLimit:          100,
	BatchTTL:          time.Hour,
	Timeout:           time.Second,
	PromoPriceFloor:   100,
	UpsellPriceFloor:  50,
	UpsellGlobalFloor: 200,
}

func catalogFixture() *fakeCatalog {
	return &fakeCatalog{
		products: []domain.Product{
			{ID: 1, ProductName: "Boots", ProductCategory: "shoes", Brand: "acme", NormalPrice: 120},
			{ID: 2, ProductName: "Sneakers", ProductCategory: "shoes", Brand: "acme", NormalPrice: 80},
			{ID: 3, ProductName: "Sandals", ProductCategory: "shoes", Brand: "globex", NormalPrice: 40},
			{ID: 4, ProductName: "Loafers", ProductCategory: "shoes", Brand: "globex", NormalPrice: 90},
			{ID: 5, ProductName: "Parka", ProductCategory: "winter_clothing", Brand: "north", NormalPrice: 300},
			{ID: 6, ProductName: "Scarf", ProductCategory: "winter_clothing", Brand: "north", NormalPrice: 30},
			{ID: 7, ProductName: "Gloves", ProductCategory: "winter_clothing", Brand: "north", NormalPrice: 25},
			{ID: 8, ProductName: "Tree", ProductCategory: "christmas", Brand: "elf", NormalPrice: 150},
			{ID: 9, ProductName: "Lights", ProductCategory: "christmas", Brand: "elf", NormalPrice: 35},
			{ID: 10, ProductName: "Sunscreen", ProductCategory: "summer", Brand: "sol", NormalPrice: 15},
			{ID: 11, ProductName: "Laptop", ProductCategory: "electronics", Brand: "byte", NormalPrice: 900, SalePrice: 850},
		},
		pairs: []domain.ProductPair{
			{ProductA: 1, ProductB: 2, OrderCount: 5},
			{ProductA: 1, ProductB: 3, OrderCount: 3},
			{ProductA: 1, ProductB: 4, OrderCount: 2},
			{ProductA: 6, ProductB: 7, OrderCount: 4},
			{ProductA: 9, ProductB: 10, OrderCount: 1},
		},
	}
}

func newTestService(catalog *fakeCatalog, profiles *fakeProfiles, log *fakeLogger) *bundleService {
	svc := NewBundleService(profiles, log, Registry(catalog, testConfig), testConfig)
	svc.now = func() time.Time { return december }
	return svc
}

func TestGenerate_PricingInvariantsHoldForEveryBundle(t *testing.T) {
	profile := &domain.BehaviorProfile{
		UserID:                 7,
		PreferredCategories:    []string{"shoes", "winter_clothing"},
		PreferredBrands:        []string{"acme"},
		PriceSensitivity:       0.8,
		AvgOrderValue:          500,
		ShoppingFrequency:      domain.FrequencyDaily,
		AvgSessionDuration:     60,
		CustomerLifecycleStage: domain.LifecycleLoyal,
	}
	svc := newTestService(catalogFixture(), &fakeProfiles{profile: profile}, &fakeLogger{})
	uid := uint(7)

	batch, results, err := svc.Generate(context.Background(), domain.BundleRequest{
		UserID: &uid, SessionID: "s", CartItems: []uint64{2}, Limit: 100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, batch.Bundles)

	seen := map[domain.Archetype]bool{}
	for _, b := range batch.Bundles {
		seen[b.Archetype] = true
		assert.GreaterOrEqual(t, len(b.ProductIDs), 2)

		wantDiscount := domain.DefaultBundleDiscount
		if b.Archetype == domain.ArchetypePromotional {
			wantDiscount = domain.PromotionalBundleDiscount
			assert.Equal(t, 0.9, b.RecommendationScore)
		}
		assert.Equal(t, wantDiscount, b.DiscountPercentage)
		assert.InDelta(t, b.IndividualPrice*(1-b.DiscountPercentage/100), b.BundlePrice, 1e-9)
		assert.InDelta(t, b.IndividualPrice-b.BundlePrice, b.SavingsAmount, 1e-9)
		assert.LessOrEqual(t, b.ExpectedConversionRate, domain.MaxExpectedConversionRate)
		assert.InDelta(t, b.BundlePrice*b.ExpectedConversionRate, b.ExpectedRevenue, 1e-9)
		assert.GreaterOrEqual(t, b.RecommendationScore, 0.0)
		assert.LessOrEqual(t, b.RecommendationScore, 1.0)
		assert.LessOrEqual(t, b.ConfidenceScore, 1.0)
	}
	for i := 1; i < len(batch.Bundles); i++ {
		assert.GreaterOrEqual(t, batch.Bundles[i-1].RecommendationScore, batch.Bundles[i].RecommendationScore)
	}

	assert.Len(t, results, 5)
	for _, a := range []domain.Archetype{
		domain.ArchetypeComplementary, domain.ArchetypeSeasonal, domain.ArchetypePromotional,
		domain.ArchetypeCrossSell, domain.ArchetypeUpsell,
	} {
		assert.True(t, seen[a], "missing archetype %s", a)
	}
}

func TestGenerate_CrossSellExcludesCartItem(t *testing.T) {
	svc := newTestService(catalogFixture(), &fakeProfiles{}, &fakeLogger{})

	batch, _, err := svc.Generate(context.Background(), domain.BundleRequest{
		SessionID: "s", CartItems: []uint64{1}, Limit: 100,
	})
	require.NoError(t, err)

	var crossSell []domain.BundleCandidate
	for _, b := range batch.Bundles {
		if b.Archetype == domain.ArchetypeCrossSell {
			crossSell = append(crossSell, b)
		}
	}
	require.NotEmpty(t, crossSell)
	shoes := map[uint64]bool{2: true, 3: true, 4: true}
	for _, b := range crossSell {
		assert.GreaterOrEqual(t, len(b.ProductIDs), 2)
		for _, id := range b.ProductIDs {
			assert.NotEqual(t, uint64(1), id)
			assert.True(t, shoes[id], "product %d is not in the cart item's category", id)
		}
	}
}

func TestGenerate_CrossSellNeedsCart(t *testing.T) {
	svc := newTestService(catalogFixture(), &fakeProfiles{}, &fakeLogger{})

	_, results, err := svc.Generate(context.Background(), domain.BundleRequest{SessionID: "s"})
	require.NoError(t, err)

	for _, r := range results {
		if r.Archetype == domain.ArchetypeCrossSell {
			assert.NoError(t, r.Err)
			assert.Empty(t, r.Bundles)
			assert.NotEmpty(t, r.Reason)
		}
	}
}

func TestGenerate_DecemberSeasonalCategories(t *testing.T) {
	catalog := catalogFixture()
	svc := newTestService(catalog, &fakeProfiles{}, &fakeLogger{})

	batch, _, err := svc.Generate(context.Background(), domain.BundleRequest{SessionID: "s", Limit: 100})
	require.NoError(t, err)

	allowed := map[string]bool{"winter_clothing": true, "christmas": true, "holiday_gifts": true}
	for _, c := range catalog.seasonalAsked {
		assert.True(t, allowed[c], "unexpected seasonal category %s", c)
	}

	categoryOf := map[uint64]string{}
	for _, p := range catalog.products {
		categoryOf[p.ID] = p.ProductCategory
	}
	var seasonal int
	for _, b := range batch.Bundles {
		if b.Archetype != domain.ArchetypeSeasonal {
			continue
		}
		seasonal++
		for _, id := range b.ProductIDs {
			assert.True(t, allowed[categoryOf[id]])
		}
	}
	assert.Equal(t, 2, seasonal)
}

func TestGenerate_FailingArchetypeIsIsolated(t *testing.T) {
	catalog := catalogFixture()
	catalog.errs = map[string]error{"CoOccurringProducts": errors.New("order store down")}
	svc := newTestService(catalog, &fakeProfiles{}, &fakeLogger{})

	batch, results, err := svc.Generate(context.Background(), domain.BundleRequest{SessionID: "s", Limit: 100})
	require.NoError(t, err)

	for _, r := range results {
		if r.Archetype == domain.ArchetypeComplementary {
			assert.Error(t, r.Err)
			assert.NotEmpty(t, r.Reason)
		} else {
			assert.NoError(t, r.Err)
		}
	}
	assert.NotEmpty(t, batch.Bundles)
	for _, b := range batch.Bundles {
		assert.NotEqual(t, domain.ArchetypeComplementary, b.Archetype)
	}
}

type panickingArchetype struct{}

func (panickingArchetype) Name() domain.Archetype        { return "broken" }
func (panickingArchetype) Discount() float64             { return 15 }
func (panickingArchetype) ConversionMultiplier() float64 { return 1 }
func (panickingArchetype) GenerateCandidates(ctx context.Context, in Input) ([]Candidate, error) {
	panic("boom")
}

func TestGenerate_PanickingArchetypeIsIsolated(t *testing.T) {
	catalog := catalogFixture()
	archetypes := append(Registry(catalog, testConfig), panickingArchetype{})
	svc := NewBundleService(&fakeProfiles{}, &fakeLogger{}, archetypes, testConfig)

	batch, results, err := svc.Generate(context.Background(), domain.BundleRequest{SessionID: "s", Now: december})
	require.NoError(t, err)
	assert.NotEmpty(t, batch.Bundles)
	assert.Error(t, results[len(results)-1].Err)
}

func TestGenerate_LogsBatchAndTruncates(t *testing.T) {
	log := &fakeLogger{}
	svc := newTestService(catalogFixture(), &fakeProfiles{}, log)

	batch, _, err := svc.Generate(context.Background(), domain.BundleRequest{SessionID: "s", Limit: 2})
	require.NoError(t, err)

	assert.Len(t, batch.Bundles, 2)
	assert.Equal(t, "bundle-log", batch.LogID)
	require.Len(t, log.entries, 1)
	assert.Equal(t, domain.FeedbackBundle, log.entries[0].Kind)
	assert.Equal(t, 2, log.entries[0].ItemCount)
	require.NotNil(t, batch.ExpiresAt)
	assert.Equal(t, december.Add(time.Hour), *batch.ExpiresAt)
}

func TestGetBundles_DegradesOnLogFailure(t *testing.T) {
	svc := newTestService(catalogFixture(), &fakeProfiles{}, &fakeLogger{err: errors.New("insert failed")})

	batch, err := svc.GetBundles(context.Background(), domain.BundleRequest{SessionID: "s"})
	require.NoError(t, err)
	assert.NotNil(t, batch.Bundles)
	assert.Empty(t, batch.Bundles)
}

func TestGetBundles_Validation(t *testing.T) {
	svc := newTestService(catalogFixture(), &fakeProfiles{}, &fakeLogger{})

	_, err := svc.GetBundles(context.Background(), domain.BundleRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.GetBundles(context.Background(), domain.BundleRequest{SessionID: "s", Limit: -3})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerate_ProfileLookupFailureStillServes(t *testing.T) {
	svc := newTestService(catalogFixture(), &fakeProfiles{err: errors.New("cache and db down")}, &fakeLogger{})
	uid := uint(3)

	batch, _, err := svc.Generate(context.Background(), domain.BundleRequest{UserID: &uid, SessionID: "s"})
	require.NoError(t, err)
	assert.NotEmpty(t, batch.Bundles)
}
