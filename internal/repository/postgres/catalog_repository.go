package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"myMarketplace/business/bundle"
	"myMarketplace/business/recommendation"
	"myMarketplace/domain"
)

// effectivePrice mirrors domain.Product.Price in SQL.
const effectivePrice = "COALESCE(NULLIF(products.sale_price, 0), products.normal_price)"

// CatalogRepository issues read-only queries against products and order items.
type CatalogRepository struct {
	DB *gorm.DB
}

var (
	_ bundle.Catalog               = (*CatalogRepository)(nil)
	_ recommendation.CatalogReader = (*CatalogRepository)(nil)
)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{
		DB: db,
	}
}

func (r *CatalogRepository) active(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&domain.Product{}).Where("products.is_active = ?", true)
}

func (r *CatalogRepository) FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	var products []domain.Product
	err := r.active(ctx).Where("products.id IN ?", ids).Order("products.id ASC").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}

	return products, nil
}

// FindByPreferences filters by category or brand and by the optional price
// band, then ranks by match strength so the limit keeps the strongest matches.
func (r *CatalogRepository) FindByPreferences(ctx context.Context, q domain.PreferenceQuery) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if len(q.Categories) == 0 && len(q.Brands) == 0 {
		return nil, nil
	}

	match := r.DB.Where("1 = 0")
	strength := []string{"0"}
	var vars []interface{}
	if len(q.Categories) > 0 {
		match = match.Or("products.product_category IN ?", q.Categories)
		strength = append(strength, "CASE WHEN products.product_category IN ? THEN 3 ELSE 0 END")
		vars = append(vars, q.Categories)
	}
	if len(q.Brands) > 0 {
		match = match.Or("products.brand IN ?", q.Brands)
		strength = append(strength, "CASE WHEN products.brand IN ? THEN 2 ELSE 0 END")
		vars = append(vars, q.Brands)
	}

	db := r.active(ctx).Where(match)
	if q.Price != nil {
		if q.Price.Above > 0 {
			db = db.Where(effectivePrice+" > ?", q.Price.Above)
		}
		if q.Price.Below > 0 {
			db = db.Where(effectivePrice+" < ?", q.Price.Below)
		}
	}

	order := clause.Expr{
		SQL:  "(" + strings.Join(strength, " + ") + ") DESC, products.id ASC",
		Vars: vars,
	}

	var products []domain.Product
	err := db.Clauses(clause.OrderBy{Expression: order}).Limit(q.Limit).Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find products by preference: %w", err)
	}

	return products, nil
}

func (r *CatalogRepository) ProductsByCategory(ctx context.Context, category string, excludeIDs []uint64, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.active(ctx).Where("products.product_category = ?", category)
	if len(excludeIDs) > 0 {
		q = q.Where("products.id NOT IN ?", excludeIDs)
	}

	var products []domain.Product
	if err := q.Order("products.id ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find products by category: %w", err)
	}

	return products, nil
}

// ProductsByPriceRange returns products priced strictly above minPrice, most
// expensive first. An empty category list searches the whole catalog.
func (r *CatalogRepository) ProductsByPriceRange(ctx context.Context, categories []string, minPrice float64, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.active(ctx).Where(effectivePrice+" > ?", minPrice)
	if len(categories) > 0 {
		q = q.Where("products.product_category IN ?", categories)
	}

	var products []domain.Product
	if err := q.Order(effectivePrice + " DESC, products.id ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to find products by price: %w", err)
	}

	return products, nil
}

// CoOccurringProducts counts, for every product pair, the distinct orders
// since the given time that contained both.
func (r *CatalogRepository) CoOccurringProducts(ctx context.Context, since time.Time, minOrders int) ([]domain.ProductPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	const query = `
SELECT a.product_id AS product_a,
       b.product_id AS product_b,
       COUNT(DISTINCT a.order_id) AS order_count
FROM order_items a
JOIN order_items b ON a.order_id = b.order_id AND a.product_id < b.product_id
WHERE a.created_at >= ?
GROUP BY a.product_id, b.product_id
HAVING COUNT(DISTINCT a.order_id) >= ?
ORDER BY order_count DESC, product_a ASC, product_b ASC`

	var pairs []domain.ProductPair
	if err := r.DB.WithContext(ctx).Raw(query, since, minOrders).Scan(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to mine co-occurring products: %w", err)
	}

	return pairs, nil
}

// TopViewedProducts ranks a category's products by product views since the
// given time.
func (r *CatalogRepository) TopViewedProducts(ctx context.Context, category string, since time.Time, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var products []domain.Product
	err := r.active(ctx).
		Select("products.*").
		Joins("JOIN activity_events ON activity_events.product_id = products.id").
		Where("products.product_category = ?", category).
		Where("activity_events.activity_type = ? AND activity_events.occurred_at >= ?", domain.ActivityProductView, since).
		Group("products.id").
		Order("COUNT(activity_events.id) DESC, products.id ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank viewed products: %w", err)
	}

	return products, nil
}
