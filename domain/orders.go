package domain

// ProductPair counts the distinct orders that contained both products.
type ProductPair struct {
	ProductA   uint64 `gorm:"column:product_a" json:"product_a"`
	ProductB   uint64 `gorm:"column:product_b" json:"product_b"`
	OrderCount int64  `gorm:"column:order_count" json:"order_count"`
}

// ProductPopularity counts qualifying interactions for one product.
type ProductPopularity struct {
	ProductID    uint64 `gorm:"column:product_id" json:"product_id"`
	Interactions int64  `gorm:"column:interactions" json:"interactions"`
}
