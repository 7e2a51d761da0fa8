package domain

import (
	"time"
)

// CREATE TABLE public.products (
//     id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     product_skuid   BIGINT,
//     product_name    TEXT,
//     product_category TEXT,
//     brand           TEXT,
//     normal_price    NUMERIC,
//     sale_price      NUMERIC,
//     quantity        NUMERIC,
//     is_active       BOOLEAN DEFAULT true,
//     created_at      TIMESTAMPTZ DEFAULT NOW()
// );

type Product struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductSKUID    uint64    `gorm:"column:product_skuid" json:"product_skuid"`
	ProductName     string    `gorm:"column:product_name;type:text" json:"product_name"`
	ProductCategory string    `gorm:"column:product_category;type:text;index" json:"product_category"`
	Brand           string    `gorm:"column:brand;type:text;index" json:"brand"`
	NormalPrice     float64   `gorm:"column:normal_price;type:numeric" json:"normal_price"`
	SalePrice       float64   `gorm:"column:sale_price;type:numeric" json:"sale_price"`
	Quantity        float64   `gorm:"column:quantity;type:numeric" json:"quantity"`
	IsActive        bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

// Price is what a buyer pays today: the sale price when one is set.
func (p Product) Price() float64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.NormalPrice
}
