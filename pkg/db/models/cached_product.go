package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CachedProduct is a read-mostly snapshot of a sellable item, refreshed
// wholesale from the backend while online. It is a browsing fallback only;
// it is never authoritative for stock.
type CachedProduct struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	SKU           string          `gorm:"column:sku;not null" json:"sku"`
	Barcode       string          `gorm:"column:barcode" json:"barcode"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric;not null" json:"price"`
	StockQuantity int             `gorm:"column:stock_quantity;not null" json:"stock_quantity"`
	CachedAt      time.Time       `gorm:"column:cached_at;not null" json:"cached_at"`
}

func (CachedProduct) TableName() string {
	return "cached_products"
}
