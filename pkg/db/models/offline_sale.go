package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/pkg/enums"
)

// SaleItem is one line of an offline sale. Price is deliberately absent:
// the backend resolves prices at reconciliation time so a stale cache can
// never fix the charged amount.
type SaleItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// SyncedSaleData is the authoritative backend result stored once a sale is
// synced. The locally computed total is never trusted after this exists.
type SyncedSaleData struct {
	InvoiceNumber string          `json:"invoice_number"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// OfflineSale is the unit of durability: one queued sale awaiting
// reconciliation with the backend. LocalSaleID doubles as the idempotency
// key the backend dedupes on.
type OfflineSale struct {
	LocalSaleID     uuid.UUID           `gorm:"column:local_sale_id;type:uuid;primaryKey" json:"local_sale_id"`
	CreatedAt       time.Time           `gorm:"column:created_at;not null;index" json:"created_at"`
	Items           []SaleItem          `gorm:"column:items;serializer:json;not null" json:"items"`
	DiscountAmount  decimal.Decimal     `gorm:"column:discount_amount;type:numeric;not null" json:"discount_amount"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null" json:"payment_method"`
	PaymentReceived decimal.Decimal     `gorm:"column:payment_received;type:numeric;not null" json:"payment_received"`
	GrandTotal      decimal.Decimal     `gorm:"column:grand_total;type:numeric;not null" json:"grand_total"`
	Status          enums.SaleStatus    `gorm:"column:status;not null;index" json:"status"`
	ErrorMessage    string              `gorm:"column:error_message" json:"error_message,omitempty"`
	ServerData      *SyncedSaleData     `gorm:"column:server_data;serializer:json" json:"server_data,omitempty"`
}

func (OfflineSale) TableName() string {
	return "offline_sales"
}
