package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
)

// VariantStock backs the price lookup adapter and the reserved counter. The
// catalog that authors these rows is an external collaborator; this engine
// only reads prices and mutates ReservedQty.
type VariantStock struct {
	VariantID   uuid.UUID         `gorm:"column:variant_id;type:uuid;primaryKey"`
	ProductID   uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	CategoryID  uuid.UUID         `gorm:"column:category_id;type:uuid;not null"`
	TaxCategory enums.TaxCategory `gorm:"column:tax_category;not null;default:'standard'"`
	UnitPrice   decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	StockQty    int               `gorm:"column:stock_qty;not null;default:0"`
	ReservedQty int               `gorm:"column:reserved_qty;not null;default:0"`
	Active      bool              `gorm:"column:active;not null;default:true"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
