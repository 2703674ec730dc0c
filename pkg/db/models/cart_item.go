package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
)

// CartItem is one (variant, seller) line owned by a Cart. It keeps only the
// parent id, never a back-pointer to the cart record.
type CartItem struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CartID               uuid.UUID                `gorm:"column:cart_id;type:uuid;not null;index"`
	VariantID            uuid.UUID                `gorm:"column:variant_id;type:uuid;not null"`
	SellerID             uuid.UUID                `gorm:"column:seller_id;type:uuid;not null"`
	Position             int                      `gorm:"column:position;not null;default:0"`
	Quantity             int                      `gorm:"column:quantity;not null"`
	UnitPrice            decimal.Decimal          `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CurrentUnitPrice     decimal.Decimal          `gorm:"column:current_unit_price;type:numeric(12,2);not null"`
	PriceChanged         bool                     `gorm:"column:price_changed;not null;default:false"`
	LineTotal            decimal.Decimal          `gorm:"column:line_total;type:numeric(12,2);not null;default:0"`
	DiscountAmount       decimal.Decimal          `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	ReservationID        *uuid.UUID               `gorm:"column:reservation_id;type:uuid"`
	ReservationExpiresAt *time.Time               `gorm:"column:reservation_expires_at"`
	Available            bool                     `gorm:"column:available;not null;default:true"`
	AvailabilityReason   enums.AvailabilityReason `gorm:"column:availability_reason;not null;default:'IN_STOCK'"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
