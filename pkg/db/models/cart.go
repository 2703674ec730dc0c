package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/types"
)

// Cart is the mutable shopping cart aggregate. Totals are always recomputed
// from items by the pricing pipeline, never patched independently.
type Cart struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID         `gorm:"column:user_id;type:uuid;index"`
	SessionID       *string            `gorm:"column:session_id;index"`
	Status          enums.CartStatus   `gorm:"column:status;not null;default:'active'"`
	Currency        enums.Currency     `gorm:"column:currency;not null;default:'USD'"`
	SubtotalAmount  decimal.Decimal    `gorm:"column:subtotal_amount;type:numeric(12,2);not null;default:0"`
	DiscountAmount  decimal.Decimal    `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TaxAmount       decimal.Decimal    `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingAmount  decimal.Decimal    `gorm:"column:shipping_amount;type:numeric(12,2);not null;default:0"`
	GrandTotal      decimal.Decimal    `gorm:"column:grand_total;type:numeric(12,2);not null;default:0"`
	ShippingAddress *types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	ExpiresAt       time.Time          `gorm:"column:expires_at;not null"`
	LastActivityAt  time.Time          `gorm:"column:last_activity_at;not null"`
	Version         int                `gorm:"column:version;not null;default:1"`
	Items           []CartItem         `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Promotions      []AppliedPromotion `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Owner reconstructs the owner reference from the stored columns.
func (c Cart) Owner() types.OwnerRef {
	return types.OwnerRef{UserID: c.UserID, SessionID: c.SessionID}
}
