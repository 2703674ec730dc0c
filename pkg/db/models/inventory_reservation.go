package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marketloop/cartengine/pkg/enums"
)

// InventoryReservation is a stock hold against a variant. Soft holds
// (ref type cart) carry an expiry; hard holds (ref type order) do not.
type InventoryReservation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	VariantID  uuid.UUID               `gorm:"column:variant_id;type:uuid;not null;index"`
	Quantity   int                     `gorm:"column:quantity;not null"`
	RefType    enums.ReservationRef    `gorm:"column:ref_type;not null"`
	RefID      uuid.UUID               `gorm:"column:ref_id;type:uuid;not null;index"`
	CartItemID *uuid.UUID              `gorm:"column:cart_item_id;type:uuid;index"`
	Status     enums.ReservationStatus `gorm:"column:status;not null;default:'active'"`
	ExpiresAt  *time.Time              `gorm:"column:expires_at;index"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
