package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
)

// AppliedPromotion records one promotion's effect on a cart for the current
// pricing pass. Rows are deleted and recreated on every application pass,
// never mutated in place.
type AppliedPromotion struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CartID              uuid.UUID          `gorm:"column:cart_id;type:uuid;not null;index"`
	CartItemID          *uuid.UUID         `gorm:"column:cart_item_id;type:uuid"`
	PromotionID         uuid.UUID          `gorm:"column:promotion_id;type:uuid;not null"`
	Code                string             `gorm:"column:code;not null"`
	DiscountType        enums.DiscountType `gorm:"column:discount_type;not null"`
	Amount              decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Priority            int                `gorm:"column:priority;not null;default:0"`
	Stackable           bool               `gorm:"column:stackable;not null;default:false"`
	EligibilitySnapshot json.RawMessage    `gorm:"column:eligibility_snapshot;type:jsonb"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
}
