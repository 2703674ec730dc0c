package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/types"
)

// Promotion is the read-mostly rule owned by the external promotion catalog.
type Promotion struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Code              string               `gorm:"column:code;uniqueIndex;not null"`
	Name              string               `gorm:"column:name;not null"`
	Scope             enums.PromotionScope `gorm:"column:scope;not null;default:'global'"`
	ScopeRefs         types.UUIDList       `gorm:"column:scope_refs;type:jsonb;serializer:json"`
	DiscountType      enums.DiscountType   `gorm:"column:discount_type;not null"`
	Value             decimal.Decimal      `gorm:"column:value;type:numeric(12,2);not null"`
	BuyQuantity       int                  `gorm:"column:buy_quantity;not null;default:0"`
	GetQuantity       int                  `gorm:"column:get_quantity;not null;default:0"`
	MinOrderAmount    *decimal.Decimal     `gorm:"column:min_order_amount;type:numeric(12,2)"`
	MaxDiscountAmount *decimal.Decimal     `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	UsageLimit        *int                 `gorm:"column:usage_limit"`
	PerUserLimit      *int                 `gorm:"column:per_user_limit"`
	RequiresCode      bool                 `gorm:"column:requires_code;not null;default:false"`
	Stackable         bool                 `gorm:"column:stackable;not null;default:false"`
	Priority          int                  `gorm:"column:priority;not null;default:0"`
	StartsAt          time.Time            `gorm:"column:starts_at;not null"`
	EndsAt            time.Time            `gorm:"column:ends_at;not null"`
	Active            bool                 `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// InWindow reports whether the promotion is valid at the given instant.
func (p Promotion) InWindow(now time.Time) bool {
	if !p.StartsAt.IsZero() && now.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && now.After(p.EndsAt) {
		return false
	}
	return true
}
