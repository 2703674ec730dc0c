package models

import (
	"time"

	"github.com/google/uuid"
)

// PromotionUsage backs the catalog's usage counters, one row per redemption.
type PromotionUsage struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PromotionID uuid.UUID  `gorm:"column:promotion_id;type:uuid;not null;index"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
