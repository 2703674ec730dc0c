package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartCreatedEvent is emitted when a cart comes into existence.
type CartCreatedEvent struct {
	CartID uuid.UUID `json:"cartId"`
	Owner  string    `json:"owner"`
}

// CartItemEvent covers item added/updated/removed mutations.
type CartItemEvent struct {
	CartID    uuid.UUID `json:"cartId"`
	ItemID    uuid.UUID `json:"itemId"`
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
}

// PromotionsAppliedEvent lists the promotions surviving an application pass.
type PromotionsAppliedEvent struct {
	CartID        uuid.UUID       `json:"cartId"`
	Codes         []string        `json:"codes"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
}

// PriceChangedEvent is emitted when a refreshed line price differs from the
// price captured at add time.
type PriceChangedEvent struct {
	CartID     uuid.UUID       `json:"cartId"`
	ItemID     uuid.UUID       `json:"itemId"`
	VariantID  uuid.UUID       `json:"variantId"`
	OldPrice   decimal.Decimal `json:"oldPrice"`
	NewPrice   decimal.Decimal `json:"newPrice"`
	DetectedAt time.Time       `json:"detectedAt"`
}

// CartMergedEvent is emitted on the surviving cart after a guest merge.
type CartMergedEvent struct {
	CartID      uuid.UUID `json:"cartId"`
	SourceCart  uuid.UUID `json:"sourceCartId"`
	FailedLines int       `json:"failedLines"`
}

// CartConvertedEvent is emitted when an order is created from the cart.
type CartConvertedEvent struct {
	CartID  uuid.UUID `json:"cartId"`
	OrderID uuid.UUID `json:"orderId"`
}

// CartStatusEvent covers expiry/abandonment sweeps.
type CartStatusEvent struct {
	CartID    uuid.UUID `json:"cartId"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// ReservationExpiredEvent is emitted by the reservation sweep.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	VariantID     uuid.UUID `json:"variantId"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expiredAt"`
}
