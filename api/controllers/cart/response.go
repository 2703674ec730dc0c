package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/marketloop/cartengine/internal/cart"
	"github.com/marketloop/cartengine/pkg/db/models"
)

// CartView is the API projection of a cart aggregate.
type CartView struct {
	ID         uuid.UUID       `json:"id"`
	Status     string          `json:"status"`
	Currency   string          `json:"currency"`
	Items      []ItemView      `json:"items"`
	Promotions []PromotionView `json:"promotions"`
	Totals     TotalsView      `json:"totals"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Version    int             `json:"version"`
}

type ItemView struct {
	ID                   uuid.UUID       `json:"id"`
	VariantID            uuid.UUID       `json:"variantId"`
	SellerID             uuid.UUID       `json:"sellerId"`
	Quantity             int             `json:"quantity"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	CurrentUnitPrice     decimal.Decimal `json:"currentUnitPrice"`
	PriceChanged         bool            `json:"priceChanged"`
	LineTotal            decimal.Decimal `json:"lineTotal"`
	DiscountAmount       decimal.Decimal `json:"discountAmount"`
	Available            bool            `json:"available"`
	AvailabilityReason   string          `json:"availabilityReason"`
	ReservationExpiresAt *time.Time      `json:"reservationExpiresAt,omitempty"`
}

type PromotionView struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discountType"`
	Amount       decimal.Decimal `json:"amount"`
	Stackable    bool            `json:"stackable"`
}

type TotalsView struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// MergeView reports the merge outcome alongside the surviving cart.
type MergeView struct {
	Cart        CartView          `json:"cart"`
	FailedLines []MergeFailedLine `json:"failedLines"`
}

type MergeFailedLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

func newCartView(cart *models.Cart) CartView {
	view := CartView{
		ID:         cart.ID,
		Status:     cart.Status.String(),
		Currency:   cart.Currency.String(),
		Items:      make([]ItemView, 0, len(cart.Items)),
		Promotions: make([]PromotionView, 0, len(cart.Promotions)),
		Totals: TotalsView{
			Subtotal:   cart.SubtotalAmount,
			Discount:   cart.DiscountAmount,
			Tax:        cart.TaxAmount,
			Shipping:   cart.ShippingAmount,
			GrandTotal: cart.GrandTotal,
		},
		ExpiresAt: cart.ExpiresAt,
		Version:   cart.Version,
	}
	for _, item := range cart.Items {
		view.Items = append(view.Items, ItemView{
			ID:                   item.ID,
			VariantID:            item.VariantID,
			SellerID:             item.SellerID,
			Quantity:             item.Quantity,
			UnitPrice:            item.UnitPrice,
			CurrentUnitPrice:     item.CurrentUnitPrice,
			PriceChanged:         item.PriceChanged,
			LineTotal:            item.LineTotal,
			DiscountAmount:       item.DiscountAmount,
			Available:            item.Available,
			AvailabilityReason:   string(item.AvailabilityReason),
			ReservationExpiresAt: item.ReservationExpiresAt,
		})
	}
	// Per-line rows share the code of their promotion; fold them into one
	// entry per code with the summed amount.
	index := map[string]int{}
	for _, promo := range cart.Promotions {
		if at, ok := index[promo.Code]; ok {
			view.Promotions[at].Amount = view.Promotions[at].Amount.Add(promo.Amount)
			continue
		}
		index[promo.Code] = len(view.Promotions)
		view.Promotions = append(view.Promotions, PromotionView{
			Code:         promo.Code,
			DiscountType: string(promo.DiscountType),
			Amount:       promo.Amount,
			Stackable:    promo.Stackable,
		})
	}
	return view
}

func newMergeView(result *cartsvc.MergeResult) MergeView {
	view := MergeView{
		Cart:        newCartView(result.Cart),
		FailedLines: make([]MergeFailedLine, 0, len(result.Failures)),
	}
	for _, failure := range result.Failures {
		view.FailedLines = append(view.FailedLines, MergeFailedLine{
			VariantID: failure.VariantID,
			Quantity:  failure.Quantity,
			Reason:    failure.Reason,
		})
	}
	return view
}
