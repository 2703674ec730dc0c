package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/internal/promotion"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
)

var oneHundred = decimal.NewFromInt(100)

// PriceChange reports a line whose current price drifted from the price
// captured at add time. Surfaced to the caller, never blocks the operation.
type PriceChange struct {
	ItemID    uuid.UUID
	VariantID uuid.UUID
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
}

// Result carries the side-channel outputs of a pricing pass.
type Result struct {
	PriceChanges []PriceChange
}

// Pipeline recomputes a cart's monetary totals: refreshed line prices,
// discount attribution, tax per tax-category group, shipping per seller
// group, and the clamped grand total.
type Pipeline struct {
	prices   catalog.PriceLookup
	taxes    catalog.TaxRateProvider
	shipping catalog.ShippingRateProvider
	log      *logger.Logger
}

// NewPipeline constructs the pricing pipeline.
func NewPipeline(prices catalog.PriceLookup, taxes catalog.TaxRateProvider, shipping catalog.ShippingRateProvider, log *logger.Logger) (*Pipeline, error) {
	if prices == nil {
		return nil, fmt.Errorf("price lookup is required")
	}
	if taxes == nil {
		return nil, fmt.Errorf("tax rate provider is required")
	}
	if shipping == nil {
		return nil, fmt.Errorf("shipping rate provider is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Pipeline{prices: prices, taxes: taxes, shipping: shipping, log: log}, nil
}

// WithPrices returns a pipeline reading from the provided lookup, used to
// scope price reads to the caller's transaction.
func (p *Pipeline) WithPrices(prices catalog.PriceLookup) *Pipeline {
	if prices == nil {
		return p
	}
	clone := *p
	clone.prices = prices
	return &clone
}

// Recompute refreshes every line from the price adapter and rewrites the
// cart's totals in place. The discounts argument is the outcome of the
// promotion application pass for the same snapshot.
func (p *Pipeline) Recompute(ctx context.Context, cart *models.Cart, discounts *promotion.ApplyOutcome) (*Result, error) {
	result := &Result{}
	infoByVariant := make(map[uuid.UUID]*catalog.PriceInfo, len(cart.Items))

	subtotal := decimal.Zero
	for i := range cart.Items {
		item := &cart.Items[i]

		info, err := p.prices.GetCurrentPrice(ctx, item.VariantID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				// Variant gone from the catalog: keep the last known price
				// and flag the line, the cart itself stays usable.
				item.Available = false
				item.AvailabilityReason = enums.AvailabilityUnavailable
			} else {
				return nil, err
			}
		} else {
			infoByVariant[item.VariantID] = info
			if !info.UnitPrice.Equal(item.CurrentUnitPrice) && !info.UnitPrice.Equal(item.UnitPrice) {
				result.PriceChanges = append(result.PriceChanges, PriceChange{
					ItemID:    item.ID,
					VariantID: item.VariantID,
					OldPrice:  item.UnitPrice,
					NewPrice:  info.UnitPrice,
				})
			}
			item.CurrentUnitPrice = info.UnitPrice
			item.PriceChanged = !info.UnitPrice.Equal(item.UnitPrice)
		}

		item.LineTotal = item.CurrentUnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
	}

	discountTotal := decimal.Zero
	lineDiscounts := map[uuid.UUID]decimal.Decimal{}
	if discounts != nil {
		discountTotal = discounts.TotalDiscount
		lineDiscounts = discounts.LineDiscounts
	}
	// Excess discount is truncated: the grand total never goes negative.
	if discountTotal.GreaterThan(subtotal) {
		discountTotal = subtotal
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		lineDiscount := lineDiscounts[item.ID]
		if lineDiscount.GreaterThan(item.LineTotal) {
			lineDiscount = item.LineTotal
		}
		item.DiscountAmount = lineDiscount
	}

	tax, err := p.computeTax(ctx, cart, infoByVariant)
	if err != nil {
		return nil, err
	}
	shipping, err := p.computeShipping(ctx, cart)
	if err != nil {
		return nil, err
	}

	grand := subtotal.Sub(discountTotal).Add(tax).Add(shipping)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	cart.SubtotalAmount = subtotal
	cart.DiscountAmount = discountTotal
	cart.TaxAmount = tax
	cart.ShippingAmount = shipping
	cart.GrandTotal = grand
	return result, nil
}

// computeTax groups lines by tax category and applies the provider rate to
// each group's discounted total.
func (p *Pipeline) computeTax(ctx context.Context, cart *models.Cart, infoByVariant map[uuid.UUID]*catalog.PriceInfo) (decimal.Decimal, error) {
	bases := map[enums.TaxCategory]decimal.Decimal{}
	var order []enums.TaxCategory
	for i := range cart.Items {
		item := &cart.Items[i]
		category := enums.TaxCategoryStandard
		if info, ok := infoByVariant[item.VariantID]; ok {
			category = info.TaxCategory
		}
		if _, seen := bases[category]; !seen {
			order = append(order, category)
		}
		base := item.LineTotal.Sub(item.DiscountAmount)
		if base.IsNegative() {
			base = decimal.Zero
		}
		bases[category] = bases[category].Add(base)
	}

	total := decimal.Zero
	for _, category := range order {
		rate, err := p.taxes.GetRate(ctx, category, cart.ShippingAddress)
		if err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "tax rate lookup")
		}
		total = total.Add(bases[category].Mul(rate).Div(oneHundred).Round(2))
	}
	return total, nil
}

// computeShipping groups lines by seller and sums the provider fee per group.
func (p *Pipeline) computeShipping(ctx context.Context, cart *models.Cart) (decimal.Decimal, error) {
	type group struct {
		count    int
		subtotal decimal.Decimal
	}
	groups := map[uuid.UUID]*group{}
	var order []uuid.UUID
	for i := range cart.Items {
		item := &cart.Items[i]
		g, ok := groups[item.SellerID]
		if !ok {
			g = &group{}
			groups[item.SellerID] = g
			order = append(order, item.SellerID)
		}
		g.count++
		g.subtotal = g.subtotal.Add(item.LineTotal)
	}

	total := decimal.Zero
	for _, sellerID := range order {
		g := groups[sellerID]
		fee, err := p.shipping.Calculate(ctx, catalog.ShippingInput{
			SellerID:    sellerID,
			ItemCount:   g.count,
			Subtotal:    g.subtotal,
			Destination: cart.ShippingAddress,
		})
		if err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shipping rate lookup")
		}
		total = total.Add(fee)
	}
	return total, nil
}
