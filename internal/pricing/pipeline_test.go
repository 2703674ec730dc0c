package pricing

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/internal/promotion"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
)

type stubPrices struct {
	infos map[uuid.UUID]*catalog.PriceInfo
}

func (s stubPrices) GetCurrentPrice(ctx context.Context, variantID uuid.UUID) (*catalog.PriceInfo, error) {
	if info, ok := s.infos[variantID]; ok {
		return info, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
}

func (s stubPrices) GetAvailableQuantity(ctx context.Context, variantID uuid.UUID) (int, error) {
	return 0, nil
}

func testPipeline(t *testing.T, prices stubPrices) *Pipeline {
	t.Helper()
	taxes := catalog.StaticTaxRates{Rates: map[enums.TaxCategory]decimal.Decimal{
		enums.TaxCategoryStandard: decimal.NewFromInt(10),
		enums.TaxCategoryExempt:   decimal.Zero,
	}}
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	pipeline, err := NewPipeline(prices, taxes, catalog.NewFlatShipping(decimal.NewFromInt(5)), log)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return pipeline
}

func priceInfo(variantID uuid.UUID, price float64, category enums.TaxCategory) *catalog.PriceInfo {
	return &catalog.PriceInfo{
		VariantID:   variantID,
		ProductID:   uuid.New(),
		SellerID:    uuid.New(),
		CategoryID:  uuid.New(),
		TaxCategory: category,
		UnitPrice:   decimal.NewFromFloat(price),
	}
}

func cartItem(variantID, sellerID uuid.UUID, price float64, qty int) models.CartItem {
	p := decimal.NewFromFloat(price)
	return models.CartItem{
		ID:               uuid.New(),
		VariantID:        variantID,
		SellerID:         sellerID,
		Quantity:         qty,
		UnitPrice:        p,
		CurrentUnitPrice: p,
		Available:        true,
	}
}

func TestRecomputeTotalsInvariant(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	seller := uuid.New()
	info := priceInfo(variant, 100, enums.TaxCategoryStandard)
	pipeline := testPipeline(t, stubPrices{infos: map[uuid.UUID]*catalog.PriceInfo{variant: info}})

	item := cartItem(variant, seller, 100, 2)
	cart := &models.Cart{Items: []models.CartItem{item}}
	discounts := &promotion.ApplyOutcome{
		TotalDiscount: decimal.NewFromInt(20),
		LineDiscounts: map[uuid.UUID]decimal.Decimal{item.ID: decimal.NewFromInt(20)},
	}

	if _, err := pipeline.Recompute(context.Background(), cart, discounts); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if !cart.SubtotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected subtotal 200, got %s", cart.SubtotalAmount)
	}
	if !cart.DiscountAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected discount 20, got %s", cart.DiscountAmount)
	}
	// 10% of (200 - 20).
	if !cart.TaxAmount.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("expected tax 18, got %s", cart.TaxAmount)
	}
	if !cart.ShippingAmount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected shipping 5, got %s", cart.ShippingAmount)
	}
	want := cart.SubtotalAmount.Sub(cart.DiscountAmount).Add(cart.TaxAmount).Add(cart.ShippingAmount)
	if !cart.GrandTotal.Equal(want) {
		t.Fatalf("grand total invariant broken: got %s want %s", cart.GrandTotal, want)
	}
}

func TestRecomputeFlagsPriceChange(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	seller := uuid.New()
	info := priceInfo(variant, 120, enums.TaxCategoryExempt)
	pipeline := testPipeline(t, stubPrices{infos: map[uuid.UUID]*catalog.PriceInfo{variant: info}})

	item := cartItem(variant, seller, 100, 1)
	cart := &models.Cart{Items: []models.CartItem{item}}

	result, err := pipeline.Recompute(context.Background(), cart, nil)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	got := cart.Items[0]
	if !got.PriceChanged {
		t.Fatalf("expected price change flag set")
	}
	if !got.CurrentUnitPrice.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected refreshed price 120, got %s", got.CurrentUnitPrice)
	}
	if len(result.PriceChanges) != 1 || !result.PriceChanges[0].NewPrice.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected one price change reported, got %+v", result.PriceChanges)
	}
	if !cart.SubtotalAmount.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("subtotal must use the refreshed price, got %s", cart.SubtotalAmount)
	}
}

func TestRecomputeTruncatesOverDiscount(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	info := priceInfo(variant, 10, enums.TaxCategoryExempt)
	pipeline := testPipeline(t, stubPrices{infos: map[uuid.UUID]*catalog.PriceInfo{variant: info}})

	item := cartItem(variant, uuid.New(), 10, 1)
	cart := &models.Cart{Items: []models.CartItem{item}}
	discounts := &promotion.ApplyOutcome{
		TotalDiscount: decimal.NewFromInt(500),
		LineDiscounts: map[uuid.UUID]decimal.Decimal{item.ID: decimal.NewFromInt(500)},
	}

	if _, err := pipeline.Recompute(context.Background(), cart, discounts); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if !cart.DiscountAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected discount truncated to subtotal, got %s", cart.DiscountAmount)
	}
	if cart.GrandTotal.IsNegative() {
		t.Fatalf("grand total must never be negative, got %s", cart.GrandTotal)
	}
}

func TestRecomputeShippingPerSellerGroup(t *testing.T) {
	t.Parallel()

	variantA, variantB := uuid.New(), uuid.New()
	pipeline := testPipeline(t, stubPrices{infos: map[uuid.UUID]*catalog.PriceInfo{
		variantA: priceInfo(variantA, 10, enums.TaxCategoryExempt),
		variantB: priceInfo(variantB, 10, enums.TaxCategoryExempt),
	}})

	cart := &models.Cart{Items: []models.CartItem{
		cartItem(variantA, uuid.New(), 10, 1),
		cartItem(variantB, uuid.New(), 10, 1),
	}}

	if _, err := pipeline.Recompute(context.Background(), cart, nil); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !cart.ShippingAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected one flat fee per seller, got %s", cart.ShippingAmount)
	}
}

func TestRecomputeFlagsMissingVariant(t *testing.T) {
	t.Parallel()

	pipeline := testPipeline(t, stubPrices{infos: map[uuid.UUID]*catalog.PriceInfo{}})

	item := cartItem(uuid.New(), uuid.New(), 25, 2)
	cart := &models.Cart{Items: []models.CartItem{item}}

	if _, err := pipeline.Recompute(context.Background(), cart, nil); err != nil {
		t.Fatalf("recompute must not fail on a missing variant: %v", err)
	}

	got := cart.Items[0]
	if got.Available || got.AvailabilityReason != enums.AvailabilityUnavailable {
		t.Fatalf("expected line flagged unavailable, got %+v", got)
	}
	// Last known price keeps the cart priceable.
	if !got.LineTotal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected line total from last known price, got %s", got.LineTotal)
	}
}
