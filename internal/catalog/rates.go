package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/types"
)

// TaxRateProvider is the external tax boundary: a percentage rate for a tax
// category shipped to a destination.
type TaxRateProvider interface {
	GetRate(ctx context.Context, category enums.TaxCategory, destination *types.Address) (decimal.Decimal, error)
}

// ShippingInput describes one seller group handed to the shipping provider.
type ShippingInput struct {
	SellerID    uuid.UUID
	ItemCount   int
	Subtotal    decimal.Decimal
	Destination *types.Address
}

// ShippingRateProvider is the external shipping boundary.
type ShippingRateProvider interface {
	Calculate(ctx context.Context, input ShippingInput) (decimal.Decimal, error)
}

// StaticTaxRates is the default provider: a fixed percentage per category.
type StaticTaxRates struct {
	Rates map[enums.TaxCategory]decimal.Decimal
}

// NewStaticTaxRates returns a provider with conventional defaults.
func NewStaticTaxRates() StaticTaxRates {
	return StaticTaxRates{Rates: map[enums.TaxCategory]decimal.Decimal{
		enums.TaxCategoryStandard: decimal.NewFromFloat(8.5),
		enums.TaxCategoryReduced:  decimal.NewFromFloat(4.0),
		enums.TaxCategoryExempt:   decimal.Zero,
	}}
}

// GetRate implements TaxRateProvider.
func (s StaticTaxRates) GetRate(ctx context.Context, category enums.TaxCategory, destination *types.Address) (decimal.Decimal, error) {
	if rate, ok := s.Rates[category]; ok {
		return rate, nil
	}
	return s.Rates[enums.TaxCategoryStandard], nil
}

// FlatShipping is the default provider: a flat fee per seller group.
type FlatShipping struct {
	PerSeller decimal.Decimal
}

// NewFlatShipping returns a flat-fee shipping provider.
func NewFlatShipping(fee decimal.Decimal) FlatShipping {
	return FlatShipping{PerSeller: fee}
}

// Calculate implements ShippingRateProvider.
func (f FlatShipping) Calculate(ctx context.Context, input ShippingInput) (decimal.Decimal, error) {
	if input.ItemCount == 0 {
		return decimal.Zero, nil
	}
	return f.PerSeller, nil
}
