package promotion

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/pkg/db/models"
)

// BuyXGetYCalculator grants free units per product group: for every
// buyQuantity units of a product in the cart, getQuantity units are free.
// Free units are priced against the cheapest units first, ties broken by
// line insertion order.
type BuyXGetYCalculator struct{}

// Calculate implements Calculator.
func (BuyXGetYCalculator) Calculate(promo models.Promotion, cart CartSnapshot) (DiscountResult, error) {
	if promo.BuyQuantity <= 0 || promo.GetQuantity <= 0 {
		return DiscountResult{Amount: decimal.Zero}, nil
	}
	lines := scopeLines(promo, cart)
	if len(lines) == 0 {
		return DiscountResult{Amount: decimal.Zero}, nil
	}

	groups, order := groupByProduct(lines)

	total := decimal.Zero
	var breakdown []LineDiscount
	for _, productID := range order {
		group := groups[productID]
		quantity := 0
		for _, line := range group {
			quantity += line.Quantity
		}
		free := quantity / promo.BuyQuantity * promo.GetQuantity
		if free <= 0 {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].UnitPrice.Equal(group[j].UnitPrice) {
				return group[i].UnitPrice.LessThan(group[j].UnitPrice)
			}
			return group[i].Position < group[j].Position
		})

		for _, line := range group {
			if free <= 0 {
				break
			}
			units := line.Quantity
			if units > free {
				units = free
			}
			amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(units)))
			breakdown = append(breakdown, LineDiscount{ItemID: line.ItemID, Amount: amount})
			total = total.Add(amount)
			free -= units
		}
	}

	if cap := promo.MaxDiscountAmount; cap != nil && total.GreaterThan(*cap) {
		total, breakdown = truncateBreakdown(breakdown, *cap)
	}

	return DiscountResult{
		Amount:        total,
		EligibleItems: lineIDs(lines),
		LineBreakdown: breakdown,
	}, nil
}

// groupByProduct buckets lines by product, preserving first-seen order.
func groupByProduct(lines []LineSnapshot) (map[uuid.UUID][]LineSnapshot, []uuid.UUID) {
	groups := make(map[uuid.UUID][]LineSnapshot)
	var order []uuid.UUID
	for _, line := range lines {
		if _, seen := groups[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		groups[line.ProductID] = append(groups[line.ProductID], line)
	}
	return groups, order
}

// truncateBreakdown walks the breakdown in allocation order and trims it so
// the sum equals the cap.
func truncateBreakdown(breakdown []LineDiscount, cap decimal.Decimal) (decimal.Decimal, []LineDiscount) {
	remaining := cap
	var trimmed []LineDiscount
	for _, entry := range breakdown {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		amount := entry.Amount
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		trimmed = append(trimmed, LineDiscount{ItemID: entry.ItemID, Amount: amount})
		remaining = remaining.Sub(amount)
	}
	return cap.Sub(remaining), trimmed
}
