package promotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/pkg/db/models"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
)

// ApplyOutcome is the result of one application pass.
type ApplyOutcome struct {
	Applied       []models.AppliedPromotion
	TotalDiscount decimal.Decimal
	LineDiscounts map[uuid.UUID]decimal.Decimal
	InvalidCodes  []string
}

// Engine resolves stacking among eligible promotions and produces the
// AppliedPromotion rows for a pricing pass. Attribution is always recomputed
// from scratch: callers discard prior rows and persist the new set.
type Engine struct {
	evaluator *Evaluator
	catalog   catalog.PromotionCatalog
	log       *logger.Logger
}

// NewEngine constructs the application engine.
func NewEngine(evaluator *Evaluator, cat catalog.PromotionCatalog, log *logger.Logger) (*Engine, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("promotion catalog is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Engine{evaluator: evaluator, catalog: cat, log: log}, nil
}

// Apply evaluates the eligible set plus any explicitly supplied codes,
// resolves stacking in priority order, and returns the surviving promotions
// with their discount attribution. Codes that cannot be resolved or fail
// eligibility are reported in InvalidCodes, not as errors.
func (e *Engine) Apply(ctx context.Context, cart CartSnapshot, explicitCodes []string) (*ApplyOutcome, error) {
	candidates, err := e.evaluator.EligibleSet(ctx, cart)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		seen[strings.ToUpper(candidate.Promotion.Code)] = true
	}

	var invalid []string
	for _, code := range explicitCodes {
		normalized := strings.ToUpper(strings.TrimSpace(code))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true

		promo, err := e.catalog.FindByCode(ctx, normalized)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				invalid = append(invalid, normalized)
				continue
			}
			return nil, err
		}
		candidate, ok := e.evaluator.Evaluate(ctx, *promo, cart)
		if !ok {
			invalid = append(invalid, normalized)
			continue
		}
		candidates = append(candidates, candidate)
	}
	sortCandidates(candidates)

	selected := resolveStacking(candidates)

	outcome := &ApplyOutcome{
		TotalDiscount: decimal.Zero,
		LineDiscounts: make(map[uuid.UUID]decimal.Decimal),
		InvalidCodes:  invalid,
	}
	lineTotals := make(map[uuid.UUID]decimal.Decimal, len(cart.Lines))
	for _, line := range cart.Lines {
		lineTotals[line.ItemID] = line.Total()
	}

	for _, candidate := range selected {
		rows := e.buildRows(cart.CartID, candidate)
		outcome.Applied = append(outcome.Applied, rows...)
		outcome.TotalDiscount = outcome.TotalDiscount.Add(candidate.Result.Amount)
		attributeToLines(outcome.LineDiscounts, lineTotals, candidate.Result)
	}
	return outcome, nil
}

// resolveStacking walks candidates in order. A selected non-stackable
// promotion claims its scope footprint and excludes later non-stackable
// promotions overlapping it; stackable promotions are never excluded.
func resolveStacking(candidates []Candidate) []Candidate {
	var selected []Candidate
	var footprints [][]uuid.UUID

	for _, candidate := range candidates {
		if candidate.Result.Amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if !candidate.Promotion.Stackable && overlapsAny(footprints, candidate.Result.EligibleItems) {
			continue
		}
		selected = append(selected, candidate)
		if !candidate.Promotion.Stackable {
			footprints = append(footprints, candidate.Result.EligibleItems)
		}
	}
	return selected
}

func overlapsAny(footprints [][]uuid.UUID, items []uuid.UUID) bool {
	for _, footprint := range footprints {
		for _, claimed := range footprint {
			for _, item := range items {
				if claimed == item {
					return true
				}
			}
		}
	}
	return false
}

func (e *Engine) buildRows(cartID uuid.UUID, candidate Candidate) []models.AppliedPromotion {
	snapshot, err := json.Marshal(candidate.Facts)
	if err != nil {
		snapshot = nil
	}
	base := models.AppliedPromotion{
		CartID:              cartID,
		PromotionID:         candidate.Promotion.ID,
		Code:                candidate.Promotion.Code,
		DiscountType:        candidate.Promotion.DiscountType,
		Priority:            candidate.Promotion.Priority,
		Stackable:           candidate.Promotion.Stackable,
		EligibilitySnapshot: snapshot,
	}

	if len(candidate.Result.LineBreakdown) == 0 {
		row := base
		row.ID = uuid.New()
		row.Amount = candidate.Result.Amount
		return []models.AppliedPromotion{row}
	}

	rows := make([]models.AppliedPromotion, 0, len(candidate.Result.LineBreakdown))
	for _, entry := range candidate.Result.LineBreakdown {
		row := base
		row.ID = uuid.New()
		itemID := entry.ItemID
		row.CartItemID = &itemID
		row.Amount = entry.Amount
		rows = append(rows, row)
	}
	return rows
}

// attributeToLines folds a discount result into the per-line discount map.
// Explicit breakdowns are taken verbatim; cart-level amounts are distributed
// proportionally to line totals, remainder cents on the last eligible line.
func attributeToLines(acc map[uuid.UUID]decimal.Decimal, lineTotals map[uuid.UUID]decimal.Decimal, result DiscountResult) {
	if len(result.LineBreakdown) > 0 {
		for _, entry := range result.LineBreakdown {
			acc[entry.ItemID] = acc[entry.ItemID].Add(entry.Amount)
		}
		return
	}
	if len(result.EligibleItems) == 0 || result.Amount.LessThanOrEqual(decimal.Zero) {
		return
	}

	eligibleTotal := decimal.Zero
	for _, itemID := range result.EligibleItems {
		eligibleTotal = eligibleTotal.Add(lineTotals[itemID])
	}
	if eligibleTotal.LessThanOrEqual(decimal.Zero) {
		return
	}

	allocated := decimal.Zero
	for i, itemID := range result.EligibleItems {
		var share decimal.Decimal
		if i == len(result.EligibleItems)-1 {
			share = result.Amount.Sub(allocated)
		} else {
			share = result.Amount.Mul(lineTotals[itemID]).Div(eligibleTotal).Round(2)
			allocated = allocated.Add(share)
		}
		acc[itemID] = acc[itemID].Add(share)
	}
}
