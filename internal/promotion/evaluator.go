package promotion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/logger"
)

// EligibilityFacts records why a promotion was deemed applicable, snapshotted
// onto the AppliedPromotion row for audit.
type EligibilityFacts struct {
	Scope        string      `json:"scope"`
	Subtotal     string      `json:"subtotal"`
	MatchedItems []uuid.UUID `json:"matchedItems,omitempty"`
	UsageCount   int         `json:"usageCount"`
	UserUsage    *int        `json:"userUsage,omitempty"`
	EvaluatedAt  time.Time   `json:"evaluatedAt"`
}

// Candidate is an eligible promotion with its dry-run discount, used for
// ordering and reused by the application engine.
type Candidate struct {
	Promotion models.Promotion
	Facts     EligibilityFacts
	Result    DiscountResult
}

// Evaluator decides which promotions currently apply to a cart snapshot.
type Evaluator struct {
	catalog catalog.PromotionCatalog
	log     *logger.Logger
	now     func() time.Time
}

// NewEvaluator constructs the eligibility evaluator.
func NewEvaluator(cat catalog.PromotionCatalog, log *logger.Logger) (*Evaluator, error) {
	if cat == nil {
		return nil, fmt.Errorf("promotion catalog is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Evaluator{catalog: cat, log: log, now: time.Now}, nil
}

// EligibleSet returns all currently eligible promotions, ordered by
// descending priority then descending estimated discount. A promotion that
// fails during evaluation is dropped and logged, never surfaced.
func (e *Evaluator) EligibleSet(ctx context.Context, cart CartSnapshot) ([]Candidate, error) {
	active, err := e.catalog.FindActive(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(active))
	for _, promo := range active {
		candidate, ok := e.evaluate(ctx, promo, cart)
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	sortCandidates(candidates)
	return candidates, nil
}

// Evaluate runs the eligibility conjunction for a single promotion. Used for
// explicitly supplied codes, which must independently pass the same checks.
func (e *Evaluator) Evaluate(ctx context.Context, promo models.Promotion, cart CartSnapshot) (Candidate, bool) {
	return e.evaluate(ctx, promo, cart)
}

func (e *Evaluator) evaluate(ctx context.Context, promo models.Promotion, cart CartSnapshot) (candidate Candidate, eligible bool) {
	// Fail closed: a promotion that panics during evaluation is ineligible.
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(ctx, "promotion evaluation panicked",
				fmt.Errorf("promotion %s: %v", promo.Code, r))
			eligible = false
		}
	}()

	now := e.now().UTC()
	if !promo.Active || !promo.InWindow(now) {
		return Candidate{}, false
	}

	usage, err := e.catalog.GetUsageCount(ctx, promo.ID, nil)
	if err != nil {
		e.log.Error(ctx, "promotion usage lookup failed", err)
		return Candidate{}, false
	}
	if promo.UsageLimit != nil && usage >= *promo.UsageLimit {
		return Candidate{}, false
	}

	var userUsage *int
	if promo.PerUserLimit != nil && cart.Owner.IsUser() {
		count, err := e.catalog.GetUsageCount(ctx, promo.ID, cart.Owner.UserID)
		if err != nil {
			e.log.Error(ctx, "promotion per-user usage lookup failed", err)
			return Candidate{}, false
		}
		if count >= *promo.PerUserLimit {
			return Candidate{}, false
		}
		userUsage = &count
	}

	subtotal := cart.Subtotal()
	if promo.MinOrderAmount != nil && subtotal.LessThan(*promo.MinOrderAmount) {
		return Candidate{}, false
	}

	if !scopeMatches(promo, cart) {
		return Candidate{}, false
	}

	ok, err := e.catalog.CheckOwnerEligibility(ctx, promo, cart.Owner)
	if err != nil {
		e.log.Error(ctx, "promotion owner eligibility check failed", err)
		return Candidate{}, false
	}
	if !ok {
		return Candidate{}, false
	}

	calc, found := CalculatorFor(promo.DiscountType)
	if !found {
		e.log.Warn(ctx, "no calculator registered for discount type "+promo.DiscountType.String())
		return Candidate{}, false
	}
	result, err := calc.Calculate(promo, cart)
	if err != nil {
		e.log.Error(ctx, "promotion discount calculation failed", err)
		return Candidate{}, false
	}

	matched := scopeLines(promo, cart)
	return Candidate{
		Promotion: promo,
		Facts: EligibilityFacts{
			Scope:        promo.Scope.String(),
			Subtotal:     subtotal.StringFixed(2),
			MatchedItems: lineIDs(matched),
			UsageCount:   usage,
			UserUsage:    userUsage,
			EvaluatedAt:  now,
		},
		Result: result,
	}, true
}

func scopeMatches(promo models.Promotion, cart CartSnapshot) bool {
	switch promo.Scope {
	case enums.PromotionScopeGlobal:
		return len(cart.Lines) > 0
	case enums.PromotionScopeUser:
		return cart.Owner.IsUser() && promo.ScopeRefs.Contains(*cart.Owner.UserID)
	case enums.PromotionScopeCategory, enums.PromotionScopeProduct, enums.PromotionScopeSeller:
		return len(scopeLines(promo, cart)) > 0
	default:
		return false
	}
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Promotion.Priority != b.Promotion.Priority {
			return a.Promotion.Priority > b.Promotion.Priority
		}
		if !a.Result.Amount.Equal(b.Result.Amount) {
			return a.Result.Amount.GreaterThan(b.Result.Amount)
		}
		return a.Promotion.Code < b.Promotion.Code
	})
}
