package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/internal/guard"
	"github.com/marketloop/cartengine/internal/pricing"
	"github.com/marketloop/cartengine/internal/promotion"
	"github.com/marketloop/cartengine/internal/reservation"
	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/outbox"
	"github.com/marketloop/cartengine/pkg/outbox/payloads"
	"github.com/marketloop/cartengine/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// errInvalidPromoCode marks the one validation failure the abuse monitor
// counts: a promotion code that failed eligibility.
var errInvalidPromoCode = errors.New("invalid promotion code")

// Service is the cart lifecycle manager. Every mutator runs the same refresh
// pipeline: guard pre-check, reservation refresh, promotion application,
// pricing recompute, version-guarded persist, event emit.
type Service interface {
	GetOrCreate(ctx context.Context, owner types.OwnerRef) (*models.Cart, error)
	Get(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef) (*models.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, variantID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID) (*models.Cart, error)
	ApplyPromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error)
	RemovePromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error)
	MergeGuestCart(ctx context.Context, sourceCartID uuid.UUID, sessionOwner, userOwner types.OwnerRef) (*MergeResult, error)
	ConvertToOrder(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, orderID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo         *Repository
	tx           txRunner
	guard        *guard.Guard
	abuse        *guard.AbuseMonitor
	reservations *reservation.Manager
	engine       *promotion.Engine
	pricing      *pricing.Pipeline
	prices       *catalog.Repository
	events       *outbox.Service
	cfg          config.CartConfig
	log          *logger.Logger
	now          func() time.Time
}

// NewService builds the lifecycle manager backed by the provided stack.
func NewService(
	repo *Repository,
	tx txRunner,
	g *guard.Guard,
	abuse *guard.AbuseMonitor,
	reservations *reservation.Manager,
	engine *promotion.Engine,
	pipeline *pricing.Pipeline,
	prices *catalog.Repository,
	events *outbox.Service,
	cfg config.CartConfig,
	log *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if g == nil {
		return nil, fmt.Errorf("integrity guard required")
	}
	if abuse == nil {
		return nil, fmt.Errorf("abuse monitor required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	if engine == nil {
		return nil, fmt.Errorf("promotion engine required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("pricing pipeline required")
	}
	if prices == nil {
		return nil, fmt.Errorf("price lookup required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		guard:        g,
		abuse:        abuse,
		reservations: reservations,
		engine:       engine,
		pricing:      pipeline,
		prices:       prices,
		events:       events,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}, nil
}

// GetOrCreate returns the owner's active cart, creating one when none exists.
// Creation is the one operation the abuse monitor may block.
func (s *service) GetOrCreate(ctx context.Context, owner types.OwnerRef) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	cart, err := s.repo.FindActiveByOwner(ctx, owner)
	if err == nil {
		if s.now().UTC().Before(cart.ExpiresAt) {
			return cart, nil
		}
		// The sweep has not caught this cart yet; close it here and fall
		// through to creating a fresh one.
		if err := s.expireStaleCart(ctx, cart); err != nil {
			return nil, err
		}
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	if err := s.abuse.NoteCartCreated(ctx, owner); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cart = &models.Cart{
		ID:             uuid.New(),
		UserID:         owner.UserID,
		SessionID:      owner.SessionID,
		Status:         enums.CartStatusActive,
		Currency:       s.defaultCurrency(),
		ExpiresAt:      now.Add(s.ownerTTL(owner)),
		LastActivityAt: now,
		Version:        1,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, cart); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartCreated,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Owner:         owner.Key(),
			Sequence:      cart.Version,
			Data:          payloads.CartCreatedEvent{CartID: cart.ID, Owner: owner.Key()},
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.log.WithCartID(ctx, cart.ID.String())
	s.log.Info(s.log.WithOwner(logCtx, owner.Key()), "cart created")
	return cart, nil
}

// expireStaleCart closes a cart whose TTL lapsed before the sweep caught it,
// releasing its holds. The status guard makes a concurrent close a no-op.
func (s *service) expireStaleCart(ctx context.Context, cart *models.Cart) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Model(&models.Cart{}).
			Where("id = ? AND status = ?", cart.ID, enums.CartStatusActive).
			Update("status", enums.CartStatusExpired)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "expire stale cart")
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if _, err := s.reservations.WithTx(tx).ReleaseForCart(ctx, cart.ID); err != nil {
			return err
		}

		now := s.now().UTC()
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Owner:         cart.Owner().Key(),
			Sequence:      cart.Version,
			OccurredAt:    now,
			Data: payloads.CartStatusEvent{
				CartID:    cart.ID,
				Status:    enums.CartStatusExpired.String(),
				ChangedAt: now,
			},
		})
	})
}

// Get loads a cart for its owner. An active cart whose stored snapshot has
// drifted, because a catalog price moved or the totals no longer satisfy the
// pricing invariant, is recomputed on the spot rather than surfaced stale.
func (s *service) Get(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckOwnership(cart, owner); err != nil {
		return nil, err
	}

	if cart.Status == enums.CartStatusActive && s.needsRefresh(ctx, cart) {
		s.log.Warn(s.log.WithCartID(ctx, cart.ID.String()), "cart snapshot drifted, recomputing")
		healed, err := s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
			return nil
		})
		if err == nil {
			return healed, nil
		}
	}
	return cart, nil
}

// needsRefresh reports whether the stored snapshot is stale: totals that no
// longer satisfy the pricing invariant, a line whose catalog price moved
// since the last write, or a line whose variant vanished.
func (s *service) needsRefresh(ctx context.Context, cart *models.Cart) bool {
	if !totalsConsistent(cart) {
		return true
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		info, err := s.prices.GetCurrentPrice(ctx, item.VariantID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound && item.Available {
				return true
			}
			continue
		}
		if !info.UnitPrice.Equal(item.CurrentUnitPrice) {
			return true
		}
	}
	return false
}

// AddItem merges quantity into an existing (variant, seller) line or opens a
// new one, then runs the refresh pipeline.
func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}

	cart, err := s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		info, err := s.prices.WithTx(tx).GetCurrentPrice(ctx, variantID)
		if err != nil {
			return err
		}

		for i := range cart.Items {
			item := &cart.Items[i]
			if item.VariantID == variantID && item.SellerID == info.SellerID {
				item.Quantity += quantity
				mut.guardItem = &item.ID
				mut.emit(enums.EventCartItemUpdated, enums.AggregateCartItem, item.ID,
					payloads.CartItemEvent{CartID: cart.ID, ItemID: item.ID, VariantID: variantID, Quantity: item.Quantity})
				return nil
			}
		}

		item := models.CartItem{
			ID:                 uuid.New(),
			CartID:             cart.ID,
			VariantID:          variantID,
			SellerID:           info.SellerID,
			Quantity:           quantity,
			UnitPrice:          info.UnitPrice,
			CurrentUnitPrice:   info.UnitPrice,
			Available:          true,
			AvailabilityReason: enums.AvailabilityInStock,
		}
		cart.Items = append(cart.Items, item)
		mut.guardItem = &item.ID
		mut.emit(enums.EventCartItemAdded, enums.AggregateCartItem, item.ID,
			payloads.CartItemEvent{CartID: cart.ID, ItemID: item.ID, VariantID: variantID, Quantity: quantity})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.noteHoarding(ctx, owner)
	return cart, nil
}

// UpdateItemQuantity sets an absolute quantity. Zero or negative forces
// removal of the line.
func (s *service) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	cart, err := s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		idx := findItem(cart, itemID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		if quantity <= 0 {
			return s.dropLine(ctx, tx, cart, idx, mut)
		}

		item := &cart.Items[idx]
		item.Quantity = quantity
		mut.guardItem = &item.ID
		mut.emit(enums.EventCartItemUpdated, enums.AggregateCartItem, item.ID,
			payloads.CartItemEvent{CartID: cart.ID, ItemID: item.ID, VariantID: item.VariantID, Quantity: quantity})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.noteHoarding(ctx, owner)
	return cart, nil
}

// RemoveItem deletes a line and releases its hold.
func (s *service) RemoveItem(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, itemID uuid.UUID) (*models.Cart, error) {
	return s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		idx := findItem(cart, itemID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return s.dropLine(ctx, tx, cart, idx, mut)
	})
}

// ApplyPromotionCode adds an explicit code to the cart's promotion set. A
// code that fails eligibility rejects the whole mutation and is counted by
// the abuse monitor.
func (s *service) ApplyPromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}

	cart, err := s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		mut.codes = appendCode(mut.codes, normalized)
		mut.requireCode = normalized
		return nil
	})
	if err != nil {
		if errors.Is(err, errInvalidPromoCode) {
			s.abuse.NoteInvalidPromo(ctx, owner)
		}
		return nil, err
	}
	return cart, nil
}

// RemovePromotionCode drops an explicitly applied code and reprices.
func (s *service) RemovePromotionCode(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, code string) (*models.Cart, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}

	return s.mutate(ctx, cartID, owner, func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
		filtered := mut.codes[:0]
		found := false
		for _, existing := range mut.codes {
			if existing == normalized {
				found = true
				continue
			}
			filtered = append(filtered, existing)
		}
		if !found {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promotion code not applied")
		}
		mut.codes = filtered
		return nil
	})
}

// mutation carries per-operation state through the refresh pipeline.
// finalize, when set, runs after all refresh checks pass and before the
// snapshot is persisted.
type mutation struct {
	codes       []string
	requireCode string
	guardItem   *uuid.UUID
	events      []outbox.DomainEvent
	finalize    func(ctx context.Context, tx *gorm.DB, cart *models.Cart) error
}

func (m *mutation) emit(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, data interface{}) {
	m.events = append(m.events, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Data:          data,
	})
}

type mutationOp func(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error

// mutate runs one operation through the refresh pipeline under optimistic
// concurrency: on a version conflict the whole pipeline is retried against
// the freshly read cart before the conflict surfaces.
func (s *service) mutate(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, op mutationOp) (*models.Cart, error) {
	retries := s.cfg.ConflictRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		cart, err := s.runPipeline(ctx, cartID, owner, op)
		if err == nil {
			return cart, nil
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *service) runPipeline(ctx context.Context, cartID uuid.UUID, owner types.OwnerRef, op mutationOp) (*models.Cart, error) {
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		cart, err := txRepo.FindByID(ctx, cartID)
		if err != nil {
			return err
		}
		if err := s.guard.PreCheck(cart, owner); err != nil {
			return err
		}
		expectedVersion := cart.Version

		mut := &mutation{codes: codesFrom(cart.Promotions)}
		if err := op(ctx, tx, cart, mut); err != nil {
			return err
		}

		priorCodes := codesFrom(cart.Promotions)
		outcome, priceResult, err := s.refresh(ctx, tx, cart, mut.codes)
		if err != nil {
			return err
		}

		if mut.requireCode != "" && containsCode(outcome.InvalidCodes, mut.requireCode) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, errInvalidPromoCode, "invalid promotion code").
				WithDetails(map[string]any{"code": mut.requireCode})
		}
		if err := s.checkGuardItem(ctx, tx, cart, mut); err != nil {
			return err
		}
		if err := s.guard.CheckLimits(cart); err != nil {
			return err
		}
		if mut.finalize != nil {
			if err := mut.finalize(ctx, tx, cart); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		cart.LastActivityAt = now
		cart.ExpiresAt = now.Add(s.ownerTTL(owner))
		if err := txRepo.SaveSnapshot(ctx, cart, expectedVersion); err != nil {
			return err
		}

		if err := s.emitMutationEvents(ctx, tx, cart, owner, mut, outcome, priceResult, priorCodes, now); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// refresh is the shared pipeline body: reservations, promotions, pricing.
// The new state is computed on the in-memory cart and only persisted by the
// caller after all checks pass. Price reads are bound to the mutation's
// transaction so they see the hold counters written just above.
func (s *service) refresh(ctx context.Context, tx *gorm.DB, cart *models.Cart, codes []string) (*promotion.ApplyOutcome, *pricing.Result, error) {
	if err := s.reservations.WithTx(tx).ReserveForCart(ctx, cart); err != nil {
		return nil, nil, err
	}

	txPrices := s.prices.WithTx(tx)
	snapshot := s.buildSnapshot(ctx, txPrices, cart)
	outcome, err := s.engine.Apply(ctx, snapshot, codes)
	if err != nil {
		return nil, nil, err
	}

	priceResult, err := s.pricing.WithPrices(txPrices).Recompute(ctx, cart, outcome)
	if err != nil {
		return nil, nil, err
	}

	cart.Promotions = outcome.Applied
	return outcome, priceResult, nil
}

func (s *service) buildSnapshot(ctx context.Context, prices catalog.PriceLookup, cart *models.Cart) promotion.CartSnapshot {
	snapshot := promotion.CartSnapshot{
		CartID:   cart.ID,
		Owner:    cart.Owner(),
		Currency: cart.Currency,
	}
	for i := range cart.Items {
		item := &cart.Items[i]
		line := promotion.LineSnapshot{
			ItemID:    item.ID,
			VariantID: item.VariantID,
			SellerID:  item.SellerID,
			UnitPrice: item.CurrentUnitPrice,
			Quantity:  item.Quantity,
			Position:  i,
		}
		if info, err := prices.GetCurrentPrice(ctx, item.VariantID); err == nil {
			line.ProductID = info.ProductID
			line.CategoryID = info.CategoryID
			line.TaxCategory = info.TaxCategory
			line.UnitPrice = info.UnitPrice
		}
		snapshot.Lines = append(snapshot.Lines, line)
	}
	return snapshot
}

// checkGuardItem fails the mutation when the line it targeted could not be
// backed by stock. Other lines keep their availability flags without
// failing the pipeline.
func (s *service) checkGuardItem(ctx context.Context, tx *gorm.DB, cart *models.Cart, mut *mutation) error {
	if mut.guardItem == nil {
		return nil
	}
	idx := findItem(cart, *mut.guardItem)
	if idx < 0 {
		return nil
	}
	item := &cart.Items[idx]
	if item.Available {
		return nil
	}

	maxAvailable, err := s.reservations.WithTx(tx).MaxAvailable(ctx, item.VariantID)
	if err != nil {
		maxAvailable = 0
	}
	return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient inventory for requested quantity").
		WithDetails(map[string]any{
			"variantId":    item.VariantID,
			"requested":    item.Quantity,
			"maxAvailable": maxAvailable,
		})
}

func (s *service) dropLine(ctx context.Context, tx *gorm.DB, cart *models.Cart, idx int, mut *mutation) error {
	item := cart.Items[idx]
	if err := s.reservations.WithTx(tx).ReleaseForItem(ctx, &item); err != nil {
		return err
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	mut.emit(enums.EventCartItemRemoved, enums.AggregateCartItem, item.ID,
		payloads.CartItemEvent{CartID: cart.ID, ItemID: item.ID, VariantID: item.VariantID, Quantity: 0})
	return nil
}

func (s *service) emitMutationEvents(
	ctx context.Context,
	tx *gorm.DB,
	cart *models.Cart,
	owner types.OwnerRef,
	mut *mutation,
	outcome *promotion.ApplyOutcome,
	priceResult *pricing.Result,
	priorCodes []string,
	now time.Time,
) error {
	for _, event := range mut.events {
		event.Owner = owner.Key()
		event.Sequence = cart.Version
		event.OccurredAt = now
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return err
		}
	}

	newCodes := codesFrom(cart.Promotions)
	if !sameCodes(priorCodes, newCodes) {
		err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartPromosApplied,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Owner:         owner.Key(),
			Sequence:      cart.Version,
			OccurredAt:    now,
			Data: payloads.PromotionsAppliedEvent{
				CartID:        cart.ID,
				Codes:         newCodes,
				TotalDiscount: outcome.TotalDiscount,
			},
		})
		if err != nil {
			return err
		}
	}

	for _, change := range priceResult.PriceChanges {
		err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartPriceChanged,
			AggregateType: enums.AggregateCartItem,
			AggregateID:   change.ItemID,
			Owner:         owner.Key(),
			Sequence:      cart.Version,
			OccurredAt:    now,
			Data: payloads.PriceChangedEvent{
				CartID:     cart.ID,
				ItemID:     change.ItemID,
				VariantID:  change.VariantID,
				OldPrice:   change.OldPrice,
				NewPrice:   change.NewPrice,
				DetectedAt: now,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) noteHoarding(ctx context.Context, owner types.OwnerRef) {
	total, err := s.repo.SumActiveQuantityByOwner(ctx, owner)
	if err != nil {
		return
	}
	s.abuse.NoteReservedTotal(ctx, owner, total)
}

func (s *service) ownerTTL(owner types.OwnerRef) time.Duration {
	if owner.IsUser() {
		if s.cfg.UserTTL > 0 {
			return s.cfg.UserTTL
		}
		return 30 * 24 * time.Hour
	}
	if s.cfg.GuestTTL > 0 {
		return s.cfg.GuestTTL
	}
	return 24 * time.Hour
}

func (s *service) defaultCurrency() enums.Currency {
	if currency, err := enums.ParseCurrency(s.cfg.DefaultCurrency); err == nil {
		return currency
	}
	return enums.CurrencyUSD
}

func totalsConsistent(cart *models.Cart) bool {
	want := cart.SubtotalAmount.Sub(cart.DiscountAmount).Add(cart.TaxAmount).Add(cart.ShippingAmount)
	if want.IsNegative() {
		want = decimal.Zero
	}
	return cart.GrandTotal.Equal(want)
}

func findItem(cart *models.Cart, itemID uuid.UUID) int {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func codesFrom(rows []models.AppliedPromotion) []string {
	seen := map[string]bool{}
	var codes []string
	for _, row := range rows {
		code := strings.ToUpper(row.Code)
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

func appendCode(codes []string, code string) []string {
	for _, existing := range codes {
		if existing == code {
			return codes
		}
	}
	return append(codes, code)
}

func containsCode(codes []string, code string) bool {
	for _, existing := range codes {
		if existing == code {
			return true
		}
	}
	return false
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]bool{}
	for _, code := range a {
		set[code] = true
	}
	for _, code := range b {
		if !set[code] {
			return false
		}
	}
	return true
}
