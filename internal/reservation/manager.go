package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/outbox"
	"github.com/marketloop/cartengine/pkg/outbox/payloads"
)

// Manager owns soft and hard stock holds. The reserved counter on
// variant_stocks moves in the same statement that decides capacity, so two
// concurrent writers can never both observe room and both reserve.
type Manager struct {
	db     *gorm.DB
	events *outbox.Service
	cfg    config.ReservationConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewManager constructs a reservation manager.
func NewManager(db *gorm.DB, events *outbox.Service, cfg config.ReservationConfig, log *logger.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{db: db, events: events, cfg: cfg, log: log, now: time.Now}, nil
}

// WithTx binds the manager to a transaction.
func (m *Manager) WithTx(tx *gorm.DB) *Manager {
	if tx == nil {
		return m
	}
	clone := *m
	clone.db = tx
	return &clone
}

// ReserveForCart refreshes the soft hold behind every cart line. Lines with a
// live hold for the right quantity are left alone; stale holds are released
// and re-reserved. Shortfall never fails the refresh: the line is marked
// unavailable with the reason and the pass continues.
func (m *Manager) ReserveForCart(ctx context.Context, cart *models.Cart) error {
	now := m.now().UTC()
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.AvailabilityReason == enums.AvailabilityUnavailable {
			continue
		}

		if item.ReservationID != nil {
			existing, err := m.findReservation(ctx, *item.ReservationID)
			if err != nil {
				return err
			}
			if existing != nil && m.isLive(existing, now) && existing.Quantity == item.Quantity {
				item.ReservationExpiresAt = existing.ExpiresAt
				item.Available = true
				item.AvailabilityReason = enums.AvailabilityInStock
				continue
			}
			if existing != nil {
				if err := m.release(ctx, existing, enums.ReservationStatusReleased); err != nil {
					return err
				}
			}
			item.ReservationID = nil
			item.ReservationExpiresAt = nil
		}

		if err := m.reserveLine(ctx, item, now); err != nil {
			return err
		}
	}
	return nil
}

// reserveLine attempts the combined capacity check and counter increment in
// a single conditional update.
func (m *Manager) reserveLine(ctx context.Context, item *models.CartItem, now time.Time) error {
	res := m.db.WithContext(ctx).
		Model(&models.VariantStock{}).
		Where("variant_id = ? AND active = ? AND stock_qty - reserved_qty >= ?",
			item.VariantID, true, item.Quantity).
		Update("reserved_qty", gorm.Expr("reserved_qty + ?", item.Quantity))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}

	if res.RowsAffected == 0 {
		available, err := m.availableQuantity(ctx, item.VariantID)
		if err != nil {
			return err
		}
		item.Available = false
		if available <= 0 {
			item.AvailabilityReason = enums.AvailabilityOutOfStock
		} else {
			item.AvailabilityReason = enums.AvailabilityPartial
		}
		item.ReservationID = nil
		item.ReservationExpiresAt = nil
		return nil
	}

	expiresAt := now.Add(m.softTTL())
	itemID := item.ID
	hold := models.InventoryReservation{
		ID:         uuid.New(),
		VariantID:  item.VariantID,
		Quantity:   item.Quantity,
		RefType:    enums.ReservationRefCart,
		RefID:      item.CartID,
		CartItemID: &itemID,
		Status:     enums.ReservationStatusActive,
		ExpiresAt:  &expiresAt,
	}
	if err := m.db.WithContext(ctx).Create(&hold).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}

	item.ReservationID = &hold.ID
	item.ReservationExpiresAt = &expiresAt
	item.Available = true
	item.AvailabilityReason = enums.AvailabilityInStock
	return nil
}

// MaxAvailable reports how many units of a variant are currently
// reservable, for shortfall error details.
func (m *Manager) MaxAvailable(ctx context.Context, variantID uuid.UUID) (int, error) {
	return m.availableQuantity(ctx, variantID)
}

// ConvertToHard turns every active soft hold on the cart into a durable hold
// on the order. Idempotent per (cart, order): a second call finds the hard
// holds already present and does nothing. A hold that expired between
// checkout start and conversion fails the call so the caller can re-reserve.
func (m *Manager) ConvertToHard(ctx context.Context, cartID, orderID uuid.UUID) error {
	var hardCount int64
	err := m.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("ref_type = ? AND ref_id = ?", enums.ReservationRefOrder, orderID).
		Count(&hardCount).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count hard reservations")
	}
	if hardCount > 0 {
		return nil
	}

	var soft []models.InventoryReservation
	err = m.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ? AND status = ?",
			enums.ReservationRefCart, cartID, enums.ReservationStatusActive).
		Find(&soft).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load soft reservations")
	}

	now := m.now().UTC()
	for i := range soft {
		hold := &soft[i]
		// Status is re-checked in the claim itself; a sweep racing us loses
		// or wins atomically, never both.
		claim := m.db.WithContext(ctx).
			Model(&models.InventoryReservation{}).
			Where("id = ? AND status = ? AND expires_at > ?",
				hold.ID, enums.ReservationStatusActive, now).
			Update("status", enums.ReservationStatusConverted)
		if claim.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, claim.Error, "convert reservation")
		}
		if claim.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficient, "reservation expired before conversion").
				WithDetails(map[string]any{"reservationId": hold.ID, "variantId": hold.VariantID})
		}

		// The reserved counter carries over: the hold changes owner, the
		// stock stays committed.
		hard := models.InventoryReservation{
			ID:        uuid.New(),
			VariantID: hold.VariantID,
			Quantity:  hold.Quantity,
			RefType:   enums.ReservationRefOrder,
			RefID:     orderID,
			Status:    enums.ReservationStatusActive,
		}
		if err := m.db.WithContext(ctx).Create(&hard).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create hard reservation")
		}
	}
	return nil
}

// ReleaseExpired claims soft holds past their expiry and returns the
// reserved stock. The status-guarded claim makes the counter decrement
// exactly-once even when sweeps overlap.
func (m *Manager) ReleaseExpired(ctx context.Context) (int, error) {
	now := m.now().UTC()
	var expired []models.InventoryReservation
	err := m.db.WithContext(ctx).
		Where("ref_type = ? AND status = ? AND expires_at <= ?",
			enums.ReservationRefCart, enums.ReservationStatusActive, now).
		Find(&expired).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load expired reservations")
	}

	released := 0
	for i := range expired {
		hold := &expired[i]
		claimed, err := m.claimAndDecrement(ctx, hold, enums.ReservationStatusExpired)
		if err != nil {
			return released, err
		}
		if !claimed {
			continue
		}
		released++

		if err := m.detachCartItem(ctx, hold); err != nil {
			return released, err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateReservation,
			AggregateID:   hold.ID,
			Data: payloads.ReservationExpiredEvent{
				ReservationID: hold.ID,
				VariantID:     hold.VariantID,
				Quantity:      hold.Quantity,
				ExpiredAt:     now,
			},
			OccurredAt: now,
		}
		if err := m.events.Emit(ctx, m.db, event); err != nil {
			return released, err
		}
	}
	return released, nil
}

// ReleaseForItem releases the live hold behind a removed line.
func (m *Manager) ReleaseForItem(ctx context.Context, item *models.CartItem) error {
	if item.ReservationID == nil {
		return nil
	}
	hold, err := m.findReservation(ctx, *item.ReservationID)
	if err != nil {
		return err
	}
	if hold != nil {
		if err := m.release(ctx, hold, enums.ReservationStatusReleased); err != nil {
			return err
		}
	}
	item.ReservationID = nil
	item.ReservationExpiresAt = nil
	return nil
}

// ReleaseForCart releases every active soft hold on the cart, used when the
// cart expires or is abandoned.
func (m *Manager) ReleaseForCart(ctx context.Context, cartID uuid.UUID) (int, error) {
	var holds []models.InventoryReservation
	err := m.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ? AND status = ?",
			enums.ReservationRefCart, cartID, enums.ReservationStatusActive).
		Find(&holds).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart reservations")
	}

	released := 0
	for i := range holds {
		if err := m.release(ctx, &holds[i], enums.ReservationStatusReleased); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

func (m *Manager) release(ctx context.Context, hold *models.InventoryReservation, status enums.ReservationStatus) error {
	claimed, err := m.claimAndDecrement(ctx, hold, status)
	if err != nil {
		return err
	}
	if claimed {
		return m.detachCartItem(ctx, hold)
	}
	return nil
}

// claimAndDecrement transitions the hold out of active and, only when this
// call won the claim, gives the reserved units back.
func (m *Manager) claimAndDecrement(ctx context.Context, hold *models.InventoryReservation, status enums.ReservationStatus) (bool, error) {
	claim := m.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("id = ? AND status = ?", hold.ID, enums.ReservationStatusActive).
		Update("status", status)
	if claim.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, claim.Error, "claim reservation")
	}
	if claim.RowsAffected == 0 {
		return false, nil
	}

	err := m.db.WithContext(ctx).
		Model(&models.VariantStock{}).
		Where("variant_id = ?", hold.VariantID).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", hold.Quantity)).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement reserved counter")
	}
	return true, nil
}

func (m *Manager) detachCartItem(ctx context.Context, hold *models.InventoryReservation) error {
	if hold.CartItemID == nil {
		return nil
	}
	err := m.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND reservation_id = ?", *hold.CartItemID, hold.ID).
		Updates(map[string]any{
			"reservation_id":         nil,
			"reservation_expires_at": nil,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach cart item")
	}
	return nil
}

func (m *Manager) findReservation(ctx context.Context, id uuid.UUID) (*models.InventoryReservation, error) {
	var hold models.InventoryReservation
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&hold).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return &hold, nil
}

func (m *Manager) availableQuantity(ctx context.Context, variantID uuid.UUID) (int, error) {
	var row models.VariantStock
	err := m.db.WithContext(ctx).Where("variant_id = ?", variantID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
	}
	available := row.StockQty - row.ReservedQty
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (m *Manager) isLive(hold *models.InventoryReservation, now time.Time) bool {
	if hold.Status != enums.ReservationStatusActive {
		return false
	}
	return hold.ExpiresAt == nil || hold.ExpiresAt.After(now)
}

func (m *Manager) softTTL() time.Duration {
	if m.cfg.SoftTTL > 0 {
		return m.cfg.SoftTTL
	}
	return 30 * time.Minute
}
