package reservation

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.VariantStock{},
		&models.InventoryReservation{},
		&models.CartItem{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestManager(t *testing.T) (*Manager, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	events := outbox.NewService(outbox.NewRepository(db), log)
	manager, err := NewManager(db, events, config.ReservationConfig{SoftTTL: 30 * time.Minute}, log)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager, db
}

func seedStock(t *testing.T, db *gorm.DB, qty int) uuid.UUID {
	t.Helper()
	variant := uuid.New()
	stock := models.VariantStock{
		VariantID:  variant,
		ProductID:  uuid.New(),
		SellerID:   uuid.New(),
		CategoryID: uuid.New(),
		UnitPrice:  decimal.NewFromInt(10),
		StockQty:   qty,
		Active:     true,
	}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return variant
}

func cartWithLine(variant uuid.UUID, qty int) *models.Cart {
	cartID := uuid.New()
	return &models.Cart{
		ID:     cartID,
		Status: enums.CartStatusActive,
		Items: []models.CartItem{{
			ID:        uuid.New(),
			CartID:    cartID,
			VariantID: variant,
			SellerID:  uuid.New(),
			Quantity:  qty,
			Available: true,
		}},
	}
}

func reservedQty(t *testing.T, db *gorm.DB, variant uuid.UUID) int {
	t.Helper()
	var stock models.VariantStock
	if err := db.First(&stock, "variant_id = ?", variant).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return stock.ReservedQty
}

func TestReserveForCartCreatesSoftHold(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 3)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	item := cart.Items[0]
	if !item.Available || item.AvailabilityReason != enums.AvailabilityInStock {
		t.Fatalf("expected line available, got %+v", item)
	}
	if item.ReservationID == nil || item.ReservationExpiresAt == nil {
		t.Fatalf("expected reservation attached to line")
	}
	if got := reservedQty(t, db, variant); got != 3 {
		t.Fatalf("expected reserved counter 3, got %d", got)
	}
}

func TestReserveForCartLastUnit(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 1)

	first := cartWithLine(variant, 1)
	if err := manager.ReserveForCart(context.Background(), first); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if !first.Items[0].Available {
		t.Fatalf("expected first cart to win the unit")
	}

	second := cartWithLine(variant, 1)
	if err := manager.ReserveForCart(context.Background(), second); err != nil {
		t.Fatalf("second reserve must not fail the refresh: %v", err)
	}
	item := second.Items[0]
	if item.Available || item.AvailabilityReason != enums.AvailabilityOutOfStock {
		t.Fatalf("expected second cart out of stock, got %+v", item)
	}
	if got := reservedQty(t, db, variant); got != 1 {
		t.Fatalf("counter must never overshoot stock, got %d", got)
	}
}

func TestReserveForCartPartialAvailability(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 5)
	cart := cartWithLine(variant, 10)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	item := cart.Items[0]
	if item.Available || item.AvailabilityReason != enums.AvailabilityPartial {
		t.Fatalf("expected partial availability, got %+v", item)
	}
	if got := reservedQty(t, db, variant); got != 0 {
		t.Fatalf("failed reserve must not move the counter, got %d", got)
	}
}

func TestReserveForCartKeepsLiveHold(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 2)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	holdID := *cart.Items[0].ReservationID

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if *cart.Items[0].ReservationID != holdID {
		t.Fatalf("live hold must be kept, got new reservation")
	}
	if got := reservedQty(t, db, variant); got != 2 {
		t.Fatalf("expected reserved counter unchanged at 2, got %d", got)
	}
}

func TestReserveForCartQuantityChangeReReserves(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 2)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	oldHold := *cart.Items[0].ReservationID

	cart.Items[0].Quantity = 4
	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	if *cart.Items[0].ReservationID == oldHold {
		t.Fatalf("expected a fresh hold after quantity change")
	}
	if got := reservedQty(t, db, variant); got != 4 {
		t.Fatalf("expected reserved counter 4 after re-reserve, got %d", got)
	}
	var stale models.InventoryReservation
	if err := db.First(&stale, "id = ?", oldHold).Error; err != nil {
		t.Fatalf("load stale hold: %v", err)
	}
	if stale.Status != enums.ReservationStatusReleased {
		t.Fatalf("expected stale hold released, got %s", stale.Status)
	}
}

func TestConvertToHardIsIdempotent(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 2)
	orderID := uuid.New()

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := manager.ConvertToHard(context.Background(), cart.ID, orderID); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	if err := manager.ConvertToHard(context.Background(), cart.ID, orderID); err != nil {
		t.Fatalf("second convert: %v", err)
	}

	var hard int64
	if err := db.Model(&models.InventoryReservation{}).
		Where("ref_type = ? AND ref_id = ?", enums.ReservationRefOrder, orderID).
		Count(&hard).Error; err != nil {
		t.Fatalf("count hard holds: %v", err)
	}
	if hard != 1 {
		t.Fatalf("expected exactly one hard hold, got %d", hard)
	}
	// The counter transfers to the order, it is not incremented again.
	if got := reservedQty(t, db, variant); got != 2 {
		t.Fatalf("expected reserved counter still 2, got %d", got)
	}
}

func TestConvertToHardFailsOnExpiredHold(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 2)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Move past the hold's expiry; the row still says active, the sweep has
	// not run yet.
	manager.now = func() time.Time { return time.Now().Add(time.Hour) }

	err := manager.ConvertToHard(context.Background(), cart.ID, uuid.New())
	if err == nil {
		t.Fatal("expected conversion to fail on expired hold")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficient {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseExpiredDecrementsExactlyOnce(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 3)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	manager.now = func() time.Time { return time.Now().Add(time.Hour) }

	released, err := manager.ReleaseExpired(context.Background())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one hold released, got %d", released)
	}
	if got := reservedQty(t, db, variant); got != 0 {
		t.Fatalf("expected reserved counter 0, got %d", got)
	}

	released, err = manager.ReleaseExpired(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if released != 0 {
		t.Fatalf("second sweep must be a no-op, released %d", released)
	}
	if got := reservedQty(t, db, variant); got != 0 {
		t.Fatalf("counter must not be decremented twice, got %d", got)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventReservationExpired).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one expiry event, got %d", events)
	}
}

func TestReleaseForCartReturnsStock(t *testing.T) {
	t.Parallel()

	manager, db := newTestManager(t)
	variant := seedStock(t, db, 10)
	cart := cartWithLine(variant, 4)

	if err := manager.ReserveForCart(context.Background(), cart); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	released, err := manager.ReleaseForCart(context.Background(), cart.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one hold released, got %d", released)
	}
	if got := reservedQty(t, db, variant); got != 0 {
		t.Fatalf("expected reserved counter 0, got %d", got)
	}
}
