package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/internal/cart"
	"github.com/marketloop/cartengine/internal/reservation"
	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/outbox"
)

type gormTx struct {
	db *gorm.DB
}

func (r gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newExpiryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Cart{},
		&models.CartItem{},
		&models.VariantStock{},
		&models.InventoryReservation{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newExpiryJob(t *testing.T, db *gorm.DB, abandonedAfter time.Duration) *cartExpiryJob {
	t.Helper()
	log := testLogger()
	events := outbox.NewService(outbox.NewRepository(db), log)
	reservations, err := reservation.NewManager(db, events, config.ReservationConfig{SoftTTL: 30 * time.Minute}, log)
	if err != nil {
		t.Fatalf("new reservation manager: %v", err)
	}
	jobIface, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger:         log,
		DB:             gormTx{db: db},
		Carts:          cart.NewRepository(db),
		Reservations:   reservations,
		Outbox:         events,
		AbandonedAfter: abandonedAfter,
	})
	if err != nil {
		t.Fatalf("new expiry job: %v", err)
	}
	job, ok := jobIface.(*cartExpiryJob)
	if !ok {
		t.Fatalf("expected cartExpiryJob, got %T", jobIface)
	}
	return job
}

func seedActiveCart(t *testing.T, db *gorm.DB, expiresAt, lastActivity time.Time) models.Cart {
	t.Helper()
	session := "sess-" + uuid.NewString()
	row := models.Cart{
		ID:             uuid.New(),
		SessionID:      &session,
		Status:         enums.CartStatusActive,
		Currency:       enums.CurrencyUSD,
		ExpiresAt:      expiresAt,
		LastActivityAt: lastActivity,
		Version:        1,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return row
}

func TestCartExpiryJobExpiresAndReleases(t *testing.T) {
	t.Parallel()

	db := newExpiryTestDB(t)
	job := newExpiryJob(t, db, 0)
	now := time.Now().UTC()

	stale := seedActiveCart(t, db, now.Add(-time.Hour), now.Add(-2*time.Hour))
	fresh := seedActiveCart(t, db, now.Add(time.Hour), now)

	// Give the stale cart a live hold so the sweep has something to release.
	stock := models.VariantStock{
		VariantID:  uuid.New(),
		ProductID:  uuid.New(),
		SellerID:   uuid.New(),
		CategoryID: uuid.New(),
		StockQty:   10,
		Active:     true,
	}
	if err := db.Create(&stock).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	staleCart := models.Cart{
		ID:     stale.ID,
		Status: enums.CartStatusActive,
		Items: []models.CartItem{{
			ID:        uuid.New(),
			CartID:    stale.ID,
			VariantID: stock.VariantID,
			SellerID:  stock.SellerID,
			Quantity:  2,
			Available: true,
		}},
	}
	if err := db.Create(&staleCart.Items[0]).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if err := job.reservations.ReserveForCart(context.Background(), &staleCart); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var staleRow, freshRow models.Cart
	if err := db.First(&staleRow, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("load stale: %v", err)
	}
	if err := db.First(&freshRow, "id = ?", fresh.ID).Error; err != nil {
		t.Fatalf("load fresh: %v", err)
	}
	if staleRow.Status != enums.CartStatusExpired {
		t.Fatalf("expected stale cart expired, got %s", staleRow.Status)
	}
	if freshRow.Status != enums.CartStatusActive {
		t.Fatalf("fresh cart must stay active, got %s", freshRow.Status)
	}

	var reserved models.VariantStock
	if err := db.First(&reserved, "variant_id = ?", stock.VariantID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if reserved.ReservedQty != 0 {
		t.Fatalf("expected holds released, got %d reserved", reserved.ReservedQty)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCartExpired).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one expiry event, got %d", events)
	}

	// A second run finds nothing to do.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCartExpired).
		Count(&events).Error; err != nil {
		t.Fatalf("recount events: %v", err)
	}
	if events != 1 {
		t.Fatalf("rerun must not emit again, got %d", events)
	}
}

func TestCartExpiryJobAbandonsInactiveCarts(t *testing.T) {
	t.Parallel()

	db := newExpiryTestDB(t)
	job := newExpiryJob(t, db, 7*24*time.Hour)
	now := time.Now().UTC()

	idle := seedActiveCart(t, db, now.Add(24*time.Hour), now.Add(-8*24*time.Hour))
	active := seedActiveCart(t, db, now.Add(24*time.Hour), now.Add(-time.Hour))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var idleRow, activeRow models.Cart
	if err := db.First(&idleRow, "id = ?", idle.ID).Error; err != nil {
		t.Fatalf("load idle: %v", err)
	}
	if err := db.First(&activeRow, "id = ?", active.ID).Error; err != nil {
		t.Fatalf("load active: %v", err)
	}
	if idleRow.Status != enums.CartStatusAbandoned {
		t.Fatalf("expected idle cart abandoned, got %s", idleRow.Status)
	}
	if activeRow.Status != enums.CartStatusActive {
		t.Fatalf("recently active cart must stay active, got %s", activeRow.Status)
	}
}
