package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/marketloop/cartengine/internal/reservation"
	"github.com/marketloop/cartengine/pkg/db/models"
	"github.com/marketloop/cartengine/pkg/enums"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/outbox"
	"github.com/marketloop/cartengine/pkg/outbox/payloads"
)

const defaultExpiryBatch = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleCartReader interface {
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Cart, error)
	FindInactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CartExpiryJobParams configure the cart TTL sweep.
type CartExpiryJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Carts          staleCartReader
	Reservations   *reservation.Manager
	Outbox         outboxEmitter
	AbandonedAfter time.Duration
	BatchSize      int
}

// NewCartExpiryJob builds the job that expires carts past their TTL and
// flags long-inactive carts as abandoned, releasing their holds either way.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &cartExpiryJob{
		logg:           params.Logger,
		db:             params.DB,
		carts:          params.Carts,
		reservations:   params.Reservations,
		outbox:         params.Outbox,
		abandonedAfter: params.AbandonedAfter,
		batch:          batch,
		now:            time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg           *logger.Logger
	db             txRunner
	carts          staleCartReader
	reservations   *reservation.Manager
	outbox         outboxEmitter
	abandonedAfter time.Duration
	batch          int
	now            func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.expireCarts(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.abandonCarts(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

func (j *cartExpiryJob) expireCarts(ctx context.Context) error {
	now := j.now().UTC()
	carts, err := j.carts.FindExpired(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("query expired carts: %w", err)
	}
	count := 0
	for _, cart := range carts {
		if err := j.closeCart(ctx, cart, enums.CartStatusExpired, enums.EventCartExpired); err != nil {
			return err
		}
		count++
	}
	logCtx := j.logg.WithField(ctx, "count", count)
	j.logg.Info(logCtx, "cart expiration loop complete")
	return nil
}

func (j *cartExpiryJob) abandonCarts(ctx context.Context) error {
	if j.abandonedAfter <= 0 {
		return nil
	}
	cutoff := j.now().UTC().Add(-j.abandonedAfter)
	carts, err := j.carts.FindInactiveSince(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query inactive carts: %w", err)
	}
	count := 0
	for _, cart := range carts {
		if err := j.closeCart(ctx, cart, enums.CartStatusAbandoned, enums.EventCartAbandoned); err != nil {
			return err
		}
		count++
	}
	logCtx := j.logg.WithField(ctx, "count", count)
	j.logg.Info(logCtx, "cart abandonment loop complete")
	return nil
}

// closeCart transitions one cart out of active, releasing its holds in the
// same transaction. The status guard makes a rerun a no-op.
func (j *cartExpiryJob) closeCart(ctx context.Context, cart models.Cart, status enums.CartStatus, eventType enums.OutboxEventType) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Model(&models.Cart{}).
			Where("id = ? AND status = ?", cart.ID, enums.CartStatusActive).
			Update("status", status)
		if res.Error != nil {
			return fmt.Errorf("close cart %s: %w", cart.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if _, err := j.reservations.WithTx(tx).ReleaseForCart(ctx, cart.ID); err != nil {
			return err
		}

		now := j.now().UTC()
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateCart,
			AggregateID:   cart.ID,
			Owner:         cart.Owner().Key(),
			Sequence:      cart.Version,
			OccurredAt:    now,
			Data: payloads.CartStatusEvent{
				CartID:    cart.ID,
				Status:    status.String(),
				ChangedAt: now,
			},
		})
	})
}
