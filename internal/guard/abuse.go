package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/marketloop/cartengine/pkg/config"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/types"
)

// abuseStore is the slice of the redis client the monitor needs.
type abuseStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	RateLimitKey(scope string) string
	RestrictionKey(owner string) string
}

// AbuseMonitor flags rapid cart creation, inventory hoarding, and repeated
// invalid promotion codes inside sliding windows. It is best-effort: a broken
// redis degrades to logging, it never drops cart data.
type AbuseMonitor struct {
	store abuseStore
	cfg   config.AbuseConfig
	log   *logger.Logger
}

// NewAbuseMonitor constructs the monitor.
func NewAbuseMonitor(store abuseStore, cfg config.AbuseConfig, log *logger.Logger) (*AbuseMonitor, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &AbuseMonitor{store: store, cfg: cfg, log: log}, nil
}

// NoteCartCreated counts a cart creation for the owner. Creation is the one
// operation where a trip blocks: the caller receives a rate-limit error.
func (m *AbuseMonitor) NoteCartCreated(ctx context.Context, owner types.OwnerRef) error {
	key := m.store.RateLimitKey("cart_create:" + owner.Key())
	count, err := m.store.IncrWithTTL(ctx, key, m.cfg.CartCreateWindow)
	if err != nil {
		m.log.Warn(ctx, "abuse monitor unavailable: "+err.Error())
		return nil
	}
	if m.cfg.CartCreateLimit > 0 && count > int64(m.cfg.CartCreateLimit) {
		m.restrict(ctx, owner, "rapid cart creation")
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many carts created")
	}
	return nil
}

// NoteInvalidPromo counts an invalid promotion-code attempt. Never blocks the
// mutation that carried the bad code.
func (m *AbuseMonitor) NoteInvalidPromo(ctx context.Context, owner types.OwnerRef) {
	key := m.store.RateLimitKey("invalid_promo:" + owner.Key())
	count, err := m.store.IncrWithTTL(ctx, key, m.cfg.InvalidPromoWindow)
	if err != nil {
		m.log.Warn(ctx, "abuse monitor unavailable: "+err.Error())
		return
	}
	if m.cfg.InvalidPromoLimit > 0 && count > int64(m.cfg.InvalidPromoLimit) {
		m.restrict(ctx, owner, "repeated invalid promotion codes")
	}
}

// NoteReservedTotal checks the owner's aggregate reserved quantity across all
// active carts against the hoarding threshold.
func (m *AbuseMonitor) NoteReservedTotal(ctx context.Context, owner types.OwnerRef, totalReserved int) {
	if m.cfg.HoardingThreshold <= 0 || totalReserved <= m.cfg.HoardingThreshold {
		return
	}
	m.restrict(ctx, owner, "inventory hoarding")
}

// IsRestricted reports whether a soft restriction is in force for the owner.
// Redis errors read as unrestricted.
func (m *AbuseMonitor) IsRestricted(ctx context.Context, owner types.OwnerRef) bool {
	restricted, err := m.store.Exists(ctx, m.store.RestrictionKey(owner.Key()))
	if err != nil {
		m.log.Warn(ctx, "abuse restriction lookup failed: "+err.Error())
		return false
	}
	return restricted
}

func (m *AbuseMonitor) restrict(ctx context.Context, owner types.OwnerRef, reason string) {
	logCtx := m.log.WithOwner(ctx, owner.Key())
	m.log.Warn(logCtx, "abuse flagged: "+reason)
	key := m.store.RestrictionKey(owner.Key())
	if err := m.store.Set(ctx, key, reason, m.cfg.RestrictionDuration); err != nil {
		m.log.Warn(ctx, "abuse restriction write failed: "+err.Error())
	}
}
