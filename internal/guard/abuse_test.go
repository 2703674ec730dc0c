package guard

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/marketloop/cartengine/pkg/config"
	pkgerrors "github.com/marketloop/cartengine/pkg/errors"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/types"
)

type stubStore struct {
	counts     map[string]int64
	restricted map[string]string
	failIncr   bool
	failExists bool
}

func newStubStore() *stubStore {
	return &stubStore{counts: map[string]int64{}, restricted: map[string]string{}}
}

func (s *stubStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.failIncr {
		return 0, errors.New("redis down")
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *stubStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.restricted[key] = "set"
	return nil
}

func (s *stubStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.failExists {
		return false, errors.New("redis down")
	}
	_, ok := s.restricted[key]
	return ok, nil
}

func (s *stubStore) RateLimitKey(scope string) string   { return "rl:" + scope }
func (s *stubStore) RestrictionKey(owner string) string { return "rs:" + owner }

func newTestMonitor(t *testing.T, store *stubStore) *AbuseMonitor {
	t.Helper()
	cfg := config.AbuseConfig{
		CartCreateWindow:    10 * time.Minute,
		CartCreateLimit:     2,
		InvalidPromoWindow:  15 * time.Minute,
		InvalidPromoLimit:   2,
		HoardingThreshold:   100,
		RestrictionDuration: 30 * time.Minute,
	}
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	monitor, err := NewAbuseMonitor(store, cfg, log)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return monitor
}

func TestNoteCartCreatedTripsLimit(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	monitor := newTestMonitor(t, store)
	owner := types.SessionOwner("burst")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := monitor.NoteCartCreated(ctx, owner); err != nil {
			t.Fatalf("creation %d should pass: %v", i, err)
		}
	}
	err := monitor.NoteCartCreated(ctx, owner)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeRateLimit {
		t.Fatalf("expected rate limit on third creation, got %v", err)
	}
	if !monitor.IsRestricted(ctx, owner) {
		t.Fatal("expected soft restriction recorded")
	}
}

func TestNoteCartCreatedSurvivesRedisOutage(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.failIncr = true
	monitor := newTestMonitor(t, store)

	if err := monitor.NoteCartCreated(context.Background(), types.SessionOwner("s")); err != nil {
		t.Fatalf("redis outage must not block creation: %v", err)
	}
}

func TestNoteInvalidPromoRestrictsWithoutBlocking(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	monitor := newTestMonitor(t, store)
	owner := types.SessionOwner("guesser")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		monitor.NoteInvalidPromo(ctx, owner)
	}
	if !monitor.IsRestricted(ctx, owner) {
		t.Fatal("expected restriction after repeated invalid codes")
	}
}

func TestNoteReservedTotalHoarding(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	monitor := newTestMonitor(t, store)
	hoarder := types.SessionOwner("hoarder")
	ctx := context.Background()
	monitor.NoteReservedTotal(ctx, hoarder, 99)
	if monitor.IsRestricted(ctx, hoarder) {
		t.Fatal("below threshold must not restrict")
	}
	monitor.NoteReservedTotal(ctx, hoarder, 101)
	if !monitor.IsRestricted(ctx, hoarder) {
		t.Fatal("expected restriction above threshold")
	}
}

func TestIsRestrictedReadsOpenOnError(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.failExists = true
	monitor := newTestMonitor(t, store)

	if monitor.IsRestricted(context.Background(), types.SessionOwner("s")) {
		t.Fatal("redis errors must read as unrestricted")
	}
}
