package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeReleaser struct {
	released int
	err      error
	calls    int
}

func (f *fakeReleaser) ReleaseExpired(ctx context.Context) (int, error) {
	f.calls++
	return f.released, f.err
}

func TestReservationSweepJobReleasesHolds(t *testing.T) {
	t.Parallel()

	releaser := &fakeReleaser{released: 3}
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:       testLogger(),
		Reservations: releaser,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if releaser.calls != 1 {
		t.Fatalf("expected one release call, got %d", releaser.calls)
	}
}

func TestReservationSweepJobPropagatesError(t *testing.T) {
	t.Parallel()

	releaser := &fakeReleaser{err: errors.New("db down")}
	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:       testLogger(),
		Reservations: releaser,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error to propagate")
	}
}
