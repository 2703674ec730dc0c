package cron

import (
	"context"
	"fmt"

	"github.com/marketloop/cartengine/pkg/logger"
)

type expiredHoldReleaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

// ReservationSweepJobParams configure the expired-hold sweep.
type ReservationSweepJobParams struct {
	Logger       *logger.Logger
	Reservations expiredHoldReleaser
}

// NewReservationSweepJob builds the job that returns expired soft holds to
// available stock.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation manager required")
	}
	return &reservationSweepJob{
		logg:         params.Logger,
		reservations: params.Reservations,
	}, nil
}

type reservationSweepJob struct {
	logg         *logger.Logger
	reservations expiredHoldReleaser
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	released, err := j.reservations.ReleaseExpired(ctx)
	if err != nil {
		return fmt.Errorf("release expired holds: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "released", released)
	j.logg.Info(logCtx, "reservation sweep complete")
	return nil
}
