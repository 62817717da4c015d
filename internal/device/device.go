package device

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
)

// Runner is a controller bound to the device for the lifetime of Run.
type Runner interface {
	Run(ctx context.Context) error
}

type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

type Device struct {
	ID string
	C  *conditioner.Conditioner

	// Interval is the wall-clock period of the simulation loop.
	Interval time.Duration
	log      *zap.Logger
}

func New(id string, c *conditioner.Conditioner, interval time.Duration, log *zap.Logger) *Device {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{ID: id, C: c, Interval: interval, log: log.With(zap.String("device_id", id))}
}

// Run drives the simulation loop and every runner until ctx is canceled
// or one of them fails, in which case the others are stopped and the
// first error is returned. A canceled ctx is a clean shutdown.
func (d *Device) Run(ctx context.Context, runners ...Runner) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.C.Run(gctx, d.Interval)
	})
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(gctx)
		})
	}

	d.log.Info("device started", zap.Int("controllers", len(runners)), zap.Duration("interval", d.Interval))
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		d.log.Info("device stopped")
		return nil
	}
	d.log.Error("device stopped", zap.Error(err))
	return err
}
