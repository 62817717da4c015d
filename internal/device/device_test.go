package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Agrid-Dev/acmock/internal/conditioner"
	"github.com/Agrid-Dev/acmock/internal/thermal"
)

func newTestConditioner(t *testing.T) *conditioner.Conditioner {
	t.Helper()
	m, err := thermal.New(thermal.DefaultParams())
	require.NoError(t, err)
	c, err := conditioner.New(conditioner.Snapshot{
		Enabled:                true,
		TemperatureSetpoint:    22,
		TemperatureSetpointMin: 16,
		TemperatureSetpointMax: 28,
		Mode:                   conditioner.ModeCool,
		FanSpeed:               conditioner.FanAuto,
		IndoorTemperature:      24,
		IndoorHumidity:         50,
		OutdoorTemperature:     34,
		OutdoorHumidity:        70,
	}, m, conditioner.RegulatorParams{TriggerHysteresis: 1, TargetHysteresis: 0.5})
	require.NoError(t, err)
	return c
}

func TestNewDevice(t *testing.T) {
	c := newTestConditioner(t)
	d := New("test-id", c, 0, nil)

	assert.Equal(t, "test-id", d.ID)
	assert.Same(t, c, d.C)
	assert.Equal(t, time.Second, d.Interval)
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := New("dev", newTestConditioner(t), 5*time.Millisecond, nil)
	started := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, runner) }()

	<-started
	require.Eventually(t, func() bool { return d.C.Get().Elapsed > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsFirstFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("listen failed")
	d := New("dev", newTestConditioner(t), 5*time.Millisecond, nil)

	stopped := make(chan struct{})
	waiting := RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	failing := RunnerFunc(func(context.Context) error { return boom })

	err := d.Run(context.Background(), waiting, failing)
	assert.ErrorIs(t, err, boom)

	select {
	case <-stopped:
	default:
		t.Fatal("other runners should be stopped")
	}
}
