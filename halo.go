// Package halo is the firmware of an LED wearable. A Device runs four tasks
// over one shared state: the mode controller, the button and charger
// monitors, and the renderer.
package halo

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"libdb.so/halo/input"
	"libdb.so/halo/power"
	"libdb.so/halo/render"
	"libdb.so/halo/state"
)

// ErrPoweredDown is returned by Device.Run once the device has gone to sleep
// and woken up again. Hardware that reboots on wake never sees it; a
// simulated device should be recreated from scratch.
var ErrPoweredDown = errors.New("device powered down")

// Hardware is the set of peripherals a Device takes ownership of. Each one is
// handed to exactly one task.
type Hardware struct {
	// Button is the push button line, active low.
	Button input.Line
	// Charger is the charger-present line, active high.
	Charger input.Line
	// Strip transmits encoded frames to the LED strip.
	Strip render.Transmitter
	// Power puts the device to sleep.
	Power power.Sleeper
}

func (hw Hardware) validate() error {
	switch {
	case hw.Button == nil:
		return errors.New("missing button line")
	case hw.Charger == nil:
		return errors.New("missing charger line")
	case hw.Strip == nil:
		return errors.New("missing strip transmitter")
	case hw.Power == nil:
		return errors.New("missing power control")
	}
	return nil
}

// Observer is notified of what the mode controller does. Its methods are
// called from the controller task and must not block.
type Observer interface {
	// ModeChanged is called after every mode transition.
	ModeChanged(from, to state.Mode)
	// EventReceived is called for every event the controller dequeues.
	EventReceived(ev state.Event)
}

// Option configures a Device.
type Option func(*Device)

// WithObserver sets the controller observer.
func WithObserver(o Observer) Option {
	return func(d *Device) { d.controller.observer = o }
}

// WithFrameObserver sets the renderer's frame observer.
func WithFrameObserver(o render.Observer) Option {
	return func(d *Device) { d.renderer.SetObserver(o) }
}

// Device is one boot of the device.
type Device struct {
	cfg    *Config
	logger *slog.Logger
	state  *state.State

	button     *input.Button
	charger    *input.Charger
	renderer   *render.Renderer
	controller *controller
}

// NewDevice creates a device that owns hw.
func NewDevice(cfg *Config, hw Hardware, logger *slog.Logger, opts ...Option) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if err := hw.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid hardware")
	}

	st := state.New(cfg.Timing.QueueSize)

	d := &Device{
		cfg:      cfg,
		logger:   logger,
		state:    st,
		button:   input.NewButton(hw.Button, st, cfg.buttonConfig(), logger),
		charger:  input.NewCharger(hw.Charger, st, cfg.chargerConfig(), logger),
		renderer: render.New(st, hw.Strip, cfg.renderConfig(), logger),
		controller: &controller{
			state:   st,
			cfg:     cfg,
			sleeper: hw.Power,
			logger:  logger.With("task", "controller"),
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// State returns the device's shared state.
func (d *Device) State() *state.State {
	return d.state
}

// Run runs every task until the device powers down or a task fails. It
// returns ErrPoweredDown after a successful sleep.
func (d *Device) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return d.button.Run(ctx)
	})
	errg.Go(func() error {
		return d.charger.Run(ctx)
	})
	errg.Go(func() error {
		return d.renderer.Run(ctx)
	})
	errg.Go(func() error {
		return d.controller.run(ctx)
	})
	return errg.Wait()
}
