package input

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/state"
)

// ChargerConfig configures the charger monitor.
type ChargerConfig struct {
	// Debounce is the minimum time between two accepted transitions.
	Debounce time.Duration
}

// DefaultChargerConfig is the charger timing of the device.
var DefaultChargerConfig = ChargerConfig{
	Debounce: 10 * time.Millisecond,
}

// Charger monitors the charger-present line. The line is active high: it is
// pulled down and reads high while a charger is connected.
type Charger struct {
	line    Line
	state   *state.State
	cfg     ChargerConfig
	logger  *slog.Logger
	release func()
	now     func() time.Time
}

// NewCharger creates a charger monitor that owns line. It claims the
// "charger" owner on st, which it releases when Run returns.
func NewCharger(line Line, st *state.State, cfg ChargerConfig, logger *slog.Logger) *Charger {
	return &Charger{
		line:    line,
		state:   st,
		cfg:     cfg,
		logger:  logger.With("task", "charger"),
		release: st.Claim("charger"),
		now:     time.Now,
	}
}

// Run monitors the charger until the exit signal fires or ctx is done.
func (c *Charger) Run(ctx context.Context) error {
	defer c.release()

	current := state.Unplugged
	if c.line.High() {
		current = state.PluggedIn
	}
	c.state.SetChargerState(current)

	debounce := newDebouncer(c.cfg.Debounce, c.now())

	for {
		// While plugged in, wait for the line to drop; otherwise wait for it
		// to rise.
		result, err := race(ctx, c.line, !current.IsPluggedIn(), nil, c.state.Exit.Done())
		if err != nil {
			return errors.Wrap(err, "charger wait")
		}

		if result == outcomeExit {
			c.logger.Debug("exiting charger monitor")
			return nil
		}

		event := state.ChargerUnplugged
		if current.IsPluggedIn() {
			current = state.Unplugged
		} else {
			current = state.PluggedIn
			event = state.ChargerPluggedIn
		}

		if !debounce.accept(c.now()) {
			c.logger.Debug("debounced charger edge", "expect", current)
			continue
		}

		c.state.SetChargerState(current)
		c.logger.Debug("charger event", "event", event)
		if err := sendEvent(ctx, c.state, event); err != nil {
			return err
		}
	}
}
