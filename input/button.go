package input

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/state"
)

// ButtonConfig configures the button monitor.
type ButtonConfig struct {
	// Debounce is the minimum time between two accepted transitions.
	Debounce time.Duration
	// HoldTime is how long the button must be held before ButtonHold is
	// emitted.
	HoldTime time.Duration
}

// DefaultButtonConfig is the button timing of the device.
var DefaultButtonConfig = ButtonConfig{
	Debounce: 1 * time.Millisecond,
	HoldTime: 1500 * time.Millisecond,
}

// Button monitors the push button. The line is active low: it is pulled up
// and reads low while the button is pressed.
type Button struct {
	line    Line
	state   *state.State
	cfg     ButtonConfig
	logger  *slog.Logger
	release func()
	now     func() time.Time
}

// NewButton creates a button monitor that owns line. It claims the "button"
// owner on st, which it releases when Run returns.
func NewButton(line Line, st *state.State, cfg ButtonConfig, logger *slog.Logger) *Button {
	return &Button{
		line:    line,
		state:   st,
		cfg:     cfg,
		logger:  logger.With("task", "button"),
		release: st.Claim("button"),
		now:     time.Now,
	}
}

// Run monitors the button until the exit signal fires or ctx is done.
func (b *Button) Run(ctx context.Context) error {
	defer b.release()

	// current is what the monitor expects the line to be doing. It follows
	// every edge, including rejected ones; the shared state only follows
	// accepted edges.
	current := state.NotHeld
	if !b.line.High() {
		current = state.Held(b.now())
	}
	b.state.SetButtonState(current)

	debounce := newDebouncer(b.cfg.Debounce, b.now())
	holdSent := false

	for {
		var hold *time.Timer
		var deadline <-chan time.Time
		if current.IsHeld() && !holdSent {
			hold = time.NewTimer(current.Since().Add(b.cfg.HoldTime).Sub(b.now()))
			deadline = hold.C
		}

		// While held, wait for the line to be released (high); otherwise
		// wait for it to be pressed (low).
		result, err := race(ctx, b.line, current.IsHeld(), deadline, b.state.Exit.Done())
		if hold != nil {
			hold.Stop()
		}
		if err != nil {
			return errors.Wrap(err, "button wait")
		}

		switch result {
		case outcomeExit:
			b.logger.Debug("exiting button monitor")
			return nil

		case outcomeDeadline:
			holdSent = true
			if err := b.send(ctx, state.ButtonHold); err != nil {
				return err
			}

		case outcomeLevel:
			now := b.now()
			event := state.ButtonRelease
			if current.IsHeld() {
				current = state.NotHeld
			} else {
				current = state.Held(now)
				event = state.ButtonPress
			}
			holdSent = false

			if !debounce.accept(now) {
				b.logger.Debug("debounced button edge", "expect", current)
				continue
			}

			b.state.SetButtonState(current)
			if err := b.send(ctx, event); err != nil {
				return err
			}
		}
	}
}

func (b *Button) send(ctx context.Context, ev state.Event) error {
	b.logger.Debug("button event", "event", ev)
	return sendEvent(ctx, b.state, ev)
}

// sendEvent queues ev, treating an exit during a blocked send as a clean
// shutdown.
func sendEvent(ctx context.Context, st *state.State, ev state.Event) error {
	err := st.Send(ctx, ev)
	if errors.Is(err, state.ErrExited) {
		return nil
	}
	return errors.Wrapf(err, "send %v", ev)
}

// debouncer rejects transitions that arrive within window of the last
// accepted one.
type debouncer struct {
	window time.Duration
	last   time.Time
}

func newDebouncer(window time.Duration, start time.Time) *debouncer {
	return &debouncer{window: window, last: start}
}

func (d *debouncer) accept(t time.Time) bool {
	if t.Sub(d.last) < d.window {
		return false
	}
	d.last = t
	return true
}
