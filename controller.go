package halo

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/effect"
	"libdb.so/halo/power"
	"libdb.so/halo/state"
)

// wakeSources are the lines that wake the device from sleep: the button
// being pressed, or a charger being connected.
var wakeSources = []power.WakeSource{
	{Name: "button", High: false},
	{Name: "charger", High: true},
}

// controller is the mode state machine. Each mode runs to completion and
// returns the next mode; modes that wait do so on the event queue or a timer.
type controller struct {
	state    *state.State
	cfg      *Config
	sleeper  power.Sleeper
	logger   *slog.Logger
	observer Observer

	// initialHold is whether the button has been held since boot without
	// being let go.
	initialHold bool
}

func (c *controller) run(ctx context.Context) error {
	for {
		from := c.state.Mode()

		to, err := c.step(ctx, from)
		if err != nil {
			return err
		}

		if to != from {
			c.logger.Info("mode changed", "from", from, "to", to)
			c.state.SetMode(to)
			if c.observer != nil {
				c.observer.ModeChanged(from, to)
			}
		}
	}
}

func (c *controller) step(ctx context.Context, mode state.Mode) (state.Mode, error) {
	switch mode {
	case state.PreStartup:
		return c.preStartup(ctx)
	case state.Startup:
		return c.startup(ctx)
	case state.PreCharging:
		c.fadeIn(c.cfg.Visuals.Charging.Effect())
		return state.Charging, nil
	case state.Charging:
		return c.charging(ctx)
	case state.PreMain:
		c.fadeIn(c.cfg.Visuals.Main.Effect())
		return state.Main, nil
	case state.Main:
		return c.main(ctx)
	case state.PrePairing:
		return state.Pairing, nil
	case state.Pairing:
		return c.pairing(ctx)
	case state.Shutdown:
		return mode, c.shutdown(ctx)
	default:
		return mode, errors.Errorf("unknown mode %v", mode)
	}
}

func (c *controller) preStartup(ctx context.Context) (state.Mode, error) {
	// Give the monitors a moment to publish the initial line levels.
	if err := sleep(ctx, time.Duration(c.cfg.Timing.Settle)); err != nil {
		return state.PreStartup, err
	}

	c.initialHold = c.state.ButtonState().IsHeld()
	c.logger.Debug("sampled initial button state", "held", c.initialHold)

	return state.Startup, nil
}

func (c *controller) startup(ctx context.Context) (state.Mode, error) {
	if c.state.ChargerState().IsPluggedIn() {
		return state.PreCharging, nil
	}

	// Only a deliberate hold powers the device on.
	if !c.initialHold {
		return state.Shutdown, nil
	}

	ev, err := c.receive(ctx)
	if err != nil {
		return state.Startup, err
	}

	switch ev {
	case state.ButtonHold:
		c.logger.Info("turning on")
		c.state.SetPower(state.On)
		return state.PreMain, nil
	case state.ButtonPress, state.ButtonRelease:
		c.initialHold = false
		return state.Shutdown, nil
	case state.ChargerPluggedIn:
		return state.PreCharging, nil
	default:
		return state.Startup, nil
	}
}

func (c *controller) charging(ctx context.Context) (state.Mode, error) {
	ev, err := c.receive(ctx)
	if err != nil {
		return state.Charging, err
	}

	switch ev {
	case state.ButtonHold:
		p := c.state.TogglePower()
		c.logger.Info("toggled power while charging", "power", p)
	case state.ChargerUnplugged:
		if c.state.Power() == state.Off {
			return state.Shutdown, nil
		}
		c.fadeOut(time.Duration(c.cfg.Timing.FadeOut))
		return state.PreMain, nil
	}

	return state.Charging, nil
}

func (c *controller) main(ctx context.Context) (state.Mode, error) {
	ev, err := c.receive(ctx)
	if err != nil {
		return state.Main, err
	}

	switch ev {
	case state.ButtonPress, state.ButtonRelease:
		c.initialHold = false
	case state.ButtonHold:
		if c.initialHold {
			// The button has not been let go since the hold that turned the
			// device on. Pairing consumes the hold so that the next one powers
			// off.
			c.initialHold = false
			return state.Pairing, nil
		}
		c.logger.Info("turning off")
		c.state.SetPower(state.Off)
		return state.Shutdown, nil
	case state.ChargerPluggedIn:
		c.fadeOut(time.Duration(c.cfg.Timing.FadeOut))
		return state.PreCharging, nil
	}

	return state.Main, nil
}

func (c *controller) pairing(ctx context.Context) (state.Mode, error) {
	c.logger.Info("pairing")

	if err := sleep(ctx, time.Duration(c.cfg.Timing.PairingIdle)); err != nil {
		return state.Pairing, err
	}

	return state.Main, nil
}

// shutdown fades out, waits for the button to be let go, stops every other
// task and puts the device to sleep.
func (c *controller) shutdown(ctx context.Context) error {
	var fade time.Duration
	c.state.WithEffects(func(s *effect.Stack) {
		if s.Len() > 0 {
			fade = time.Duration(c.cfg.Timing.ShutdownFade)
			s.Push(effect.FadeOut(fade, s.Drain()))
		}
	})
	fadeDone := time.Now().Add(fade)

	// Sleeping with the button down would wake the device right away.
	if c.state.ButtonState().IsHeld() {
		c.logger.Info("waiting for the button to be released")
		for {
			ev, err := c.receive(ctx)
			if err != nil {
				return err
			}
			if ev == state.ButtonRelease {
				break
			}
		}
	}

	if err := sleep(ctx, time.Until(fadeDone)); err != nil {
		return err
	}

	c.logger.Info("shutting down")
	c.state.Exit.Fire()

	releaseCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Timing.ReleaseTimeout))
	err := c.state.WaitReleased(releaseCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn(
			"tasks did not release their hardware in time",
			"owners", c.state.Owners.Held())
	}

	c.logger.Info("going to sleep", "wake", power.FormatWakeSources(wakeSources))
	if err := c.sleeper.Sleep(ctx, wakeSources...); err != nil {
		return errors.Wrap(err, "sleep")
	}

	c.logger.Info("woke up")
	return ErrPoweredDown
}

func (c *controller) receive(ctx context.Context) (state.Event, error) {
	ev, err := c.state.Receive(ctx)
	if err != nil {
		return ev, errors.Wrap(err, "receive event")
	}

	c.logger.Debug("received event", "event", ev, "mode", c.state.Mode())
	if c.observer != nil {
		c.observer.EventReceived(ev)
	}

	return ev, nil
}

// fadeIn pushes e onto the stack behind a fade-in.
func (c *controller) fadeIn(e effect.Effect) {
	c.state.WithEffects(func(s *effect.Stack) {
		s.Push(effect.FadeIn(time.Duration(c.cfg.Timing.FadeIn), e))
	})
}

// fadeOut drains the stack into one bundle and fades it out.
func (c *controller) fadeOut(d time.Duration) {
	c.state.WithEffects(func(s *effect.Stack) {
		s.Push(effect.FadeOut(d, s.Drain()))
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
