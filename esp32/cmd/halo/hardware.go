package main

import (
	"context"
	"machine"
	"runtime/interrupt"
	"time"

	"libdb.so/halo/input"
	"libdb.so/halo/power"
	"libdb.so/halo/pulse"
	"tinygo.org/x/drivers/ws2812"
)

const pollInterval = time.Millisecond

// pinLine is an input.Line read by polling a GPIO pin.
type pinLine struct {
	pin machine.Pin
}

var _ input.Line = pinLine{}

func newPinLine(pin machine.Pin, mode machine.PinMode) pinLine {
	pin.Configure(machine.PinConfig{Mode: mode})
	return pinLine{pin}
}

func (l pinLine) High() bool { return l.pin.Get() }

func (l pinLine) WaitLevel(ctx context.Context, high bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for l.pin.Get() != high {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// strip transmits encoded frames by bit-banging them onto the strip. The
// pixels are decoded back into bytes first, since the board has no pulse
// peripheral driver.
type strip struct {
	led ws2812.Device
}

func newStrip(pin machine.Pin) *strip {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &strip{led: ws2812.New(pin)}
}

func (s *strip) Transmit(ctx context.Context, frame []pulse.Symbol) error {
	grb, err := pulse.DecodeFrame(frame)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	critical(func() {
		for _, b := range grb {
			s.led.WriteByte(b)
		}
	})

	return nil
}

func critical(f func()) {
	state := interrupt.Disable()
	f()
	interrupt.Restore(state)
}

// pinSleeper idles until a wake line reaches its level.
type pinSleeper struct {
	lines map[string]pinLine
}

func (s pinSleeper) Sleep(ctx context.Context, wake ...power.WakeSource) error {
	ticker := time.NewTicker(10 * pollInterval)
	defer ticker.Stop()

	for {
		for _, w := range wake {
			if l, ok := s.lines[w.Name]; ok && l.High() == w.High {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
