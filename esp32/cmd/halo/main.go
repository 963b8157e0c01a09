package main

import (
	"context"
	"errors"
	"log/slog"
	"machine"

	"libdb.so/halo"
	"libdb.so/halo/esp32"
	"libdb.so/halo/state"
)

// statusObserver lights the status LED while the device is on.
type statusObserver struct{}

func (statusObserver) ModeChanged(from, to state.Mode) {
	esp32.StatusPin.Set(to == state.Main || to == state.Charging)
}

func (statusObserver) EventReceived(ev state.Event) {}

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	esp32.StatusPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	cfg := halo.DefaultConfig()
	cfg.Strip.LEDs = esp32.NumLEDs

	button := newPinLine(esp32.ButtonPin, machine.PinInputPullup)
	charger := newPinLine(esp32.ChargerPin, machine.PinInput)

	hw := halo.Hardware{
		Button:  button,
		Charger: charger,
		Strip:   newStrip(esp32.StripPin),
		Power: pinSleeper{lines: map[string]pinLine{
			"button":  button,
			"charger": charger,
		}},
	}

	for {
		d, err := halo.NewDevice(cfg, hw, logger, halo.WithObserver(statusObserver{}))
		if err != nil {
			logger.Error("failed to create device", "err", err)
			panic(err)
		}

		err = d.Run(context.Background())
		if !errors.Is(err, halo.ErrPoweredDown) {
			logger.Error("device failed", "err", err)
		}
	}
}
