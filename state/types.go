package state

import (
	"fmt"
	"time"
)

// Mode is the top-level operational phase of the device.
type Mode uint8

const (
	PreStartup Mode = iota
	Startup
	PreCharging
	Charging
	PreMain
	Main
	PrePairing
	Pairing
	Shutdown
)

func (m Mode) String() string {
	switch m {
	case PreStartup:
		return "pre-startup"
	case Startup:
		return "startup"
	case PreCharging:
		return "pre-charging"
	case Charging:
		return "charging"
	case PreMain:
		return "pre-main"
	case Main:
		return "main"
	case PrePairing:
		return "pre-pairing"
	case Pairing:
		return "pairing"
	case Shutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Modes lists every mode in declaration order.
var Modes = []Mode{
	PreStartup, Startup, PreCharging, Charging, PreMain, Main, PrePairing, Pairing, Shutdown,
}

// Event is a debounced semantic input event.
type Event uint8

const (
	ButtonPress Event = iota
	ButtonHold
	ButtonRelease
	ChargerPluggedIn
	ChargerUnplugged
)

func (e Event) String() string {
	switch e {
	case ButtonPress:
		return "button-press"
	case ButtonHold:
		return "button-hold"
	case ButtonRelease:
		return "button-release"
	case ChargerPluggedIn:
		return "charger-plugged-in"
	case ChargerUnplugged:
		return "charger-unplugged"
	default:
		return fmt.Sprintf("Event(%d)", e)
	}
}

// ButtonState is either held since some instant, or not held.
type ButtonState struct {
	held  bool
	since time.Time
}

// NotHeld is the released button state.
var NotHeld = ButtonState{}

// Held returns the state of a button held since t.
func Held(t time.Time) ButtonState {
	return ButtonState{held: true, since: t}
}

// IsHeld reports whether the button is held.
func (s ButtonState) IsHeld() bool { return s.held }

// Since returns when the hold started. It is zero if the button is not held.
func (s ButtonState) Since() time.Time { return s.since }

func (s ButtonState) String() string {
	if s.held {
		return "held"
	}
	return "not-held"
}

// ChargerState is whether a charger is present.
type ChargerState uint8

const (
	Unplugged ChargerState = iota
	PluggedIn
)

// IsPluggedIn reports whether the charger is plugged in.
func (s ChargerState) IsPluggedIn() bool { return s == PluggedIn }

func (s ChargerState) String() string {
	if s == PluggedIn {
		return "plugged-in"
	}
	return "unplugged"
}

// PowerState is whether the user has switched the device on.
type PowerState uint8

const (
	Off PowerState = iota
	On
)

// Toggle returns the opposite power state.
func (p PowerState) Toggle() PowerState {
	if p == On {
		return Off
	}
	return On
}

func (p PowerState) String() string {
	if p == On {
		return "on"
	}
	return "off"
}
