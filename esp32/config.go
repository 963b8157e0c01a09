// Package esp32 describes the wearable's ESP32 board.
package esp32

import "machine"

var (
	// NumLEDs is the length of the strip sewn into the wearable.
	NumLEDs = 192

	// StripPin drives the strip's data line.
	StripPin = machine.GPIO27
	// ButtonPin reads the push button. It is pulled up and reads low while
	// pressed.
	ButtonPin = machine.GPIO0
	// ChargerPin reads high while a charger is connected.
	ChargerPin = machine.GPIO34
	// StatusPin drives the on-board status LED.
	StatusPin = machine.LED
)
