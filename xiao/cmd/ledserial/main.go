// Command ledserial is the firmware of a serial board that shows the frames
// mirrored from the device on its own strip.
package main

import "machine"

// stripPin drives the mirrored strip's data line.
var stripPin = machine.D10

func main() {
	machine.Serial.Configure(machine.UARTConfig{})
	NewDevice(machine.Serial, stripPin).Run()
}
