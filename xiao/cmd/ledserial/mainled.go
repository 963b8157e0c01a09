package main

import (
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// activityLED is the on-board RGB LED, lit while a packet is being read.
// https://wiki.seeedstudio.com/XIAO-RP2040-with-Arduino/
type activityLED struct {
	power machine.Pin
	led   ws2812.Device
}

func newActivityLED() *activityLED {
	power := machine.GPIO11
	power.Configure(machine.PinConfig{Mode: machine.PinOutput})
	power.Low()

	data := machine.GPIO12
	data.Configure(machine.PinConfig{Mode: machine.PinOutput})

	return &activityLED{
		power: power,
		led:   ws2812.New(data),
	}
}

func (a *activityLED) on(r, g, b uint8) {
	a.power.High()
	writeLEDRGB(a.led, r, g, b)
}

func (a *activityLED) off() {
	a.power.Low()
}
