// Package led provides the color primitive and pixel buffers shared by the
// effect engine and the renderer.
package led

// LEDs describes a strip of LEDs. It is a preallocated slice of RGB.
type LEDs []RGB

// NewLEDs creates a new strip of LEDs. Colors are initialized to black
// (off).
func NewLEDs(numLEDs int) LEDs {
	return make(LEDs, numLEDs)
}

// Clear sets every LED to black.
func (l LEDs) Clear() {
	l.Fill(Black)
}

// Fill sets every LED to the given color.
func (l LEDs) Fill(c RGB) {
	for i := range l {
		l[i] = c
	}
}

// Resize returns a strip of exactly n LEDs, reusing l's storage when it is
// large enough.
func (l LEDs) Resize(n int) LEDs {
	if cap(l) >= n {
		return l[:n]
	}
	return NewLEDs(n)
}
