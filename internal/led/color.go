package led

import (
	"encoding"
	"encoding/hex"
	"fmt"
	"strings"
)

// RGB is a linear color with each channel nominally in [0, 1]. Channels may
// leave that range during intermediate math; Clamp brings them back.
type RGB struct {
	R, G, B float32
}

var (
	Black = RGB{0, 0, 0}
	White = RGB{1, 1, 1}
)

var (
	_ encoding.TextUnmarshaler = (*RGB)(nil)
	_ encoding.TextMarshaler   = RGB{}
)

// RGB8 creates a color from 8-bit channel values.
func RGB8(r, g, b uint8) RGB {
	return RGB{
		R: float32(r) / 255,
		G: float32(g) / 255,
		B: float32(b) / 255,
	}
}

// Lerp interpolates from c to other by a. a is clamped to [0, 1], so a = 0
// yields c and a = 1 yields other exactly.
func (c RGB) Lerp(other RGB, a float32) RGB {
	a = clamp01(a)
	return RGB{
		R: c.R*(1-a) + other.R*a,
		G: c.G*(1-a) + other.G*a,
		B: c.B*(1-a) + other.B*a,
	}
}

// Mul multiplies c by other channel-wise.
func (c RGB) Mul(other RGB) RGB {
	return RGB{c.R * other.R, c.G * other.G, c.B * other.B}
}

// Clamp clamps every channel into [0, 1].
func (c RGB) Clamp() RGB {
	return RGB{clamp01(c.R), clamp01(c.G), clamp01(c.B)}
}

// Quantize converts c into 8-bit channels. The color is clamped first.
func (c RGB) Quantize() (r, g, b uint8) {
	c = c.Clamp()
	return uint8(c.R * 255), uint8(c.G * 255), uint8(c.B * 255)
}

// String returns the color as a "#rrggbb" hex string.
func (c RGB) String() string {
	r, g, b := c.Quantize()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// MarshalText implements encoding.TextMarshaler.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a "#rrggbb" or "rrggbb" hex string.
func (c *RGB) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(string(text), "#")
	if len(s) != 6 {
		return fmt.Errorf("invalid color %q: expected 6 hex digits", text)
	}

	var b [3]byte
	if _, err := hex.Decode(b[:], []byte(s)); err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}

	*c = RGB8(b[0], b[1], b[2])
	return nil
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
