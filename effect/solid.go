package effect

import (
	"time"

	"libdb.so/halo/internal/led"
)

// Solid fills the whole strip with one color. It never ends on its own.
type Solid struct {
	identity
	Color led.RGB
}

// NewSolid creates a solid color effect.
func NewSolid(c led.RGB, opts ...Option) *Solid {
	return &Solid{identity: newIdentity(opts), Color: c}
}

func (s *Solid) DisplayMode() DisplayMode           { return Opaque }
func (s *Solid) Update(elapsed time.Duration) Event { return nil }

func (s *Solid) Apply(buf led.LEDs) {
	buf.Fill(s.Color)
}
