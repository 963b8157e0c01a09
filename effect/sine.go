package effect

import (
	"math"
	"time"

	"libdb.so/halo/internal/led"
)

// SinePulse blends its inner effect (or black) over the pixels beneath it by
// a factor that oscillates sinusoidally:
//
//	a = Offset + Amplitude * sin(2π * t / Period)
//
// The pulse loops forever; it only ends when its inner effect is removed.
type SinePulse struct {
	identity
	Period    time.Duration
	Amplitude float32
	Offset    float32

	elapsed time.Duration
	inner   *wrapped
}

// NewSinePulse creates a sine pulse. inner may be nil to pulse toward black.
func NewSinePulse(period time.Duration, amplitude, offset float32, inner Effect, opts ...Option) *SinePulse {
	return &SinePulse{
		identity:  newIdentity(opts),
		Period:    period,
		Amplitude: amplitude,
		Offset:    offset,
		inner:     wrap(inner),
	}
}

func (p *SinePulse) DisplayMode() DisplayMode { return Blend }

// Inner returns the wrapped effect, if any.
func (p *SinePulse) Inner() Effect {
	if p.inner == nil {
		return nil
	}
	return p.inner.effect
}

// Factor returns the current blend factor.
func (p *SinePulse) Factor() float32 {
	if p.Period <= 0 {
		return p.Offset
	}
	t := float64(p.elapsed) / float64(p.Period)
	return p.Offset + p.Amplitude*float32(math.Sin(2*math.Pi*t))
}

func (p *SinePulse) Update(elapsed time.Duration) Event {
	if p.inner != nil && p.inner.update(elapsed) {
		p.inner = nil
		return Remove{}
	}

	p.elapsed += elapsed
	if p.Period > 0 {
		p.elapsed %= p.Period
	}
	return nil
}

func (p *SinePulse) Apply(buf led.LEDs) {
	var src led.LEDs
	if p.inner != nil {
		src = p.inner.render(len(buf))
	}
	blendOver(buf, src, p.Factor())
}
