package effect

import (
	"fmt"
	"time"

	"github.com/tanema/gween/ease"

	"libdb.so/halo/internal/led"
)

// Curve is an easing curve over t in [0, 1].
type Curve uint8

const (
	Linear Curve = iota
	EaseIn       // cubic
	EaseOut      // cubic
	Smoothstep
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case EaseIn:
		return "ease-in"
	case EaseOut:
		return "ease-out"
	case Smoothstep:
		return "smoothstep"
	default:
		return fmt.Sprintf("Curve(%d)", c)
	}
}

// Ease maps t in [0, 1] through the curve.
func (c Curve) Ease(t float32) float32 {
	switch c {
	case EaseIn:
		return ease.InCubic(t, 0, 1, 1)
	case EaseOut:
		return ease.OutCubic(t, 0, 1, 1)
	case Smoothstep:
		return t * t * (3 - 2*t)
	default:
		return ease.Linear(t, 0, 1, 1)
	}
}

// Direction is the direction of a fade.
type Direction uint8

const (
	// In fades from the pixels beneath toward the inner effect.
	In Direction = iota
	// Out fades from the inner effect toward black.
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

func (d Direction) apply(t float32) float32 {
	if d == Out {
		return 1 - t
	}
	return t
}

// Fade blends its inner effect (or black) over the pixels beneath it by an
// eased factor that runs from 0 to 1 over Duration. When the duration is up,
// a fade-in replaces itself with its inner effect and a fade-out removes
// itself, discarding the inner effect.
type Fade struct {
	identity
	Duration  time.Duration
	Curve     Curve
	Direction Direction

	elapsed time.Duration
	inner   *wrapped
}

// NewFade creates a fade transition. inner may be nil.
func NewFade(duration time.Duration, curve Curve, dir Direction, inner Effect, opts ...Option) *Fade {
	return &Fade{
		identity:  newIdentity(opts),
		Duration:  duration,
		Curve:     curve,
		Direction: dir,
		inner:     wrap(inner),
	}
}

// FadeIn creates a linear fade-in of inner.
func FadeIn(duration time.Duration, inner Effect, opts ...Option) *Fade {
	return NewFade(duration, Linear, In, inner, opts...)
}

// FadeOut creates a linear fade-out of inner.
func FadeOut(duration time.Duration, inner Effect, opts ...Option) *Fade {
	return NewFade(duration, Linear, Out, inner, opts...)
}

func (f *Fade) DisplayMode() DisplayMode { return Blend }

// Inner returns the wrapped effect, if any.
func (f *Fade) Inner() Effect {
	if f.inner == nil {
		return nil
	}
	return f.inner.effect
}

// Done reports whether the fade has reached its deadline.
func (f *Fade) Done() bool {
	return f.elapsed >= f.Duration
}

// Factor returns the current blend factor after easing and direction.
func (f *Fade) Factor() float32 {
	t := float32(1)
	if f.Duration > 0 && f.elapsed < f.Duration {
		t = float32(float64(f.elapsed) / float64(f.Duration))
	}
	return f.Direction.apply(f.Curve.Ease(t))
}

func (f *Fade) Update(elapsed time.Duration) Event {
	// A removed inner effect only stops contributing; the fade still runs
	// until its own deadline.
	if f.inner != nil && f.inner.update(elapsed) {
		f.inner = nil
	}

	f.elapsed += elapsed
	if !f.Done() {
		return nil
	}

	if f.inner != nil && f.Direction == In {
		inner := f.inner.effect
		f.inner = nil
		return Replace{With: inner}
	}
	f.inner = nil
	return Remove{}
}

func (f *Fade) Apply(buf led.LEDs) {
	var src led.LEDs
	if f.inner != nil {
		src = f.inner.render(len(buf))
	}
	blendOver(buf, src, f.Factor())
}
