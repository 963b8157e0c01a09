// Package effect implements the animated pixel generators that the renderer
// composites every frame, and the rules for stacking them.
package effect

import (
	"runtime"
	"time"

	"libdb.so/halo/internal/led"
)

// ID identifies an effect so that it can be found on a stack later.
type ID uint32

// DisplayMode describes how an effect combines with the pixels beneath it.
type DisplayMode uint8

const (
	// Blend effects combine with what is already in the buffer.
	Blend DisplayMode = iota
	// Opaque effects overwrite every pixel, hiding everything beneath them.
	Opaque
)

func (m DisplayMode) String() string {
	switch m {
	case Blend:
		return "blend"
	case Opaque:
		return "opaque"
	default:
		return "DisplayMode(?)"
	}
}

// Event is a lifecycle event returned by Update. A nil Event means the effect
// keeps running unchanged.
type Event interface {
	lifecycle()
}

// Replace hands the rest of an effect's lifetime to With, which takes its
// place in whatever holds it. With may be nil, which behaves like Remove.
type Replace struct {
	With Effect
}

// Remove asks the holder to evict the effect.
type Remove struct{}

func (Replace) lifecycle() {}
func (Remove) lifecycle()  {}

// Effect is a time-driven pixel generator.
type Effect interface {
	// ID returns the effect's identity, if it was given one.
	ID() (ID, bool)
	// DisplayMode returns how the effect combines with the pixels beneath it.
	DisplayMode() DisplayMode
	// Update advances the effect's timers by elapsed.
	Update(elapsed time.Duration) Event
	// Apply renders the current frame into buf. Apply yields to the scheduler
	// periodically and must not retain buf.
	Apply(buf led.LEDs)
}

// Option configures an effect at construction.
type Option func(*identity)

// WithID gives an effect an identity.
func WithID(id ID) Option {
	return func(i *identity) {
		i.id = id
		i.ok = true
	}
}

type identity struct {
	id ID
	ok bool
}

func newIdentity(opts []Option) identity {
	var i identity
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

func (i identity) ID() (ID, bool) { return i.id, i.ok }

// wrapped is an inner effect together with the scratch buffer it renders
// into.
type wrapped struct {
	effect Effect
	buf    led.LEDs
}

func wrap(e Effect) *wrapped {
	if e == nil {
		return nil
	}
	return &wrapped{effect: e}
}

// update forwards elapsed to the inner effect and applies its lifecycle event.
// It reports whether the inner effect asked to be removed.
func (w *wrapped) update(elapsed time.Duration) (removed bool) {
	switch ev := w.effect.Update(elapsed).(type) {
	case Replace:
		if ev.With == nil {
			return true
		}
		w.effect = ev.With
	case Remove:
		return true
	}
	return false
}

// render renders the inner effect into its scratch buffer, sized to n.
func (w *wrapped) render(n int) led.LEDs {
	w.buf = w.buf.Resize(n)
	w.buf.Clear()
	w.effect.Apply(w.buf)
	return w.buf
}

// blendOver lerps every pixel of buf toward the matching pixel of src (black
// when src is nil) by a.
func blendOver(buf, src led.LEDs, a float32) {
	for i := range buf {
		c := led.Black
		if src != nil {
			c = src[i]
		}
		buf[i] = buf[i].Lerp(c, a)
		yield(i)
	}
}

// yield gives the scheduler a chance to run other tasks every other pixel so
// that a long strip never starves the input monitors.
func yield(i int) {
	if i%2 == 0 {
		runtime.Gosched()
	}
}
