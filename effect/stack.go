package effect

import (
	"time"

	"libdb.so/halo/internal/led"
)

// Stack is an ordered sequence of effects. Index 0 is the bottom; the last
// effect is drawn on top. A *Stack is itself an Effect, which is how a bundle
// of drained effects is faded out as a unit.
type Stack []Effect

var _ Effect = (*Stack)(nil)

// Push adds e on top of the stack.
func (s *Stack) Push(e Effect) {
	*s = append(*s, e)
}

// Len returns the number of effects on the stack.
func (s *Stack) Len() int { return len(*s) }

// Drain moves every effect into a new bundle, leaving s empty.
func (s *Stack) Drain() *Stack {
	bundle := make(Stack, len(*s))
	copy(bundle, *s)
	clear(*s)
	*s = (*s)[:0]
	return &bundle
}

// Find returns the topmost effect with the given identity.
func (s *Stack) Find(id ID) (Effect, bool) {
	for i := len(*s) - 1; i >= 0; i-- {
		if eid, ok := (*s)[i].ID(); ok && eid == id {
			return (*s)[i], true
		}
	}
	return nil, false
}

// RemoveID removes every effect with the given identity and reports whether
// any was found.
func (s *Stack) RemoveID(id ID) bool {
	n := len(*s)
	s.filter(func(e Effect) bool {
		eid, ok := e.ID()
		return !ok || eid != id
	})
	return len(*s) != n
}

// ID always reports no identity; stacks are addressed through their members.
func (s *Stack) ID() (ID, bool) { return 0, false }

// DisplayMode is Opaque if any member is Opaque.
func (s *Stack) DisplayMode() DisplayMode {
	for _, e := range *s {
		if e.DisplayMode() == Opaque {
			return Opaque
		}
	}
	return Blend
}

// Update updates every member, substituting replacements in place and
// dropping members that asked to be removed. The stack itself never ends.
func (s *Stack) Update(elapsed time.Duration) Event {
	removed := false
	for i, e := range *s {
		switch ev := e.Update(elapsed).(type) {
		case Replace:
			(*s)[i] = ev.With
			removed = removed || ev.With == nil
		case Remove:
			(*s)[i] = nil
			removed = true
		}
	}
	if removed {
		s.filter(func(e Effect) bool { return e != nil })
	}
	return nil
}

// Apply draws the topmost Opaque member and everything above it. Members
// beneath the topmost Opaque one are hidden and are never touched.
func (s *Stack) Apply(buf led.LEDs) {
	effects := *s
	first := 0
	for i := len(effects) - 1; i >= 0; i-- {
		if effects[i].DisplayMode() == Opaque {
			first = i
			break
		}
	}
	for _, e := range effects[first:] {
		e.Apply(buf)
	}
}

// filter keeps the members for which keep returns true, preserving order.
func (s *Stack) filter(keep func(Effect) bool) {
	kept := (*s)[:0]
	for _, e := range *s {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	clear((*s)[len(kept):])
	*s = kept
}
