// Package state holds the device state shared by every task: the current mode,
// the input snapshots, the event queue, the exit signal, the power state and
// the effect stack.
//
// Every accessor takes and releases its own lock, so callers never hold a
// guard longer than the access itself. The effect stack is the exception: it
// is only reachable through WithEffects, which runs a function under the
// stack's lock so that a drain-and-push is seen by the renderer as one step.
package state

import (
	"context"

	"github.com/pkg/errors"

	"libdb.so/halo/effect"
)

// DefaultQueueSize is the capacity of the event queue.
const DefaultQueueSize = 10

// ErrExited is returned by queue operations once the exit signal has fired.
var ErrExited = errors.New("exit signal fired")

// State is the shared device state. Construct it once at boot with New and
// hand it to every task.
type State struct {
	mode    guarded[Mode]
	button  guarded[ButtonState]
	charger guarded[ChargerState]
	power   guarded[PowerState]
	effects guarded[effect.Stack]

	events chan Event

	// Exit is fired once to tell every task to wind down.
	Exit *Signal
	// Owners tracks the tasks that own peripherals and have yet to release
	// them after Exit.
	Owners *Latch
}

// New creates the device state. queueSize bounds the event queue; zero or
// less selects DefaultQueueSize.
func New(queueSize int) *State {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &State{
		mode:    guarded[Mode]{v: PreStartup},
		button:  guarded[ButtonState]{v: NotHeld},
		charger: guarded[ChargerState]{v: Unplugged},
		power:   guarded[PowerState]{v: Off},
		events:  make(chan Event, queueSize),
		Exit:    NewSignal(),
		Owners:  NewLatch(),
	}
}

// Mode returns the current mode.
func (s *State) Mode() Mode { return s.mode.get() }

// SetMode sets the current mode.
func (s *State) SetMode(m Mode) { s.mode.set(m) }

// ButtonState returns the last accepted button state.
func (s *State) ButtonState() ButtonState { return s.button.get() }

// SetButtonState publishes the button state.
func (s *State) SetButtonState(b ButtonState) { s.button.set(b) }

// ChargerState returns the last accepted charger state.
func (s *State) ChargerState() ChargerState { return s.charger.get() }

// SetChargerState publishes the charger state.
func (s *State) SetChargerState(c ChargerState) { s.charger.set(c) }

// Power returns the power state.
func (s *State) Power() PowerState { return s.power.get() }

// SetPower sets the power state.
func (s *State) SetPower(p PowerState) { s.power.set(p) }

// TogglePower flips the power state and returns the new value.
func (s *State) TogglePower() PowerState {
	s.power.mu.Lock()
	defer s.power.mu.Unlock()

	s.power.v = s.power.v.Toggle()
	return s.power.v
}

// WithEffects runs f with exclusive access to the effect stack. f must not
// retain the stack after it returns.
func (s *State) WithEffects(f func(*effect.Stack)) {
	s.effects.mu.Lock()
	defer s.effects.mu.Unlock()

	f(&s.effects.v)
}

// EffectCount returns the number of effects on the stack.
func (s *State) EffectCount() int {
	s.effects.mu.Lock()
	defer s.effects.mu.Unlock()

	return s.effects.v.Len()
}

// Send queues ev for the mode controller. It blocks while the queue is full;
// input is never dropped. It gives up once ctx is done or the exit signal has
// fired.
func (s *State) Send(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-s.Exit.Done():
		return ErrExited
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next queued event in FIFO order, blocking until one is
// available or ctx is done.
func (s *State) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Claim registers a peripheral owner. See Latch.Claim.
func (s *State) Claim(name string) (release func()) {
	return s.Owners.Claim(name)
}

// WaitReleased blocks until every peripheral owner has released.
func (s *State) WaitReleased(ctx context.Context) error {
	return s.Owners.Wait(ctx)
}
