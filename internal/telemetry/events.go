package telemetry

import (
	"time"

	"libdb.so/halo/render"
	"libdb.so/halo/state"
)

// Event type constants for kelindar/event.
const (
	TypeModeChanged uint32 = iota + 1
	TypeInputReceived
	TypeFrameRendered
)

// ModeChangedEvent is published after every mode transition.
type ModeChangedEvent struct {
	From state.Mode
	To   state.Mode
	Time time.Time
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// InputReceivedEvent is published for every event the mode controller
// dequeues.
type InputReceivedEvent struct {
	Event state.Event
	Time  time.Time
}

// Type returns the event type identifier for InputReceivedEvent.
func (e InputReceivedEvent) Type() uint32 { return TypeInputReceived }

// FrameRenderedEvent is published for every frame the renderer finishes,
// successfully or not.
type FrameRenderedEvent struct {
	Stats render.FrameStats
	Err   error
}

// Type returns the event type identifier for FrameRenderedEvent.
func (e FrameRenderedEvent) Type() uint32 { return TypeFrameRendered }
