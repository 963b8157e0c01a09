// Package input implements the debounced monitors for the button and charger
// lines. Each monitor turns raw level changes on its line into semantic
// events on the shared event queue.
package input

import (
	"context"
	"sync"
)

// Line is a digital input line.
type Line interface {
	// High reports the current level of the line.
	High() bool
	// WaitLevel blocks until the line reads high (or low, if high is false)
	// or ctx is done. It returns immediately if the line is already there.
	WaitLevel(ctx context.Context, high bool) error
}

// SimLine is a Line whose level is set in software. It is what the host
// simulator and the tests drive.
type SimLine struct {
	mu      sync.Mutex
	high    bool
	changed chan struct{}
}

var _ Line = (*SimLine)(nil)

// NewSimLine creates a line at the given level.
func NewSimLine(high bool) *SimLine {
	return &SimLine{high: high, changed: make(chan struct{})}
}

// Set drives the line to the given level.
func (l *SimLine) Set(high bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.high == high {
		return
	}
	l.high = high
	close(l.changed)
	l.changed = make(chan struct{})
}

// Toggle inverts the line and returns the new level.
func (l *SimLine) Toggle() bool {
	l.mu.Lock()
	high := !l.high
	l.mu.Unlock()

	l.Set(high)
	return high
}

func (l *SimLine) High() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.high
}

func (l *SimLine) WaitLevel(ctx context.Context, high bool) error {
	for {
		l.mu.Lock()
		level, changed := l.high, l.changed
		l.mu.Unlock()

		if level == high {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
