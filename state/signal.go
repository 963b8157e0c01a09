package state

import (
	"context"
	"sync"
)

// Signal is a one-shot broadcast. Firing it releases every current and future
// waiter; firing it again does nothing. It can never be reset.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal creates an unfired signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire fires the signal.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns a channel that is closed once the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latch counts down claimed owners. Wait returns once every claim has been
// released.
type Latch struct {
	mu      sync.Mutex
	owners  map[string]bool
	pending int
	zero    chan struct{}
}

// NewLatch creates a latch with no claims.
func NewLatch() *Latch {
	l := &Latch{owners: make(map[string]bool), zero: make(chan struct{})}
	close(l.zero)
	return l
}

// Claim registers a named owner and returns the function that releases it.
// The release function is idempotent. Claiming a name twice panics: every
// peripheral has exactly one owner for the lifetime of the program.
func (l *Latch) Claim(name string) (release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.owners[name]; ok {
		panic("state: " + name + " already claimed")
	}
	l.owners[name] = true
	if l.pending == 0 {
		l.zero = make(chan struct{})
	}
	l.pending++

	var once sync.Once
	return func() { once.Do(func() { l.release(name) }) }
}

func (l *Latch) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.owners[name] = false
	l.pending--
	if l.pending == 0 {
		close(l.zero)
	}
}

// Held returns the names of owners that have not released yet.
func (l *Latch) Held() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var names []string
	for name, held := range l.owners {
		if held {
			names = append(names, name)
		}
	}
	return names
}

// Wait blocks until every claim is released or ctx is done.
func (l *Latch) Wait(ctx context.Context) error {
	l.mu.Lock()
	zero := l.zero
	l.mu.Unlock()

	select {
	case <-zero:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
