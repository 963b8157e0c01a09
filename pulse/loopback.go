package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultMemSize is the staging memory of one ESP32-C3 transmit channel.
const DefaultMemSize = 48

// ErrFault is the hardware error a Loopback reports when FailAfter trips.
var ErrFault = errors.New("simulated channel fault")

var errStopped = errors.New("transmission stopped")

// Loopback is a Channel that plays symbols out of its staging memory on a
// goroutine instead of a wire. It follows the same half-threshold refill
// protocol as the hardware: each half is consumed in turn, a threshold is
// signaled when a half is done, and playback stops at End.
//
// Unlike the hardware, playback waits for a half to be refilled rather than
// sending stale memory, so a Loopback never underruns.
type Loopback struct {
	// SymbolTime is how long each symbol takes to play. Zero plays as fast as
	// possible.
	SymbolTime time.Duration
	// FailAfter makes a frame fail with ErrFault after that many symbols.
	// Zero disables fault injection.
	FailAfter int
	// OnFrame is called from the playback goroutine with every frame that
	// completes without error, terminator excluded.
	OnFrame func(frame []Symbol)

	mem int

	mu        sync.Mutex
	ram       []Symbol
	ready     [2]bool
	busy      bool
	err       error
	done      chan struct{}
	stop      chan struct{}
	refilled  chan struct{}
	threshold chan struct{}
}

var _ Channel = (*Loopback)(nil)

// NewLoopback creates a loopback channel with memSize symbols of staging
// memory. memSize is rounded up to an even number of at least 2.
func NewLoopback(memSize int) *Loopback {
	if memSize < 2 {
		memSize = 2
	}
	memSize += memSize % 2

	done := make(chan struct{})
	close(done)

	return &Loopback{
		mem:       memSize,
		ram:       make([]Symbol, memSize),
		done:      done,
		refilled:  make(chan struct{}, 1),
		threshold: make(chan struct{}, 2),
	}
}

func (l *Loopback) MemSize() int { return l.mem }

func (l *Loopback) Start(data []Symbol) (int, error) {
	if len(data) == 0 || data[len(data)-1] != End {
		return 0, errors.New("frame is not terminated")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.busy {
		return 0, errors.New("channel busy")
	}

	n := copy(l.ram, data)
	l.ready = [2]bool{true, true}
	l.busy = true
	l.err = nil
	l.done = make(chan struct{})
	l.stop = make(chan struct{})
	drain(l.threshold)
	drain(l.refilled)

	go l.play(l.done, l.stop)
	return n, nil
}

func (l *Loopback) WaitThreshold(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	select {
	case <-l.threshold:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Refill(half int, data []Symbol) {
	h := l.mem / 2

	l.mu.Lock()
	copy(l.ram[half*h:(half+1)*h], data)
	l.ready[half] = true
	l.mu.Unlock()

	select {
	case l.refilled <- struct{}{}:
	default:
	}
}

func (l *Loopback) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loopback) WaitDone(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Stop() {
	l.mu.Lock()
	if !l.busy {
		l.mu.Unlock()
		return
	}
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	done := l.done
	l.mu.Unlock()

	<-done
}

func (l *Loopback) play(done, stop chan struct{}) {
	h := l.mem / 2
	chunk := make([]Symbol, h)

	var frame []Symbol
	for half := 0; ; half ^= 1 {
		l.mu.Lock()
		for !l.ready[half] {
			l.mu.Unlock()
			select {
			case <-l.refilled:
			case <-stop:
				l.finish(done, nil, errStopped)
				return
			}
			l.mu.Lock()
		}
		copy(chunk, l.ram[half*h:(half+1)*h])
		l.ready[half] = false
		l.mu.Unlock()

		for _, s := range chunk {
			if s == End {
				l.finish(done, frame, nil)
				return
			}
			select {
			case <-stop:
				l.finish(done, nil, errStopped)
				return
			default:
			}
			frame = append(frame, s)
			if l.SymbolTime > 0 {
				time.Sleep(l.SymbolTime)
			}
			if l.FailAfter > 0 && len(frame) >= l.FailAfter {
				l.finish(done, nil, ErrFault)
				return
			}
		}

		select {
		case l.threshold <- struct{}{}:
		case <-stop:
			l.finish(done, nil, errStopped)
			return
		}
	}
}

func (l *Loopback) finish(done chan struct{}, frame []Symbol, err error) {
	if err == nil && l.OnFrame != nil {
		l.OnFrame(frame)
	}

	l.mu.Lock()
	l.err = err
	l.busy = false
	l.mu.Unlock()

	close(done)
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
