package input

import (
	"context"
	"time"
)

// outcome is whichever wait in a race finished first.
type outcome uint8

const (
	outcomeLevel outcome = iota
	outcomeDeadline
	outcomeExit
)

func (o outcome) String() string {
	switch o {
	case outcomeLevel:
		return "level"
	case outcomeDeadline:
		return "deadline"
	case outcomeExit:
		return "exit"
	default:
		return "outcome(?)"
	}
}

// race waits for the first of: line reaching the wanted level, deadline
// firing, or exit closing. A nil deadline never fires. The losing level wait
// is cancelled before race returns.
func race(ctx context.Context, line Line, high bool, deadline <-chan time.Time, exit <-chan struct{}) (outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	level := make(chan error, 1)
	go func() { level <- line.WaitLevel(ctx, high) }()

	select {
	case err := <-level:
		if err != nil {
			return 0, err
		}
		return outcomeLevel, nil
	case <-deadline:
		return outcomeDeadline, nil
	case <-exit:
		return outcomeExit, nil
	}
}
