package pulse

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
)

// ErrTransmission is returned when the channel reports a hardware fault.
var ErrTransmission = errors.New("transmission error")

// Channel is a transmit channel with a fixed staging memory that it plays out
// while software refills it. The memory is split into two halves; the
// channel signals a threshold each time it has consumed one half so that the
// half can be overwritten with the next chunk.
type Channel interface {
	// MemSize returns the staging memory size in symbols. It must be even.
	MemSize() int
	// Start loads up to MemSize symbols of data and begins transmitting. It
	// returns the number of symbols loaded.
	Start(data []Symbol) (int, error)
	// WaitThreshold blocks until a half of the staging memory has been
	// consumed, the transmission has ended, or ctx is done.
	WaitThreshold(ctx context.Context) error
	// Refill overwrites half (0 or 1) of the staging memory with data, which
	// is at most MemSize/2 symbols long.
	Refill(half int, data []Symbol)
	// Err returns the latched hardware error, if any.
	Err() error
	// WaitDone blocks until the transmission has ended or ctx is done.
	WaitDone(ctx context.Context) error
	// Stop abandons the current transmission, if any. The channel accepts
	// a new Start once Stop returns.
	Stop()
}

// Transmit streams data, which must end with End, through ch. Data larger
// than the staging memory is fed in halves as the channel signals that each
// half has been consumed. Transmit aborts as soon as the channel reports an
// error or ctx is done, leaving the channel stopped.
func Transmit(ctx context.Context, ch Channel, data []Symbol) (err error) {
	mem := ch.MemSize()
	half := mem / 2

	index, err := ch.Start(data)
	if err != nil {
		return errors.Wrap(err, "start transmission")
	}
	defer func() {
		if err != nil {
			ch.Stop()
		}
	}()

	for {
		if err := ch.Err(); err != nil {
			return errors.Wrap(ErrTransmission, err.Error())
		}
		if index >= len(data) {
			break
		}

		runtime.Gosched()

		if err := ch.WaitThreshold(ctx); err != nil {
			return err
		}
		if err := ch.Err(); err != nil {
			return errors.Wrap(ErrTransmission, err.Error())
		}

		// The channel plays the halves alternately, starting with the first
		// one once the initial load has been consumed.
		which := ((index - mem) / half) % 2
		end := index + half
		if end > len(data) {
			end = len(data)
		}
		ch.Refill(which, data[index:end])
		index += half
	}

	if err := ch.WaitDone(ctx); err != nil {
		return err
	}
	if err := ch.Err(); err != nil {
		return errors.Wrap(ErrTransmission, err.Error())
	}
	return nil
}

// Streamer transmits whole frames over a Channel.
type Streamer struct {
	Channel Channel
}

// Transmit streams one encoded frame.
func (s Streamer) Transmit(ctx context.Context, frame []Symbol) error {
	return Transmit(ctx, s.Channel, frame)
}
