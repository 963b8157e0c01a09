// Package mirror forwards rendered frames to a strip attached to a serial
// board speaking the ledserial protocol.
package mirror

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/ledserial"
	"libdb.so/halo/pulse"
)

// DefaultAckTimeout is how long a Board waits for a frame to be
// acknowledged before it sends the next one anyway.
const DefaultAckTimeout = 500 * time.Millisecond

// Board forwards rendered frames to a serial board. It sends at most one
// frame per acknowledgement so that a slow board never backs up the writer;
// frames rendered while a frame is in flight are dropped.
type Board struct {
	// AckTimeout bounds the wait for an acknowledgement.
	AckTimeout time.Duration

	w       io.Writer
	numLEDs int
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	initialized bool
	inflight    bool
	sentAt      time.Time
	dropped     int
}

// NewBoard creates a board that writes incoming packets to w for a strip of
// numLEDs LEDs.
func NewBoard(w io.Writer, numLEDs int, logger *slog.Logger) *Board {
	return &Board{
		AckTimeout: DefaultAckTimeout,
		w:          w,
		numLEDs:    numLEDs,
		logger:     logger,
		now:        time.Now,
	}
}

// initialize tells the board the length of the strip. WriteFrame calls it
// before the first frame.
func (b *Board) initialize() error {
	if err := b.write(ledserial.InitializePacket{NumLEDs: uint16(b.numLEDs)}); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

// WriteFrame decodes an encoded frame and forwards its pixels. The frame is
// skipped if the board has yet to acknowledge the previous one.
func (b *Board) WriteFrame(frame []pulse.Symbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		if err := b.initialize(); err != nil {
			return err
		}
	}

	if b.inflight && b.now().Sub(b.sentAt) < b.AckTimeout {
		b.dropped++
		return nil
	}

	grb, err := pulse.DecodeFrame(frame)
	if err != nil {
		return errors.Wrap(err, "decode frame")
	}
	if len(grb) != 3*b.numLEDs {
		return errors.Errorf("frame has %d LEDs, board has %d", len(grb)/3, b.numLEDs)
	}

	if b.dropped > 0 {
		b.logger.Debug("dropped frames waiting for ack", "dropped", b.dropped)
		b.dropped = 0
	}

	return b.write(ledserial.FramePacket{Pix: grb})
}

// Clear blanks the mirrored strip. It is sent regardless of any frame in
// flight.
func (b *Board) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.write(ledserial.ClearPacket{})
}

// HandlePacket handles a packet received from the board.
func (b *Board) HandlePacket(p ledserial.OutgoingPacket) error {
	switch p := p.(type) {
	case ledserial.AckPacket:
		b.mu.Lock()
		b.inflight = false
		b.mu.Unlock()

	case ledserial.ErrorPacket:
		b.logger.Warn(
			"received error packet from board",
			"message", p.Message)

	case ledserial.PanicPacket:
		return errors.New("board panicked")

	case ledserial.LogPacket:
		b.logger.Debug(
			"received log packet from board",
			"message", p.Message)

	default:
		return errors.Errorf("received unknown packet from board: %s", p.Type())
	}

	return nil
}

// ReadPackets reads packets from r and handles them until reading fails.
func (b *Board) ReadPackets(r io.Reader) error {
	for {
		p, err := ledserial.ReadOutgoingPacket(r)
		if err != nil {
			// A checksum mismatch only loses one packet.
			if errors.Is(err, ledserial.ErrChecksum) {
				b.logger.Warn("dropping corrupt packet", "err", err)
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		if err := b.HandlePacket(p); err != nil {
			return err
		}
	}
}

func (b *Board) write(p ledserial.IncomingPacket) error {
	if err := ledserial.WriteIncomingPacket(b.w, p); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	b.inflight = true
	b.sentAt = b.now()
	return nil
}
