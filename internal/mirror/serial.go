package mirror

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

// SerialConfig describes the serial port a board is attached to.
type SerialConfig struct {
	// Device is the path to the serial device, such as /dev/ttyACM0.
	Device string
	// Baud is the baud rate of the port.
	Baud int
}

// Serial is a Board attached to a serial port.
type Serial struct {
	*Board
	port   serial.Port
	logger *slog.Logger
}

// OpenSerial opens the serial port described by cfg and returns a board
// writing to it.
func OpenSerial(cfg SerialConfig, numLEDs int, logger *slog.Logger) (*Serial, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	return &Serial{
		Board:  NewBoard(port, numLEDs, logger),
		port:   port,
		logger: logger,
	}, nil
}

// Run reads packets from the board until ctx is canceled or reading fails.
// The port is closed when Run returns.
func (s *Serial) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		s.logger.Debug("closing serial port")
		if err := s.port.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		return s.readPackets(ctx)
	})
	return errg.Wait()
}

func (s *Serial) readPackets(ctx context.Context) error {
	if err := s.port.SetReadTimeout(serial.NoTimeout); err != nil {
		return errors.Wrap(err, "failed to reset read timeout")
	}

	for ctx.Err() == nil {
		err := s.ReadPackets(s.port)
		// A short read indicates a timeout. This is expected.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		return err
	}

	return ctx.Err()
}
