// Command halo runs the device firmware on a host. The button and charger
// are driven from standard input, and rendered frames can be mirrored onto
// a strip attached to a serial board.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"libdb.so/halo"
	"libdb.so/halo/input"
	"libdb.so/halo/internal/mirror"
	"libdb.so/halo/internal/telemetry"
	"libdb.so/halo/power"
	"libdb.so/halo/pulse"
)

var (
	config      = "halo.toml"
	verbose     = false
	serialDev   = ""
	serialBaud  = 115200
	metricsAddr = ""
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.StringVar(&serialDev, "serial", serialDev, "serial device of a board to mirror frames onto")
	pflag.IntVar(&serialBaud, "baud", serialBaud, "baud rate of the serial device")
	pflag.StringVar(&metricsAddr, "metrics", metricsAddr, "address to serve Prometheus metrics on")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// The button is active low; the charger is active high.
	button := input.NewSimLine(true)
	charger := input.NewSimLine(false)

	channel := pulse.NewLoopback(pulse.DefaultMemSize)

	recorder := telemetry.NewRecorder()
	defer recorder.Close()

	unsub := recorder.SubscribeModes(func(ev telemetry.ModeChangedEvent) {
		fmt.Println("mode:", ev.To)
	})
	defer unsub()

	errg, ctx := errgroup.WithContext(ctx)

	var board *mirror.Serial
	if serialDev != "" {
		board, err = mirror.OpenSerial(mirror.SerialConfig{
			Device: serialDev,
			Baud:   serialBaud,
		}, cfg.Strip.LEDs, slog.Default().With("component", "mirror"))
		if err != nil {
			return err
		}

		channel.OnFrame = func(frame []pulse.Symbol) {
			if err := board.WriteFrame(frame); err != nil {
				slog.Warn("failed to mirror frame", "err", err)
			}
		}

		errg.Go(func() error {
			return board.Run(ctx)
		})
	}

	if metricsAddr != "" {
		errg.Go(func() error {
			return serveMetrics(ctx, metricsAddr, recorder.Handler())
		})
	}

	// Reading stdin cannot be interrupted, so the reader is left behind on
	// exit instead of joining the group.
	go func() {
		defer cancel()
		if err := readCommands(os.Stdin, button, charger); err != nil {
			slog.Error("failed to read commands", "err", err)
		}
	}()

	errg.Go(func() error {
		hw := halo.Hardware{
			Button:  button,
			Charger: charger,
			Strip:   pulse.Streamer{Channel: channel},
			Power:   hostSleeper(button, charger),
		}

		for {
			d, err := halo.NewDevice(cfg, hw, slog.Default(),
				halo.WithObserver(recorder),
				halo.WithFrameObserver(recorder))
			if err != nil {
				return fmt.Errorf("failed to create device: %w", err)
			}

			err = d.Run(ctx)
			if !errors.Is(err, halo.ErrPoweredDown) {
				return err
			}

			if board != nil {
				if err := board.Clear(); err != nil {
					slog.Warn("failed to clear mirrored strip", "err", err)
				}
			}

			fmt.Println("rebooting")
		}
	})

	fmt.Println("b: toggle button, c: toggle charger, q: quit")
	return errg.Wait()
}

// readCommands drives the simulated lines until q or the end of r.
func readCommands(r io.Reader, button, charger *input.SimLine) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		switch cmd := strings.TrimSpace(scanner.Text()); cmd {
		case "b":
			pressed := !button.Toggle()
			fmt.Println("button pressed:", pressed)
		case "c":
			plugged := charger.Toggle()
			fmt.Println("charger plugged in:", plugged)
		case "q":
			return nil
		case "":
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
	return scanner.Err()
}

// hostSleeper sleeps until one of the wake sources reaches its level.
func hostSleeper(button, charger *input.SimLine) power.Sleeper {
	lines := map[string]input.Line{
		"button":  button,
		"charger": charger,
	}

	return power.SleeperFunc(func(ctx context.Context, wake ...power.WakeSource) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		woken := make(chan string, len(wake))
		for _, w := range wake {
			line, ok := lines[w.Name]
			if !ok {
				return fmt.Errorf("unknown wake source %q", w.Name)
			}
			go func(w power.WakeSource) {
				if line.WaitLevel(ctx, w.High) == nil {
					woken <- w.Name
				}
			}(w)
		}

		select {
		case name := <-woken:
			slog.Info("woken", "source", name)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return ctx.Err()
}

func readConfig() (*halo.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		// Without a configuration file, run with the stock one.
		if errors.Is(err, os.ErrNotExist) && !pflag.CommandLine.Changed("config") {
			return halo.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return halo.ParseConfig(f)
}
