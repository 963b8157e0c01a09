// Package render runs the frame loop: it composites the effect stack into a
// pixel buffer, color corrects and encodes it into pulses, and streams the
// pulses to the LED strip.
package render

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/effect"
	"libdb.so/halo/internal/led"
	"libdb.so/halo/pulse"
	"libdb.so/halo/state"
)

// Transmitter sends one encoded, terminated frame to the strip. It blocks
// until the frame has been sent.
type Transmitter interface {
	Transmit(ctx context.Context, frame []pulse.Symbol) error
}

// Config configures the renderer.
type Config struct {
	// NumLEDs is the length of the strip.
	NumLEDs int
	// ColorCorrection is multiplied into every pixel after gamma correction.
	ColorCorrection led.RGB
	// StatsInterval is how often frame statistics are logged. Zero disables
	// the log.
	StatsInterval time.Duration
	// FrameInterval is the minimum time between the start of two frames.
	// Zero renders as fast as the strip accepts frames.
	FrameInterval time.Duration
	// SkipFailedFrames drops frames that fail to transmit instead of stopping
	// the renderer.
	SkipFailedFrames bool
}

// DefaultConfig is the renderer setup of the device.
var DefaultConfig = Config{
	NumLEDs:         200,
	ColorCorrection: led.White,
	StatsInterval:   time.Second,
}

// FrameStats describes how long each stage of a frame took.
type FrameStats struct {
	// Composite is the time spent updating and applying effects.
	Composite time.Duration
	// Encode is the time spent color correcting and encoding pulses.
	Encode time.Duration
	// Transmit is the time spent streaming the frame.
	Transmit time.Duration
	// Effects is the number of effects on the stack after the update.
	Effects int
}

// Total returns the duration of the whole frame.
func (s FrameStats) Total() time.Duration {
	return s.Composite + s.Encode + s.Transmit
}

// Observer is notified of every frame. It is called from the render loop and
// must not block.
type Observer interface {
	FrameRendered(stats FrameStats, err error)
}

// Renderer is the frame loop task.
type Renderer struct {
	state    *state.State
	tx       Transmitter
	cfg      Config
	logger   *slog.Logger
	observer Observer
	release  func()
	now      func() time.Time

	buf   led.LEDs
	frame []pulse.Symbol
	last  time.Time
}

// New creates a renderer that owns tx. It claims the "renderer" owner on st,
// which it releases when Run returns.
func New(st *state.State, tx Transmitter, cfg Config, logger *slog.Logger) *Renderer {
	return &Renderer{
		state:   st,
		tx:      tx,
		cfg:     cfg,
		logger:  logger.With("task", "renderer"),
		release: st.Claim("renderer"),
		now:     time.Now,
		buf:     led.NewLEDs(cfg.NumLEDs),
		frame:   pulse.NewFrame(cfg.NumLEDs),
	}
}

// SetObserver sets the frame observer. It must be called before Run.
func (r *Renderer) SetObserver(o Observer) {
	r.observer = o
}

// Run renders frames until the exit signal fires or ctx is done. A frame that
// fails to transmit stops the renderer with the error, unless
// SkipFailedFrames is set.
func (r *Renderer) Run(ctx context.Context) error {
	defer r.release()

	r.last = r.now()

	var frames int
	var stats FrameStats
	statsTime := r.now()

	for !r.state.Exit.Fired() {
		start := r.now()

		s, err := r.RenderFrame(ctx)
		if r.observer != nil {
			r.observer.FrameRendered(s, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !r.cfg.SkipFailedFrames || !errors.Is(err, pulse.ErrTransmission) {
				return errors.Wrap(err, "render frame")
			}
			r.logger.Warn("dropped frame", "err", err)
		} else {
			frames++
			stats = s
		}

		if since := r.now().Sub(statsTime); r.cfg.StatsInterval > 0 && since >= r.cfg.StatsInterval {
			statsTime = r.now()
			r.logger.Debug(
				"frame stats",
				"fps", framesPerSecond(frames, since),
				"effects", stats.Effects,
				"composite", stats.Composite,
				"encode", stats.Encode,
				"transmit", stats.Transmit)
			frames = 0
		}

		if err := r.pace(ctx, start); err != nil {
			return err
		}
	}

	r.logger.Debug("exiting renderer")
	return nil
}

func framesPerSecond(frames int, d time.Duration) float64 {
	return float64(frames) / d.Seconds()
}

// pace waits out the rest of the frame interval, or just yields when there is
// none.
func (r *Renderer) pace(ctx context.Context, start time.Time) error {
	wait := r.cfg.FrameInterval - r.now().Sub(start)
	if wait <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-r.state.Exit.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RenderFrame renders and transmits a single frame. Effects are advanced by
// the time since the previous frame started.
func (r *Renderer) RenderFrame(ctx context.Context) (FrameStats, error) {
	var stats FrameStats
	start := r.now()

	elapsed := start.Sub(r.last)
	r.last = start

	r.buf.Clear()
	r.state.WithEffects(func(s *effect.Stack) {
		s.Update(elapsed)
		s.Apply(r.buf)
		stats.Effects = s.Len()
	})
	composited := r.now()
	stats.Composite = composited.Sub(start)

	Encode(r.frame, r.buf, r.cfg.ColorCorrection)
	encoded := r.now()
	stats.Encode = encoded.Sub(composited)

	err := r.tx.Transmit(ctx, r.frame)
	stats.Transmit = r.now().Sub(encoded)
	if err != nil {
		return stats, errors.Wrap(err, "transmit")
	}

	return stats, nil
}

// Encode gamma corrects every pixel of src by squaring its channels,
// multiplies it by correction and writes its pulses into dst. dst must hold
// at least len(src) pixels.
func Encode(dst []pulse.Symbol, src led.LEDs, correction led.RGB) {
	for i, px := range src {
		px = px.Clamp()
		r, g, b := px.Mul(px).Mul(correction).Quantize()
		pulse.EncodePixel(dst[i*pulse.SymbolsPerPixel:], r, g, b)

		if i%2 == 0 {
			runtime.Gosched()
		}
	}
}
