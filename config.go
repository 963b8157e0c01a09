package halo

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"libdb.so/halo/effect"
	"libdb.so/halo/input"
	"libdb.so/halo/internal/led"
	"libdb.so/halo/render"
)

// Config is the configuration for the device.
type Config struct {
	// Strip configures the LED strip and the renderer.
	Strip StripConfig `toml:"strip"`
	// Button configures the push button monitor.
	Button ButtonConfig `toml:"button"`
	// Charger configures the charger monitor.
	Charger ChargerConfig `toml:"charger"`
	// Timing configures the mode controller.
	Timing TimingConfig `toml:"timing"`
	// Visuals are the effects shown in each mode.
	Visuals VisualsConfig `toml:"visuals"`
}

// StripConfig is the configuration for the LED strip.
type StripConfig struct {
	// LEDs is the number of LEDs on the strip.
	LEDs int `toml:"leds"`
	// ColorCorrection is multiplied into every pixel after gamma correction.
	ColorCorrection led.RGB `toml:"color_correction"`
	// FrameInterval is the minimum time between two frames. Zero renders as
	// fast as the strip allows.
	FrameInterval TOMLDuration `toml:"frame_interval"`
	// StatsInterval is how often frame statistics are logged.
	StatsInterval TOMLDuration `toml:"stats_interval"`
	// SkipFailedFrames drops frames that fail to transmit instead of stopping
	// the device.
	SkipFailedFrames bool `toml:"skip_failed_frames"`
}

// ButtonConfig is the configuration for the push button.
type ButtonConfig struct {
	// Debounce is the minimum time between two accepted edges.
	Debounce TOMLDuration `toml:"debounce"`
	// Hold is how long the button must be held to count as a hold.
	Hold TOMLDuration `toml:"hold"`
}

// ChargerConfig is the configuration for the charger line.
type ChargerConfig struct {
	// Debounce is the minimum time between two accepted edges.
	Debounce TOMLDuration `toml:"debounce"`
}

// TimingConfig is the configuration for the mode controller.
type TimingConfig struct {
	// QueueSize is the capacity of the event queue.
	QueueSize int `toml:"queue_size"`
	// Settle is how long the controller waits at boot before sampling the
	// button.
	Settle TOMLDuration `toml:"settle"`
	// FadeIn is the duration of the fade into a mode's visual.
	FadeIn TOMLDuration `toml:"fade_in"`
	// FadeOut is the duration of the fade out of a mode's visual.
	FadeOut TOMLDuration `toml:"fade_out"`
	// ShutdownFade is the duration of the fade to black before sleeping.
	ShutdownFade TOMLDuration `toml:"shutdown_fade"`
	// PairingIdle is how long the device stays in pairing mode.
	PairingIdle TOMLDuration `toml:"pairing_idle"`
	// ReleaseTimeout bounds the wait for every task to release its hardware
	// before sleeping.
	ReleaseTimeout TOMLDuration `toml:"release_timeout"`
}

// VisualsConfig holds the visual of each mode.
type VisualsConfig struct {
	Charging VisualConfig `toml:"charging"`
	Main     VisualConfig `toml:"main"`
}

// VisualConfig describes a solid color with a sine pulse blended over it.
type VisualConfig struct {
	// Color is the base color.
	Color led.RGB `toml:"color"`
	// Pulse is the pulse blended over the base color.
	Pulse PulseConfig `toml:"pulse"`
}

// PulseConfig is the configuration for a sine pulse.
type PulseConfig struct {
	// Period is the duration of one full cycle.
	Period TOMLDuration `toml:"period"`
	// Amplitude is the amplitude of the blend factor.
	Amplitude float32 `toml:"amplitude"`
	// Offset is the center of the blend factor.
	Offset float32 `toml:"offset"`
	// Color is the color pulsed toward. If unset, the pulse dims toward
	// black.
	Color *led.RGB `toml:"color,omitempty"`
}

// Effect builds the visual: the base color with the pulse blended over it.
func (v VisualConfig) Effect() effect.Effect {
	var inner effect.Effect
	if v.Pulse.Color != nil {
		inner = effect.NewSolid(*v.Pulse.Color)
	}

	return &effect.Stack{
		effect.NewSolid(v.Color),
		effect.NewSinePulse(
			time.Duration(v.Pulse.Period),
			v.Pulse.Amplitude,
			v.Pulse.Offset,
			inner),
	}
}

// DefaultConfig returns the configuration of the stock device.
func DefaultConfig() *Config {
	red := led.RGB{R: 1}

	return &Config{
		Strip: StripConfig{
			LEDs:            200,
			ColorCorrection: led.White,
			StatsInterval:   TOMLDuration(time.Second),
		},
		Button: ButtonConfig{
			Debounce: TOMLDuration(input.DefaultButtonConfig.Debounce),
			Hold:     TOMLDuration(input.DefaultButtonConfig.HoldTime),
		},
		Charger: ChargerConfig{
			Debounce: TOMLDuration(input.DefaultChargerConfig.Debounce),
		},
		Timing: TimingConfig{
			QueueSize:      10,
			Settle:         TOMLDuration(time.Millisecond),
			FadeIn:         TOMLDuration(1000 * time.Millisecond),
			FadeOut:        TOMLDuration(1500 * time.Millisecond),
			ShutdownFade:   TOMLDuration(500 * time.Millisecond),
			PairingIdle:    TOMLDuration(3000 * time.Millisecond),
			ReleaseTimeout: TOMLDuration(100 * time.Millisecond),
		},
		Visuals: VisualsConfig{
			Charging: VisualConfig{
				Color: led.White,
				Pulse: PulseConfig{
					Period:    TOMLDuration(5000 * time.Millisecond),
					Amplitude: 0.075,
					Offset:    0.85,
				},
			},
			Main: VisualConfig{
				Color: led.RGB{G: 1, B: 1},
				Pulse: PulseConfig{
					Period:    TOMLDuration(3000 * time.Millisecond),
					Amplitude: 0.5,
					Offset:    0.5,
					Color:     &red,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Strip.LEDs <= 0 {
		return errors.New("no LEDs configured")
	}
	if c.Strip.LEDs > 0xFFFF {
		return fmt.Errorf("too many LEDs: %d", c.Strip.LEDs)
	}

	if c.Timing.QueueSize < 1 {
		return fmt.Errorf("event queue size %d is too small", c.Timing.QueueSize)
	}

	durations := []struct {
		name string
		d    TOMLDuration
	}{
		{"strip.frame_interval", c.Strip.FrameInterval},
		{"strip.stats_interval", c.Strip.StatsInterval},
		{"button.debounce", c.Button.Debounce},
		{"button.hold", c.Button.Hold},
		{"charger.debounce", c.Charger.Debounce},
		{"timing.settle", c.Timing.Settle},
		{"timing.fade_in", c.Timing.FadeIn},
		{"timing.fade_out", c.Timing.FadeOut},
		{"timing.shutdown_fade", c.Timing.ShutdownFade},
		{"timing.pairing_idle", c.Timing.PairingIdle},
		{"timing.release_timeout", c.Timing.ReleaseTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s is negative: %v", d.name, time.Duration(d.d))
		}
	}

	if c.Button.Hold <= c.Button.Debounce {
		return fmt.Errorf(
			"button hold %v must be longer than its debounce %v",
			time.Duration(c.Button.Hold), time.Duration(c.Button.Debounce))
	}

	for name, v := range map[string]VisualConfig{
		"charging": c.Visuals.Charging,
		"main":     c.Visuals.Main,
	} {
		if v.Pulse.Period <= 0 {
			return fmt.Errorf("visuals.%s.pulse.period must be positive", name)
		}
		if v.Pulse.Amplitude < 0 {
			return fmt.Errorf("visuals.%s.pulse.amplitude is negative", name)
		}
	}

	return nil
}

func (c *Config) buttonConfig() input.ButtonConfig {
	return input.ButtonConfig{
		Debounce: time.Duration(c.Button.Debounce),
		HoldTime: time.Duration(c.Button.Hold),
	}
}

func (c *Config) chargerConfig() input.ChargerConfig {
	return input.ChargerConfig{
		Debounce: time.Duration(c.Charger.Debounce),
	}
}

func (c *Config) renderConfig() render.Config {
	return render.Config{
		NumLEDs:          c.Strip.LEDs,
		ColorCorrection:  c.Strip.ColorCorrection,
		StatsInterval:    time.Duration(c.Strip.StatsInterval),
		FrameInterval:    time.Duration(c.Strip.FrameInterval),
		SkipFailedFrames: c.Strip.SkipFailedFrames,
	}
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Keys missing from the
// input keep their DefaultConfig values.
func ParseConfig(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if err := toml.NewDecoder(r).Strict(true).Decode(config); err != nil {
		return nil, err
	}
	return config, nil
}
