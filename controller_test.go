package halo

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"libdb.so/halo/effect"
	"libdb.so/halo/input"
	"libdb.so/halo/power"
	"libdb.so/halo/pulse"
	"libdb.so/halo/state"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Strip.LEDs = 16
	cfg.Strip.FrameInterval = TOMLDuration(2 * time.Millisecond)
	cfg.Strip.StatsInterval = 0
	cfg.Button.Debounce = TOMLDuration(time.Millisecond)
	cfg.Button.Hold = TOMLDuration(50 * time.Millisecond)
	cfg.Charger.Debounce = TOMLDuration(time.Millisecond)
	cfg.Timing.Settle = TOMLDuration(20 * time.Millisecond)
	cfg.Timing.FadeIn = TOMLDuration(100 * time.Millisecond)
	cfg.Timing.FadeOut = TOMLDuration(150 * time.Millisecond)
	cfg.Timing.ShutdownFade = TOMLDuration(30 * time.Millisecond)
	cfg.Timing.PairingIdle = TOMLDuration(100 * time.Millisecond)
	cfg.Timing.ReleaseTimeout = TOMLDuration(time.Second)
	return cfg
}

type fakeSleeper struct {
	mu    sync.Mutex
	calls [][]power.WakeSource
}

func (s *fakeSleeper) Sleep(ctx context.Context, wake ...power.WakeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, wake)
	return nil
}

func (s *fakeSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recorder struct {
	mu     sync.Mutex
	modes  []state.Mode
	events []state.Event
}

func (r *recorder) ModeChanged(from, to state.Mode) {
	r.mu.Lock()
	r.modes = append(r.modes, to)
	r.mu.Unlock()
}

func (r *recorder) EventReceived(ev state.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Modes() []state.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.modes)
}

type testDevice struct {
	*Device
	button  *input.SimLine
	charger *input.SimLine
	sleeper *fakeSleeper
	rec     *recorder
	done    chan error
}

func startDevice(t *testing.T, cfg *Config, buttonHeld, chargerPlugged bool) *testDevice {
	t.Helper()

	d := &testDevice{
		button:  input.NewSimLine(!buttonHeld),
		charger: input.NewSimLine(chargerPlugged),
		sleeper: &fakeSleeper{},
		rec:     &recorder{},
		done:    make(chan error, 1),
	}

	hw := Hardware{
		Button:  d.button,
		Charger: d.charger,
		Strip:   pulse.Streamer{Channel: pulse.NewLoopback(pulse.DefaultMemSize)},
		Power:   d.sleeper,
	}

	var err error
	d.Device, err = NewDevice(cfg, hw, discard, WithObserver(d.rec))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { d.done <- d.Run(ctx) }()
	return d
}

func (d *testDevice) waitMode(t *testing.T, want state.Mode) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.State().Mode() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("device stuck in mode %v, want %v", d.State().Mode(), want)
}

func (d *testDevice) waitPoweredDown(t *testing.T) {
	t.Helper()

	select {
	case err := <-d.done:
		if !errors.Is(err, ErrPoweredDown) {
			t.Fatalf("Run returned %v, want ErrPoweredDown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("device did not power down, mode is %v", d.State().Mode())
	}
}

// effects returns a snapshot of the effect stack.
func (d *testDevice) effects() effect.Stack {
	var snapshot effect.Stack
	d.State().WithEffects(func(s *effect.Stack) {
		snapshot = slices.Clone(*s)
	})
	return snapshot
}

// toggle moves a line and waits past the debounce window.
func toggle(line *input.SimLine, high bool) {
	line.Set(high)
	time.Sleep(10 * time.Millisecond)
}

func isFade(e effect.Effect, dir effect.Direction) bool {
	f, ok := e.(*effect.Fade)
	return ok && f.Direction == dir
}

func TestBootHeldToMain(t *testing.T) {
	cfg := testConfig()
	d := startDevice(t, cfg, true, false)

	d.waitMode(t, state.Main)

	stack := d.effects()
	if len(stack) != 1 || !isFade(stack[0], effect.In) {
		t.Fatalf("main visual is not fading in: %#v", stack)
	}
	if d.State().Power() != state.On {
		t.Fatal("device did not power on")
	}

	// The fade-in hands over to the steady main visual.
	time.Sleep(3 * time.Duration(cfg.Timing.FadeIn))
	stack = d.effects()
	if len(stack) != 1 {
		t.Fatalf("got %d effects, want 1", len(stack))
	}
	if _, ok := stack[0].(*effect.Stack); !ok {
		t.Fatalf("fade-in was not replaced by the main visual, got %T", stack[0])
	}

	want := []state.Mode{state.Startup, state.PreMain, state.Main}
	if got := d.rec.Modes(); !slices.Equal(got, want) {
		t.Fatalf("mode sequence %v, want %v", got, want)
	}
}

func TestMainHoldShutsDownAfterRelease(t *testing.T) {
	cfg := testConfig()
	d := startDevice(t, cfg, true, false)
	d.waitMode(t, state.Main)

	// Let go of the power-on hold, then hold again to turn off.
	toggle(d.button, true)
	toggle(d.button, false)
	d.waitMode(t, state.Shutdown)

	if d.State().Power() != state.Off {
		t.Fatal("device did not power off")
	}

	// The button is still down: shutdown must sit on the queue no matter
	// what else arrives.
	toggle(d.charger, true)
	toggle(d.charger, false)
	toggle(d.charger, true)
	time.Sleep(100 * time.Millisecond)

	if d.State().Exit.Fired() {
		t.Fatal("exit fired while the button was still held")
	}
	if d.sleeper.count() != 0 {
		t.Fatal("device slept while the button was still held")
	}

	toggle(d.button, true)
	d.waitPoweredDown(t)

	if d.sleeper.count() != 1 {
		t.Fatalf("slept %d times, want 1", d.sleeper.count())
	}
	if !slices.Equal(d.sleeper.calls[0], wakeSources) {
		t.Fatalf("woke on %v, want %v", d.sleeper.calls[0], wakeSources)
	}
	if held := d.State().Owners.Held(); len(held) != 0 {
		t.Fatalf("owners still held after power down: %v", held)
	}
}

func TestMainChargerPluggedIn(t *testing.T) {
	cfg := testConfig()
	d := startDevice(t, cfg, true, false)
	d.waitMode(t, state.Main)

	toggle(d.button, true)
	time.Sleep(2 * time.Duration(cfg.Timing.FadeIn))

	d.charger.Set(true)
	d.waitMode(t, state.Charging)

	stack := d.effects()
	if len(stack) != 2 {
		t.Fatalf("got %d effects, want the bundle fade-out and the charging fade-in", len(stack))
	}
	if !isFade(stack[0], effect.Out) {
		t.Fatalf("bottom effect is %T, want a fade-out", stack[0])
	}
	bundle, ok := stack[0].(*effect.Fade).Inner().(*effect.Stack)
	if !ok || bundle.Len() != 1 {
		t.Fatalf("fade-out does not wrap the drained main visual: %#v", stack[0].(*effect.Fade).Inner())
	}
	if !isFade(stack[1], effect.In) {
		t.Fatalf("top effect is %T, want a fade-in", stack[1])
	}

	// Once both fades finish only the charging visual is left.
	time.Sleep(3 * time.Duration(cfg.Timing.FadeOut))
	stack = d.effects()
	if len(stack) != 1 {
		t.Fatalf("got %d effects after the fades, want 1", len(stack))
	}
	if _, ok := stack[0].(*effect.Stack); !ok {
		t.Fatalf("remaining effect is %T, want the charging visual", stack[0])
	}

	modes := d.rec.Modes()
	if got := modes[len(modes)-2:]; !slices.Equal(got, []state.Mode{state.PreCharging, state.Charging}) {
		t.Fatalf("mode sequence ends with %v", got)
	}
}

func TestStartupWithoutHoldShutsDown(t *testing.T) {
	d := startDevice(t, testConfig(), false, false)
	d.waitPoweredDown(t)

	want := []state.Mode{state.Startup, state.Shutdown}
	if got := d.rec.Modes(); !slices.Equal(got, want) {
		t.Fatalf("mode sequence %v, want %v", got, want)
	}
	if n := len(d.effects()); n != 0 {
		t.Fatalf("shutdown with an empty stack pushed %d effects", n)
	}
	if d.State().Power() != state.Off {
		t.Fatal("device powered on without a hold")
	}
}

func TestStartupReleaseBeforeHold(t *testing.T) {
	cfg := testConfig()
	cfg.Button.Hold = TOMLDuration(200 * time.Millisecond)
	d := startDevice(t, cfg, true, false)

	time.Sleep(2 * time.Duration(cfg.Timing.Settle))
	d.button.Set(true)
	d.waitPoweredDown(t)

	want := []state.Mode{state.Startup, state.Shutdown}
	if got := d.rec.Modes(); !slices.Equal(got, want) {
		t.Fatalf("mode sequence %v, want %v", got, want)
	}
}

func TestChargingTogglesPower(t *testing.T) {
	cfg := testConfig()
	d := startDevice(t, cfg, false, true)
	d.waitMode(t, state.Charging)

	if d.State().Power() != state.Off {
		t.Fatal("device booted powered on")
	}

	toggle(d.button, false)
	time.Sleep(2 * time.Duration(cfg.Button.Hold))
	if d.State().Power() != state.On {
		t.Fatal("hold while charging did not power on")
	}
	if d.State().Mode() != state.Charging {
		t.Fatalf("hold while charging changed the mode to %v", d.State().Mode())
	}
	toggle(d.button, true)

	d.charger.Set(false)
	d.waitMode(t, state.Main)

	stack := d.effects()
	if len(stack) != 2 || !isFade(stack[0], effect.Out) || !isFade(stack[1], effect.In) {
		t.Fatalf("unplugging did not cross-fade into the main visual: %#v", stack)
	}
}

func TestChargingUnplugPoweredOff(t *testing.T) {
	d := startDevice(t, testConfig(), false, true)
	d.waitMode(t, state.Charging)

	d.charger.Set(false)
	d.waitPoweredDown(t)

	modes := d.rec.Modes()
	if modes[len(modes)-1] != state.Shutdown {
		t.Fatalf("mode sequence %v does not end in shutdown", modes)
	}
}

func TestPairing(t *testing.T) {
	cfg := testConfig()
	d := startDevice(t, cfg, true, false)
	d.waitMode(t, state.Main)

	// A second hold without letting go enters pairing.
	ctx := context.Background()
	if err := d.State().Send(ctx, state.ButtonHold); err != nil {
		t.Fatal(err)
	}
	d.waitMode(t, state.Pairing)
	d.waitMode(t, state.Main)

	// Pairing consumed the initial hold, so the next hold powers off.
	if err := d.State().Send(ctx, state.ButtonHold); err != nil {
		t.Fatal(err)
	}
	d.waitMode(t, state.Shutdown)

	d.button.Set(true)
	d.waitPoweredDown(t)
}

func TestShutdownReleaseTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timing.ReleaseTimeout = TOMLDuration(20 * time.Millisecond)
	d := startDevice(t, cfg, false, false)

	// An owner that never lets go must not keep the device awake.
	d.State().Claim("stuck")

	d.waitPoweredDown(t)
	if d.sleeper.count() != 1 {
		t.Fatal("device did not sleep after the release timeout")
	}
}

func TestNewDeviceValidates(t *testing.T) {
	hw := Hardware{
		Button:  input.NewSimLine(true),
		Charger: input.NewSimLine(false),
		Strip:   pulse.Streamer{Channel: pulse.NewLoopback(pulse.DefaultMemSize)},
		Power:   &fakeSleeper{},
	}

	cfg := testConfig()
	cfg.Strip.LEDs = 0
	if _, err := NewDevice(cfg, hw, discard); err == nil {
		t.Error("created a device with no LEDs")
	}

	noPower := hw
	noPower.Power = nil
	if _, err := NewDevice(testConfig(), noPower, discard); err == nil {
		t.Error("created a device without power control")
	}
}
