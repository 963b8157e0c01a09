package state

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"libdb.so/halo/effect"
	"libdb.so/halo/internal/led"
)

func TestQueueOrderAndBackpressure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s := New(2)
	if err := s.Send(ctx, ButtonPress); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(ctx, ButtonHold); err != nil {
		t.Fatal(err)
	}

	sent := make(chan error, 1)
	go func() { sent <- s.Send(ctx, ButtonRelease) }()

	select {
	case err := <-sent:
		t.Fatalf("send into a full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	want := []Event{ButtonPress, ButtonHold, ButtonRelease}
	for _, w := range want {
		ev, err := s.Receive(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ev != w {
			t.Fatalf("received %v, want %v", ev, w)
		}
	}
	if err := <-sent; err != nil {
		t.Fatalf("blocked send failed: %v", err)
	}
}

func TestSendUnblocksOnExit(t *testing.T) {
	s := New(1)
	ctx := context.Background()
	if err := s.Send(ctx, ButtonPress); err != nil {
		t.Fatal(err)
	}

	sent := make(chan error, 1)
	go func() { sent <- s.Send(ctx, ButtonRelease) }()

	s.Exit.Fire()
	select {
	case err := <-sent:
		if !errors.Is(err, ErrExited) {
			t.Fatalf("send returned %v, want ErrExited", err)
		}
	case <-time.After(time.Second):
		t.Fatal("send stayed blocked after exit")
	}
}

func TestSignalBroadcast(t *testing.T) {
	sig := NewSignal()
	if sig.Fired() {
		t.Fatal("new signal already fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	waiters := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { waiters <- sig.Wait(ctx) }()
	}

	sig.Fire()
	sig.Fire() // idempotent

	for i := 0; i < 3; i++ {
		if err := <-waiters; err != nil {
			t.Fatalf("waiter %d: %v", i, err)
		}
	}

	// Future waiters are released immediately.
	if err := sig.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if !sig.Fired() {
		t.Fatal("signal not reported as fired")
	}
}

func TestLatch(t *testing.T) {
	l := NewLatch()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("empty latch did not release: %v", err)
	}

	releaseA := l.Claim("a")
	releaseB := l.Claim("b")

	held := l.Held()
	sort.Strings(held)
	if len(held) != 2 || held[0] != "a" || held[1] != "b" {
		t.Fatalf("held = %v", held)
	}

	releaseA()
	releaseA() // idempotent

	short, cancelShort := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancelShort()
	if err := l.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("wait with b still held returned %v", err)
	}

	releaseB()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("wait after every release: %v", err)
	}
}

func TestLatchDoubleClaimPanics(t *testing.T) {
	l := NewLatch()
	l.Claim("button")

	defer func() {
		if recover() == nil {
			t.Fatal("claiming the same owner twice did not panic")
		}
	}()
	l.Claim("button")
}

func TestPowerToggle(t *testing.T) {
	s := New(0)
	if s.Power() != Off {
		t.Fatal("device does not boot powered off")
	}
	if s.TogglePower() != On || s.Power() != On {
		t.Fatal("toggle did not switch power on")
	}
	if s.TogglePower() != Off {
		t.Fatal("toggle did not switch power off")
	}
}

func TestWithEffects(t *testing.T) {
	s := New(0)
	s.WithEffects(func(stack *effect.Stack) {
		stack.Push(effect.NewSolid(led.White))
		stack.Push(effect.NewSolid(led.Black))
	})
	if n := s.EffectCount(); n != 2 {
		t.Fatalf("effect count = %d, want 2", n)
	}

	s.WithEffects(func(stack *effect.Stack) {
		bundle := stack.Drain()
		stack.Push(effect.FadeOut(time.Second, bundle))
	})
	if n := s.EffectCount(); n != 1 {
		t.Fatalf("effect count after drain = %d, want 1", n)
	}
}

func TestButtonState(t *testing.T) {
	now := time.Now()
	if NotHeld.IsHeld() {
		t.Fatal("NotHeld is held")
	}
	b := Held(now)
	if !b.IsHeld() || !b.Since().Equal(now) {
		t.Fatalf("Held(now) = %+v", b)
	}
}
