package pulse

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		got  Symbol
		want Symbol
	}{
		{"one", Code(true, 64, false, 36), One},
		{"zero", Code(true, 36, false, 64), Zero},
		{"end", Code(false, 0, false, 0), End},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.got != test.want {
				t.Errorf("got %#08x, want %#08x", uint32(test.got), uint32(test.want))
			}
		})
	}

	if One != 2392128 || Zero != 4227108 {
		t.Errorf("unexpected symbol values: one=%d zero=%d", One, Zero)
	}
}

func TestEncodePixel(t *testing.T) {
	dst := make([]Symbol, SymbolsPerPixel)
	EncodePixel(dst, 0xF0, 0x01, 0x80)

	// Green first, most significant bit first.
	want := []Symbol{
		Zero, Zero, Zero, Zero, Zero, Zero, Zero, One, // g = 0x01
		One, One, One, One, Zero, Zero, Zero, Zero, // r = 0xF0
		One, Zero, Zero, Zero, Zero, Zero, Zero, Zero, // b = 0x80
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("symbol %d = %#08x, want %#08x", i, uint32(dst[i]), uint32(want[i]))
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	frame := NewFrame(3)
	if len(frame) != 3*24+1 || frame[len(frame)-1] != End {
		t.Fatalf("bad frame layout: len %d", len(frame))
	}

	EncodePixel(frame[0:], 1, 2, 3)
	EncodePixel(frame[24:], 4, 5, 6)
	EncodePixel(frame[48:], 255, 0, 127)

	grb, err := DecodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{2, 1, 3, 5, 4, 6, 0, 255, 127}
	if !bytes.Equal(grb, want) {
		t.Fatalf("decoded %v, want %v", grb, want)
	}
}

func TestDecodeInvalid(t *testing.T) {
	frame := NewFrame(1)
	frame[5] = Code(true, 10, false, 10)

	_, err := DecodeFrame(frame)
	if !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("got %v, want ErrInvalidSymbol", err)
	}

	if _, err := DecodeFrame([]Symbol{One, Zero, End}); err == nil {
		t.Fatal("decoded a frame that is not byte aligned")
	}
}

func testFrame(n int) ([]Symbol, []byte) {
	frame := NewFrame(n)
	grb := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		r, g, b := uint8(i), uint8(i*7), uint8(255-i)
		EncodePixel(frame[i*SymbolsPerPixel:], r, g, b)
		grb = append(grb, g, r, b)
	}
	return frame, grb
}

func TestTransmitLoopback(t *testing.T) {
	tests := []struct {
		name   string
		pixels int
		mem    int
	}{
		{"fits in memory", 1, 48},
		{"terminator in refill", 2, 48},
		{"odd memory size", 3, 49},
		{"many refills", 50, 48},
		{"odd tail", 7, 10},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var mu sync.Mutex
			var got [][]Symbol

			ch := NewLoopback(test.mem)
			ch.OnFrame = func(frame []Symbol) {
				mu.Lock()
				got = append(got, frame)
				mu.Unlock()
			}

			frame, want := testFrame(test.pixels)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Send twice to check that the channel restarts cleanly.
			for i := 0; i < 2; i++ {
				if err := (Streamer{ch}).Transmit(ctx, frame); err != nil {
					t.Fatalf("transmit %d: %v", i, err)
				}
			}

			mu.Lock()
			defer mu.Unlock()

			if len(got) != 2 {
				t.Fatalf("got %d frames, want 2", len(got))
			}
			for i, frame := range got {
				grb, err := DecodeFrame(frame)
				if err != nil {
					t.Fatalf("frame %d: %v", i, err)
				}
				if !bytes.Equal(grb, want) {
					t.Fatalf("frame %d differs from what was sent", i)
				}
			}
		})
	}
}

func TestTransmitSlowChannel(t *testing.T) {
	ch := NewLoopback(DefaultMemSize)
	ch.SymbolTime = time.Microsecond

	var got []Symbol
	ch.OnFrame = func(frame []Symbol) { got = frame }

	frame, want := testFrame(10)
	if err := Transmit(context.Background(), ch, frame); err != nil {
		t.Fatal(err)
	}

	grb, err := DecodeFrame(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(grb, want) {
		t.Fatal("frame corrupted by refills")
	}
}

func TestTransmitError(t *testing.T) {
	ch := NewLoopback(DefaultMemSize)
	ch.FailAfter = 100

	called := false
	ch.OnFrame = func([]Symbol) { called = true }

	frame, _ := testFrame(20)
	err := Transmit(context.Background(), ch, frame)
	if !errors.Is(err, ErrTransmission) {
		t.Fatalf("got %v, want ErrTransmission", err)
	}
	if called {
		t.Fatal("failed frame was delivered")
	}

	// The fault is latched per transmission only.
	ch.FailAfter = 0
	if err := Transmit(context.Background(), ch, frame); err != nil {
		t.Fatalf("transmit after fault: %v", err)
	}
}

func TestTransmitUnterminated(t *testing.T) {
	ch := NewLoopback(DefaultMemSize)
	if err := Transmit(context.Background(), ch, []Symbol{One, Zero}); err == nil {
		t.Fatal("transmitted a frame with no terminator")
	}
}

func TestTransmitCancelled(t *testing.T) {
	ch := NewLoopback(4)
	ch.SymbolTime = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	frame, _ := testFrame(10)
	if err := Transmit(ctx, ch, frame); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestTransmitAfterCancel(t *testing.T) {
	ch := NewLoopback(DefaultMemSize)
	ch.SymbolTime = time.Millisecond

	frame, want := testFrame(10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if err := Transmit(ctx, ch, frame); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}

	var got []Symbol
	ch.SymbolTime = 0
	ch.OnFrame = func(f []Symbol) { got = f }

	if err := Transmit(context.Background(), ch, frame); err != nil {
		t.Fatalf("transmit after cancel: %v", err)
	}

	grb, err := DecodeFrame(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(grb, want) {
		t.Fatal("second frame corrupted")
	}
}
