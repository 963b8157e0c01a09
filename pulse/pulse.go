// Package pulse encodes pixels into the bit-pulse symbols of the WS2812 LED
// protocol and streams them to a transmit channel.
//
// A symbol packs two (level, duration) halves the way the ESP32 remote
// control peripheral stores them in its RAM: bits 0-14 are the first
// duration, bit 15 the first level, bits 16-30 the second duration and bit 31
// the second level. Durations are ticks of the channel clock.
package pulse

import (
	"fmt"

	"github.com/pkg/errors"
)

// Symbol is one encoded pulse.
type Symbol uint32

// Code packs a pulse of level1 for len1 ticks followed by level2 for len2
// ticks.
func Code(level1 bool, len1 uint16, level2 bool, len2 uint16) Symbol {
	s := Symbol(len1&0x7fff) | Symbol(len2&0x7fff)<<16
	if level1 {
		s |= 1 << 15
	}
	if level2 {
		s |= 1 << 31
	}
	return s
}

// Symbols for an 80 MHz channel clock: a 1.25 µs bit period of 100 ticks.
const (
	One  Symbol = 64 | 1<<15 | 36<<16 // high 0.8 µs, low 0.45 µs
	Zero Symbol = 36 | 1<<15 | 64<<16 // high 0.45 µs, low 0.8 µs
	// End is the zero-length terminator that closes a frame.
	End Symbol = 0
)

// SymbolsPerPixel is the number of symbols one pixel encodes to: 8 per
// channel.
const SymbolsPerPixel = 24

// FrameLen returns the length of an encoded frame of n pixels, including the
// terminator.
func FrameLen(n int) int {
	return n*SymbolsPerPixel + 1
}

// NewFrame allocates an encoded frame of n black pixels, terminated.
func NewFrame(n int) []Symbol {
	f := make([]Symbol, FrameLen(n))
	for i := range f[:len(f)-1] {
		f[i] = Zero
	}
	f[len(f)-1] = End
	return f
}

// EncodeByte writes v into dst as 8 symbols, most significant bit first.
func EncodeByte(dst []Symbol, v byte) {
	_ = dst[7]
	for i, mask := 0, byte(0x80); i < 8; i, mask = i+1, mask>>1 {
		if v&mask != 0 {
			dst[i] = One
		} else {
			dst[i] = Zero
		}
	}
}

// EncodePixel writes a pixel into dst as 24 symbols in green, red, blue
// order.
func EncodePixel(dst []Symbol, r, g, b uint8) {
	_ = dst[SymbolsPerPixel-1]
	EncodeByte(dst[0:8], g)
	EncodeByte(dst[8:16], r)
	EncodeByte(dst[16:24], b)
}

// ErrInvalidSymbol is returned when decoding a symbol that is neither One nor
// Zero.
var ErrInvalidSymbol = errors.New("invalid symbol")

// DecodeByte reads 8 symbols back into a byte.
func DecodeByte(src []Symbol) (byte, error) {
	var v byte
	for i, s := range src[:8] {
		v <<= 1
		switch s {
		case One:
			v |= 1
		case Zero:
		default:
			return 0, errors.Wrapf(ErrInvalidSymbol, "bit %d: %#08x", i, uint32(s))
		}
	}
	return v, nil
}

// DecodeFrame decodes an encoded frame back into GRB bytes, stopping at the
// terminator.
func DecodeFrame(frame []Symbol) ([]byte, error) {
	n := len(frame)
	for i, s := range frame {
		if s == End {
			n = i
			break
		}
	}
	if n%8 != 0 {
		return nil, fmt.Errorf("frame of %d symbols is not byte aligned", n)
	}

	grb := make([]byte, n/8)
	for i := range grb {
		b, err := DecodeByte(frame[i*8:])
		if err != nil {
			return nil, errors.Wrapf(err, "byte %d", i)
		}
		grb[i] = b
	}
	return grb, nil
}
