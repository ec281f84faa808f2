// Package apa102 drives the chain of APA102 RGB LEDs on the Rainbow HAT.
//
// The driver keeps a fixed length pixel buffer. SetPixel and SetAll only
// touch memory; Show serializes the whole buffer and hands it to the bus in a
// single write.
//
// A frame on the wire is:
//
//	start   4 × 0x00
//	pixel   0b111xxxxx (5 bit brightness), blue, green, red   (one per LED)
//	end     ceil(N/2) × 0xFF
//
// The end frame supplies the extra clock edges the last LEDs of the chain
// need to latch their data.
//
// Datasheet: https://cdn-shop.adafruit.com/product-files/2343/APA102C.pdf
package apa102

import (
	"errors"
	"fmt"
	"math"

	"github.com/coreman2200/rainbowhat/bus"
)

// NumPixels is the length of the chain on the Rainbow HAT.
const NumPixels = 7

const (
	startFrameLen = 4
	pixelHeader   = 0xE0 // top three bits of every pixel frame
	maxLevel      = 31   // 5 bit global brightness
)

var (
	ErrIndexOutOfRange = errors.New("apa102: pixel index out of range")
	ErrChainLength     = errors.New("apa102: chain length must be at least 1")
	ErrFrame           = errors.New("apa102: malformed frame")
)

// Pixel is the state of one LED. Brightness is kept in [0, 1].
type Pixel struct {
	R, G, B    uint8
	Brightness float32
}

// Dev is a chain of APA102 LEDs.
type Dev struct {
	w      bus.SerialWriter
	pixels []Pixel
	buf    []byte
}

// New returns the HAT's 7 LED chain. All pixels start black at zero
// brightness.
func New(w bus.SerialWriter) *Dev {
	d, _ := NewChain(w, NumPixels)
	return d
}

// NewChain returns a chain of n LEDs.
func NewChain(w bus.SerialWriter, n int) (*Dev, error) {
	if n < 1 {
		return nil, ErrChainLength
	}
	return &Dev{
		w:      w,
		pixels: make([]Pixel, n),
		buf:    make([]byte, frameLen(n)),
	}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("apa102{%d}", len(d.pixels))
}

// Len returns the number of LEDs in the chain.
func (d *Dev) Len() int { return len(d.pixels) }

// SetPixel sets LED i. Brightness outside [0, 1] is clamped; NaN counts as 0.
func (d *Dev) SetPixel(i int, r, g, b uint8, brightness float32) error {
	if i < 0 || i >= len(d.pixels) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(d.pixels))
	}
	d.pixels[i] = Pixel{R: r, G: g, B: b, Brightness: clamp01(brightness)}
	return nil
}

// SetAll sets every LED to the same colour and brightness.
func (d *Dev) SetAll(r, g, b uint8, brightness float32) {
	p := Pixel{R: r, G: g, B: b, Brightness: clamp01(brightness)}
	for i := range d.pixels {
		d.pixels[i] = p
	}
}

// SetBrightness changes the brightness of every LED, keeping colours.
func (d *Dev) SetBrightness(brightness float32) {
	v := clamp01(brightness)
	for i := range d.pixels {
		d.pixels[i].Brightness = v
	}
}

// Clear turns every LED's colour off. Brightness is left alone.
func (d *Dev) Clear() {
	for i := range d.pixels {
		d.pixels[i].R, d.pixels[i].G, d.pixels[i].B = 0, 0, 0
	}
}

// Pixel returns the buffered state of LED i.
func (d *Dev) Pixel(i int) (Pixel, error) {
	if i < 0 || i >= len(d.pixels) {
		return Pixel{}, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(d.pixels))
	}
	return d.pixels[i], nil
}

// Show writes the buffer to the chain in one bus write. On failure the
// buffer is unchanged and Show may simply be called again.
func (d *Dev) Show() error {
	d.buf = encode(d.buf[:0], d.pixels)
	if err := d.w.SerialWrite(d.buf); err != nil {
		return fmt.Errorf("apa102: show: %w", bus.Wrap("serial_write", d.String(), err))
	}
	return nil
}

// Halt blanks the chain.
func (d *Dev) Halt() error {
	d.Clear()
	return d.Show()
}

// Encode returns the wire frame for the current buffer. It is a pure function
// of the buffer.
func (d *Dev) Encode() []byte {
	return encode(make([]byte, 0, frameLen(len(d.pixels))), d.pixels)
}

// Level converts a brightness in [0, 1] to the 5 bit wire value. Halves round
// away from zero, so 0.5 gives 16.
func Level(brightness float32) uint8 {
	return uint8(math.Round(float64(clamp01(brightness)) * maxLevel))
}

// Decode parses a frame produced for an n LED chain back into pixels.
// Brightness comes back quantized to the 32 wire levels.
func Decode(frame []byte) ([]Pixel, error) {
	// start + 4n + ceil(n/2) bytes; solve for n.
	body := len(frame) - startFrameLen
	if body < 5 {
		return nil, ErrFrame
	}
	n := body / 4
	for n > 0 && frameLen(n) > len(frame) {
		n--
	}
	if frameLen(n) != len(frame) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrame, len(frame))
	}
	for _, b := range frame[:startFrameLen] {
		if b != 0 {
			return nil, fmt.Errorf("%w: bad start frame", ErrFrame)
		}
	}
	out := make([]Pixel, n)
	for i := range out {
		f := frame[startFrameLen+4*i : startFrameLen+4*i+4]
		if f[0]&pixelHeader != pixelHeader {
			return nil, fmt.Errorf("%w: bad header on pixel %d", ErrFrame, i)
		}
		out[i] = Pixel{
			R:          f[3],
			G:          f[2],
			B:          f[1],
			Brightness: float32(f[0]&maxLevel) / maxLevel,
		}
	}
	return out, nil
}

func frameLen(n int) int {
	return startFrameLen + 4*n + endFrameLen(n)
}

func endFrameLen(n int) int {
	return (n + 1) / 2
}

func encode(dst []byte, pixels []Pixel) []byte {
	dst = append(dst, 0, 0, 0, 0)
	for _, p := range pixels {
		dst = append(dst, pixelHeader|Level(p.Brightness), p.B, p.G, p.R)
	}
	for i := endFrameLen(len(pixels)); i > 0; i-- {
		dst = append(dst, 0xFF)
	}
	return dst
}

func clamp01(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
