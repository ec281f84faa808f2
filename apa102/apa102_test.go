package apa102_test

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/rainbowhat/apa102"
	"github.com/coreman2200/rainbowhat/bus"
)

func lastWrite(t *testing.T, s *bus.Sim) []byte {
	t.Helper()
	ops := s.Ops()
	require.NotEmpty(t, ops)
	op := ops[len(ops)-1]
	require.Equal(t, bus.OpSerialWrite, op.Kind)
	return op.Data
}

func TestNewIsSevenPixels(t *testing.T) {
	d := New(bus.NewSim())
	assert.Equal(t, NumPixels, d.Len())
	assert.Equal(t, "apa102{7}", d.String())

	_, err := NewChain(bus.NewSim(), 0)
	assert.ErrorIs(t, err, ErrChainLength)
}

var setPixelCases = []struct {
	index      int
	r, g, b    uint8
	brightness float32
	expect     float32
}{
	{0, 123, 234, 12, 1.0, 1.0},
	{6, 12, 58, 123, 0.0, 0.0},
	{3, 1, 2, 3, 0.25, 0.25},
	{2, 255, 255, 255, 1.5, 1.0},
	{1, 9, 8, 7, -0.2, 0.0},
	{5, 0, 0, 0, float32(math.NaN()), 0.0},
}

func TestSetPixelReadBack(t *testing.T) {
	d := New(bus.NewSim())
	for k, v := range setPixelCases {
		t.Run("Pixel"+strconv.Itoa(k), func(t *testing.T) {
			require.NoError(t, d.SetPixel(v.index, v.r, v.g, v.b, v.brightness))
			p, err := d.Pixel(v.index)
			require.NoError(t, err)
			assert.Equal(t, Pixel{R: v.r, G: v.g, B: v.b, Brightness: v.expect}, p)
		})
	}
}

func TestSetPixelOutOfRange(t *testing.T) {
	s := bus.NewSim()
	d := New(s)
	for _, i := range []int{-1, NumPixels, 100} {
		assert.ErrorIs(t, d.SetPixel(i, 1, 2, 3, 1), ErrIndexOutOfRange)
		_, err := d.Pixel(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Empty(t, s.Ops(), "setters never touch the bus")
}

func TestSetAllAndClear(t *testing.T) {
	d := New(bus.NewSim())
	d.SetAll(123, 234, 12, 1.0)
	for i := 0; i < d.Len(); i++ {
		p, _ := d.Pixel(i)
		assert.Equal(t, Pixel{123, 234, 12, 1.0}, p)
	}

	d.Clear()
	for i := 0; i < d.Len(); i++ {
		p, _ := d.Pixel(i)
		assert.Equal(t, Pixel{0, 0, 0, 1.0}, p, "clear keeps brightness")
	}

	d.SetBrightness(0.5)
	p, _ := d.Pixel(4)
	assert.Equal(t, float32(0.5), p.Brightness)
}

func TestShowWireFormat(t *testing.T) {
	s := bus.NewSim()
	d := New(s)
	require.NoError(t, d.SetPixel(0, 0x11, 0x22, 0x33, 1.0))
	require.NoError(t, d.SetPixel(6, 0xAA, 0xBB, 0xCC, 0.0))
	require.NoError(t, d.Show())

	want := []byte{
		0x00, 0x00, 0x00, 0x00,
		0xFF, 0x33, 0x22, 0x11,
		0xE0, 0, 0, 0,
		0xE0, 0, 0, 0,
		0xE0, 0, 0, 0,
		0xE0, 0, 0, 0,
		0xE0, 0, 0, 0,
		0xE0, 0xCC, 0xBB, 0xAA,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	assert.Equal(t, want, lastWrite(t, s))
	assert.Len(t, s.Ops(), 1, "show is exactly one bus write")
}

func TestFrameLengths(t *testing.T) {
	for _, n := range []int{1, 2, 7, 16} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			s := bus.NewSim()
			d, err := NewChain(s, n)
			require.NoError(t, err)
			d.SetAll(1, 2, 3, 0.7)
			require.NoError(t, d.Show())

			got := lastWrite(t, s)
			end := (n + 1) / 2
			require.Len(t, got, 4+4*n+end)
			assert.Equal(t, []byte{0, 0, 0, 0}, got[:4])
			for i := 0; i < n; i++ {
				assert.Equal(t, byte(0xE0), got[4+4*i]&0xE0)
			}
			for _, b := range got[4+4*n:] {
				assert.Equal(t, byte(0xFF), b)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, uint8(0), Level(0))
	assert.Equal(t, uint8(31), Level(1))
	assert.Equal(t, uint8(16), Level(0.5), "halves round up")
	assert.Equal(t, uint8(31), Level(7))
	assert.Equal(t, uint8(0), Level(-1))
	assert.Equal(t, uint8(3), Level(0.1))
}

func TestShowIsPure(t *testing.T) {
	s1, s2 := bus.NewSim(), bus.NewSim()
	a, b := New(s1), New(s2)
	for _, d := range []*Dev{a, b} {
		d.SetAll(10, 20, 30, 0.3)
		require.NoError(t, d.SetPixel(2, 200, 100, 50, 0.9))
	}
	require.NoError(t, a.Show())
	require.NoError(t, a.Show())
	require.NoError(t, b.Show())

	ops := s1.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, ops[0].Data, ops[1].Data, "show twice, same bytes")
	assert.Equal(t, ops[0].Data, lastWrite(t, s2), "same buffer, same bytes")
	assert.Equal(t, ops[0].Data, a.Encode())
}

func TestShowBusError(t *testing.T) {
	s := bus.NewSim()
	d := New(s)
	require.NoError(t, d.SetPixel(1, 5, 6, 7, 0.5))
	s.FailWith(bus.ErrSimulated)

	err := d.Show()
	var be *bus.Error
	require.True(t, errors.As(err, &be))
	assert.ErrorIs(t, err, bus.ErrSimulated)

	p, _ := d.Pixel(1)
	assert.Equal(t, Pixel{5, 6, 7, 0.5}, p, "buffer survives a failed show")

	s.FailWith(nil)
	require.NoError(t, d.Show())
	assert.Equal(t, d.Encode(), lastWrite(t, s))
}

func TestHalt(t *testing.T) {
	s := bus.NewSim()
	d := New(s)
	d.SetAll(255, 255, 255, 1)
	require.NoError(t, d.Halt())
	px, err := Decode(lastWrite(t, s))
	require.NoError(t, err)
	for _, p := range px {
		assert.Equal(t, Pixel{0, 0, 0, 1}, p)
	}
}

func TestDecode(t *testing.T) {
	d, _ := NewChain(bus.NewSim(), 16)
	require.NoError(t, d.SetPixel(15, 1, 2, 3, 1))
	px, err := Decode(d.Encode())
	require.NoError(t, err)
	require.Len(t, px, 16)
	assert.Equal(t, Pixel{1, 2, 3, 1}, px[15])

	_, err = Decode([]byte{0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrFrame)
	_, err = Decode(append(d.Encode(), 0xFF))
	assert.ErrorIs(t, err, ErrFrame)
	bad := d.Encode()
	bad[4] = 0x1F
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrFrame)
}
