// Package alphanum drives the four character 14-segment display on the
// Rainbow HAT, an HT16K33 controller at I²C address 0x70.
//
// Each character cell is two bytes of display RAM: the low byte holds
// segments 0-7, the high byte segments 8-13 in bits 0-5 and the decimal point
// in bit 6. The colon between the second and third character is wired to the
// decimal point of cell 1.
package alphanum

import (
	"errors"
	"fmt"

	"github.com/coreman2200/rainbowhat/bus"
)

// NumCells is the number of characters on the display.
const NumCells = 4

// ColonCell is the cell whose decimal point bit lights the colon.
const ColonCell = 1

// HT16K33 commands.
const (
	cmdOscillatorOn = 0x21
	cmdBlink        = 0x80
	cmdDisplayOn    = 0x01
	cmdBrightness   = 0xE0

	ramAddress = 0x00

	segmentMask = 0x3FFF
	decimalBit  = 1 << 6

	// MaxBrightness is the highest of the controller's 16 dimming steps.
	MaxBrightness = 15
)

// Blink is a blink rate of the whole display.
type Blink byte

const (
	BlinkOff    Blink = 0x00
	Blink2Hz    Blink = 0x02
	Blink1Hz    Blink = 0x04
	BlinkHalfHz Blink = 0x06
)

var (
	ErrIndexOutOfRange = errors.New("alphanum: cell index out of range")
	ErrBrightness      = errors.New("alphanum: brightness must be in [0,15]")
	ErrBlinkRate       = errors.New("alphanum: unknown blink rate")
	ErrPayload         = errors.New("alphanum: malformed display payload")
)

// Cell is one character position.
type Cell struct {
	Mask    uint16 // 14 segment bits
	Decimal bool
}

// Display is the display buffer plus the controller it flushes to.
type Display struct {
	w          bus.AddressedWriter
	cells      [NumCells]Cell
	brightness uint8
	blink      Blink
}

// New switches the controller's oscillator and display on at full brightness
// and returns a blank display. Nothing is written to display RAM until Show.
func New(w bus.AddressedWriter) (*Display, error) {
	d := &Display{w: w, brightness: MaxBrightness, blink: BlinkOff}
	for _, c := range []byte{
		cmdOscillatorOn,
		cmdBlink | cmdDisplayOn | byte(BlinkOff),
		cmdBrightness | MaxBrightness,
	} {
		if err := d.command(c); err != nil {
			return nil, fmt.Errorf("alphanum: setup: %w", err)
		}
	}
	return d, nil
}

func (d *Display) String() string {
	return "ht16k33-alphanum4"
}

// PrintStr writes text into the buffer from the left. Characters past the
// fourth are dropped and unused cells are blanked. Decimal points of the
// written cells are cleared, then colon sets the colon indicator.
func (d *Display) PrintStr(text string, colon bool) {
	rs := fit(text)
	for i := range d.cells {
		var m uint16
		if i < len(rs) {
			m = Glyph(rs[i])
		}
		d.cells[i] = Cell{Mask: m}
	}
	d.cells[ColonCell].Decimal = colon
}

// PrintStrRight is PrintStr with the text aligned to the rightmost cell.
func (d *Display) PrintStrRight(text string, colon bool) {
	rs := fit(text)
	off := NumCells - len(rs)
	for i := range d.cells {
		var m uint16
		if i >= off {
			m = Glyph(rs[i-off])
		}
		d.cells[i] = Cell{Mask: m}
	}
	d.cells[ColonCell].Decimal = colon
}

// SetDigit puts the glyph for r in cell i.
func (d *Display) SetDigit(i int, r rune, decimal bool) error {
	return d.SetDigitRaw(i, Cell{Mask: Glyph(r), Decimal: decimal})
}

// SetDigitRaw stores c in cell i. Mask bits above 13 are ignored.
func (d *Display) SetDigitRaw(i int, c Cell) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	c.Mask &= segmentMask
	d.cells[i] = c
	return nil
}

// SetDecimal turns the decimal point of cell i on or off.
func (d *Display) SetDecimal(i int, on bool) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	d.cells[i].Decimal = on
	return nil
}

// Cell returns the buffered content of cell i.
func (d *Display) Cell(i int) (Cell, error) {
	if err := checkIndex(i); err != nil {
		return Cell{}, err
	}
	return d.cells[i], nil
}

// Clear blanks every cell. It doesn't flush.
func (d *Display) Clear() {
	d.cells = [NumCells]Cell{}
}

// Show writes the buffer to display RAM in one addressed write.
func (d *Display) Show() error {
	p := d.Encode()
	if err := d.w.AddressedWrite(ramAddress, p[:]); err != nil {
		return fmt.Errorf("alphanum: show: %w", bus.Wrap("addressed_write", d.String(), err))
	}
	return nil
}

// Halt blanks the display.
func (d *Display) Halt() error {
	d.Clear()
	return d.Show()
}

// SetBrightness sets the dimming level, 0 to 15. It is sent immediately.
func (d *Display) SetBrightness(level uint8) error {
	if level > MaxBrightness {
		return fmt.Errorf("%w: %d", ErrBrightness, level)
	}
	if err := d.command(cmdBrightness | level); err != nil {
		return fmt.Errorf("alphanum: brightness: %w", err)
	}
	d.brightness = level
	return nil
}

// Brightness returns the last level sent to the controller.
func (d *Display) Brightness() uint8 { return d.brightness }

// Blink returns the last blink rate sent to the controller.
func (d *Display) Blink() Blink { return d.blink }

// SetBlink sets the blink rate. It is sent immediately.
func (d *Display) SetBlink(b Blink) error {
	switch b {
	case BlinkOff, Blink2Hz, Blink1Hz, BlinkHalfHz:
	default:
		return fmt.Errorf("%w: %#x", ErrBlinkRate, byte(b))
	}
	if err := d.command(cmdBlink | cmdDisplayOn | byte(b)); err != nil {
		return fmt.Errorf("alphanum: blink: %w", err)
	}
	d.blink = b
	return nil
}

// Encode returns the display RAM image of the buffer.
func (d *Display) Encode() [2 * NumCells]byte {
	var p [2 * NumCells]byte
	for k, c := range d.cells {
		p[2*k] = byte(c.Mask)
		p[2*k+1] = byte(c.Mask>>8) & 0x3F
		if c.Decimal {
			p[2*k+1] |= decimalBit
		}
	}
	return p
}

// Decode turns a display RAM image back into cells.
func Decode(p []byte) ([NumCells]Cell, error) {
	var cells [NumCells]Cell
	if len(p) != 2*NumCells {
		return cells, fmt.Errorf("%w: %d bytes", ErrPayload, len(p))
	}
	for k := range cells {
		cells[k] = Cell{
			Mask:    uint16(p[2*k]) | uint16(p[2*k+1]&0x3F)<<8,
			Decimal: p[2*k+1]&decimalBit != 0,
		}
	}
	return cells, nil
}

func (d *Display) command(c byte) error {
	return bus.Wrap("addressed_write", d.String(), d.w.AddressedWrite(c, nil))
}

func fit(text string) []rune {
	rs := []rune(text)
	if len(rs) > NumCells {
		rs = rs[:NumCells]
	}
	return rs
}

func checkIndex(i int) error {
	if i < 0 || i >= NumCells {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, NumCells)
	}
	return nil
}
