// Package rainbowhat ties the Rainbow HAT devices to one bus: the APA102
// rainbow, the four character alphanumeric display, the buzzer and the three
// capacitive touch pads.
package rainbowhat

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/rainbowhat/alphanum"
	"github.com/coreman2200/rainbowhat/apa102"
	"github.com/coreman2200/rainbowhat/bus"
	"github.com/coreman2200/rainbowhat/buzzer"
)

// HAT is the board.
type HAT struct {
	Lights  *apa102.Dev
	Display *alphanum.Display
	Buzzer  *buzzer.Buzzer

	b bus.Bus
}

// New sets up every device on b. The display controller is configured here;
// the LEDs are left untouched until the first Show.
func New(b bus.Bus) (*HAT, error) {
	disp, err := alphanum.New(b)
	if err != nil {
		return nil, fmt.Errorf("rainbowhat: %w", err)
	}
	return &HAT{
		Lights:  apa102.New(b),
		Display: disp,
		Buzzer:  buzzer.New(b),
		b:       b,
	}, nil
}

// Pressed reports whether pad is being touched. The pads pull low when
// touched.
func (h *HAT) Pressed(pad Pad) (bool, error) {
	high, err := h.b.DigitalRead(string(pad))
	if err != nil {
		return false, fmt.Errorf("rainbowhat: touch %s: %w", pad.Label(), err)
	}
	return !high, nil
}

// Close blanks the LEDs and the display, silences the buzzer and closes the
// bus when it can be closed. It attempts every step and returns all errors.
func (h *HAT) Close() error {
	var errs []error
	if err := h.Lights.Halt(); err != nil {
		errs = append(errs, err)
	}
	if err := h.Display.Halt(); err != nil {
		errs = append(errs, err)
	}
	if err := h.Buzzer.Stop(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := h.b.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rainbowhat: close bus: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Warn().Err(err).Msg("rainbowhat: close")
	}
	return err
}
