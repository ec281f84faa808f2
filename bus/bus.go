// Package bus is the access layer the Rainbow HAT encoders write through.
//
// Each encoder depends only on the narrow interface it needs: the LED chain
// on SerialWriter, the alphanumeric display on AddressedWriter and the buzzer
// on PWM. Periph implements all of them on real hardware through periph.io,
// Sim implements them in memory for tests and for running without a board.
package bus

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Board wiring. The HAT has a fixed pinout; these are BCM names as understood
// by periph's gpioreg.
const (
	SPIPort        = "SPI0.0" // APA102 DAT=GPIO10 CLK=GPIO11 CS=GPIO8
	DisplayAddress = 0x70     // HT16K33
	BuzzerPin      = "GPIO13"

	TouchA = "GPIO21"
	TouchB = "GPIO20"
	TouchC = "GPIO16"

	// The red, green and blue indicator lights on GPIO6, GPIO19 and GPIO26
	// are plain outputs and are not driven through Bus.
)

// SerialWriter writes an arbitrary byte stream on the serial (SPI) bus.
type SerialWriter interface {
	SerialWrite(p []byte) error
}

// AddressedWriter writes p to register reg of the addressed (I²C) peripheral.
// An empty p sends the register byte alone, which is how command-only
// controllers are driven.
type AddressedWriter interface {
	AddressedWrite(reg byte, p []byte) error
}

// PinReader reads the level of a digital input; true is high.
type PinReader interface {
	DigitalRead(pin string) (bool, error)
}

// PWM drives a variable frequency output.
type PWM interface {
	PWMStart(f physic.Frequency, duty gpio.Duty) error
	PWMStop() error
}

// Bus is everything the HAT needs.
type Bus interface {
	SerialWriter
	AddressedWriter
	PinReader
	PWM
}

// ErrSimulated is a stock cause for Sim.FailWith.
var ErrSimulated = errors.New("bus: simulated failure")

// Error is a failure reported by the transport. It is never retried by the
// encoders; the caller decides.
type Error struct {
	Op  string // serial_write, addressed_write, digital_read, pwm_start, pwm_stop
	Dev string
	Err error
}

func (e *Error) Error() string {
	s := "bus: " + e.Op
	if e.Dev != "" {
		s += " " + e.Dev
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as a *Error. An error that already is one is returned as is.
func Wrap(op, dev string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Op: op, Dev: dev, Err: err}
}
