// Package buzzer plays tones on the Rainbow HAT's piezo buzzer.
package buzzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/rainbowhat/bus"
)

// Duty is the PWM duty cycle used for every tone.
const Duty = gpio.DutyMax * 9 / 10

const (
	MinNote = 0
	MaxNote = 127

	// A4 is MIDI note 69 at 440 Hz.
	refNote = 69
	refHz   = 440.0
)

var (
	ErrInvalidNote      = errors.New("buzzer: note must be in [0,127]")
	ErrInvalidDuration  = errors.New("buzzer: duration must be positive")
	ErrInvalidFrequency = errors.New("buzzer: frequency must be positive")
)

// Buzzer drives a PWM output. It is not safe for concurrent use.
type Buzzer struct {
	p bus.PWM
}

// New returns a Buzzer on p.
func New(p bus.PWM) *Buzzer {
	return &Buzzer{p: p}
}

// Frequency returns the equal temperament frequency of a MIDI note.
func Frequency(note int) (float64, error) {
	if note < MinNote || note > MaxNote {
		return 0, fmt.Errorf("%w: %d", ErrInvalidNote, note)
	}
	return refHz * math.Pow(2, float64(note-refNote)/12), nil
}

// PlayNote sounds note for d and then silences the output. It returns early
// with ctx.Err() when ctx is done; the output is stopped either way. Invalid
// arguments are rejected before anything is driven.
func (b *Buzzer) PlayNote(ctx context.Context, note int, d time.Duration) error {
	hz, err := Frequency(note)
	if err != nil {
		return err
	}
	return b.Tone(ctx, hz, d)
}

// Tone sounds hz for d. See PlayNote.
func (b *Buzzer) Tone(ctx context.Context, hz float64, d time.Duration) (err error) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidFrequency, hz)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}

	defer func() {
		if serr := b.Stop(); err == nil {
			err = serr
		}
	}()
	if serr := b.p.PWMStart(ToFrequency(hz), Duty); serr != nil {
		return fmt.Errorf("buzzer: start: %w", bus.Wrap("pwm_start", "buzzer", serr))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop silences the buzzer. Calling it on a silent buzzer is harmless.
func (b *Buzzer) Stop() error {
	if err := b.p.PWMStop(); err != nil {
		return fmt.Errorf("buzzer: stop: %w", bus.Wrap("pwm_stop", "buzzer", err))
	}
	return nil
}

// ToFrequency converts hz to the nearest physic.Frequency (micro hertz).
func ToFrequency(hz float64) physic.Frequency {
	return physic.Frequency(math.Round(hz * float64(physic.Hertz)))
}
