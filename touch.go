package rainbowhat

import "github.com/coreman2200/rainbowhat/bus"

// Pad is a capacitive touch pad, named by its GPIO.
type Pad string

const (
	PadA Pad = bus.TouchA
	PadB Pad = bus.TouchB
	PadC Pad = bus.TouchC
)

// Pads lists the pads from left to right.
var Pads = []Pad{PadA, PadB, PadC}

// Label is the letter printed on the board next to the pad.
func (p Pad) Label() string {
	switch p {
	case PadA:
		return "A"
	case PadB:
		return "B"
	case PadC:
		return "C"
	}
	return string(p)
}
