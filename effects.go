package rainbowhat

import (
	"math"
	"strings"
	"time"

	"github.com/coreman2200/rainbowhat/alphanum"
	"github.com/coreman2200/rainbowhat/apa102"
)

// Wheel maps h in [0,1) onto a fully saturated colour.
func Wheel(h float64) (r, g, b uint8) {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	h *= 6
	switch {
	case h < 1.:
		return 255, byte(255 * h), 0
	case h < 2.:
		return byte(255 * (2 - h)), 255, 0
	case h < 3.:
		return 0, 255, byte(255 * (h - 2))
	case h < 4.:
		return 0, byte(255 * (4 - h)), 255
	case h < 5.:
		return byte(255 * (h - 4)), 0, 255
	default:
		return 255, 0, byte(255 * (6 - h))
	}
}

const (
	rainbowDegPerSec   = 20.0
	rainbowDegPerPixel = 10.0
)

// Rainbow paints a slowly rotating rainbow into d for the time elapsed since
// the animation started. The hue runs right to left. It does not Show.
func Rainbow(d *apa102.Dev, elapsed time.Duration, brightness float32) {
	base := elapsed.Seconds() * rainbowDegPerSec
	n := d.Len()
	for x := 0; x < n; x++ {
		hue := math.Mod(base+float64(x)*rainbowDegPerPixel, 360)
		r, g, b := Wheel(hue / 360)
		_ = d.SetPixel(n-1-x, r, g, b, brightness)
	}
}

// Marquee returns the window of text shown at step when text scrolls right
// to left across the display. Text that fits is returned unchanged.
func Marquee(text string, step int) string {
	rs := []rune(text)
	if len(rs) <= alphanum.NumCells {
		return text
	}
	loop := append(rs, []rune(strings.Repeat(" ", alphanum.NumCells))...)
	start := step % len(loop)
	if start < 0 {
		start += len(loop)
	}
	out := make([]rune, alphanum.NumCells)
	for i := range out {
		out[i] = loop[(start+i)%len(loop)]
	}
	return string(out)
}
