package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultFPS = 30

// Frame draws one frame. elapsed is the time since Run started.
type Frame func(elapsed time.Duration) error

// Looper calls Frame at a fixed rate. The time a frame takes is taken off the
// wait before the next one, so slow frames don't drag the rate down.
type Looper struct {
	FPS   int
	Frame Frame

	frames uint64
}

// Run loops until ctx is done or Frame fails. A cancelled ctx is a normal
// stop and returns nil.
func (l *Looper) Run(ctx context.Context) error {
	fps := l.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	period := time.Second / time.Duration(fps)
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	log.Debug().Int("fps", fps).Dur("period", period).Msg("loop start")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Uint64("frames", l.frames).Dur("ran", time.Since(start)).Msg("loop stop")
			return nil
		case <-timer.C:
		}

		t := time.Now()
		if err := l.Frame(t.Sub(start)); err != nil {
			return fmt.Errorf("loop: frame %d: %w", l.frames, err)
		}
		l.frames++

		wait := period - time.Since(t)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Frames returns how many frames have been drawn.
func (l *Looper) Frames() uint64 { return l.frames }
