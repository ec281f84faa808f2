package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/rainbowhat"
	"github.com/coreman2200/rainbowhat/internal/config"
	"github.com/coreman2200/rainbowhat/internal/loop"
	"github.com/coreman2200/rainbowhat/melody"
)

// scrollStep is how long each marquee position stays on the display.
const scrollStep = 300 * time.Millisecond

func run(ctx context.Context, hat *rainbowhat.HAT, cfg *config.Config, mode string) error {
	switch mode {
	case "rainbow":
		return runRainbow(ctx, hat, cfg)
	case "scroll":
		return runScroll(ctx, hat, cfg)
	case "melody":
		return runMelody(ctx, hat, cfg)
	case "touch":
		return runTouch(ctx, hat, cfg)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func runRainbow(ctx context.Context, hat *rainbowhat.HAT, cfg *config.Config) error {
	brightness := float32(cfg.Brightness)
	last := -1
	l := &loop.Looper{FPS: cfg.FPS, Frame: func(elapsed time.Duration) error {
		rainbowhat.Rainbow(hat.Lights, elapsed, brightness)
		if err := hat.Lights.Show(); err != nil {
			return err
		}
		return scrollTo(hat, cfg.Text, int(elapsed/scrollStep), &last)
	}}
	return l.Run(ctx)
}

func runScroll(ctx context.Context, hat *rainbowhat.HAT, cfg *config.Config) error {
	last := -1
	l := &loop.Looper{FPS: cfg.FPS, Frame: func(elapsed time.Duration) error {
		return scrollTo(hat, cfg.Text, int(elapsed/scrollStep), &last)
	}}
	return l.Run(ctx)
}

// scrollTo shows the marquee window for step unless it is already showing.
func scrollTo(hat *rainbowhat.HAT, text string, step int, last *int) error {
	if step == *last {
		return nil
	}
	*last = step
	hat.Display.PrintStr(rainbowhat.Marquee(text, step), false)
	return hat.Display.Show()
}

func runMelody(ctx context.Context, hat *rainbowhat.HAT, cfg *config.Config) error {
	m := melody.Default()
	if cfg.MelodyFile != "" {
		f, err := os.Open(cfg.MelodyFile)
		if err != nil {
			return err
		}
		m, err = melody.FromSMF(f, cfg.MelodyTrack)
		f.Close()
		if err != nil {
			return err
		}
	}
	log.Info().Int("notes", len(m)).Dur("length", m.Duration()).Msg("playing melody")

	hat.Display.PrintStrRight("PLAY", false)
	if err := hat.Display.Show(); err != nil {
		return err
	}
	return melody.Play(ctx, &lightsPlayer{hat: hat, brightness: float32(cfg.Brightness)}, m)
}

// lightsPlayer plays notes on the buzzer and lights the LED matching each
// note's pitch class.
type lightsPlayer struct {
	hat        *rainbowhat.HAT
	brightness float32
}

func (p *lightsPlayer) PlayNote(ctx context.Context, note int, d time.Duration) error {
	n := p.hat.Lights.Len()
	r, g, b := rainbowhat.Wheel(float64(note%12) / 12)
	p.hat.Lights.Clear()
	_ = p.hat.Lights.SetPixel(note%n, r, g, b, p.brightness)
	if err := p.hat.Lights.Show(); err != nil {
		return err
	}
	return p.hat.Buzzer.PlayNote(ctx, note, d)
}

func runTouch(ctx context.Context, hat *rainbowhat.HAT, cfg *config.Config) error {
	brightness := float32(cfg.Brightness)
	var last rainbowhat.Pad = "-"
	l := &loop.Looper{FPS: cfg.FPS, Frame: func(time.Duration) error {
		var pressed rainbowhat.Pad
		for _, p := range rainbowhat.Pads {
			on, err := hat.Pressed(p)
			if err != nil {
				return err
			}
			if on {
				pressed = p
				break
			}
		}
		if pressed == last {
			return nil
		}
		last = pressed

		hat.Lights.Clear()
		hat.Display.Clear()
		for i, p := range rainbowhat.Pads {
			if p != pressed {
				continue
			}
			r, g, b := rainbowhat.Wheel(float64(i) / 3)
			hat.Lights.SetAll(r, g, b, brightness)
			hat.Display.PrintStrRight(p.Label(), false)
			log.Debug().Str("pad", p.Label()).Msg("touch")
		}
		if err := hat.Lights.Show(); err != nil {
			return err
		}
		return hat.Display.Show()
	}}
	return l.Run(ctx)
}
