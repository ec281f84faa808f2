// Package melody sequences notes for the buzzer. Tunes come from the built in
// Default or from a Standard MIDI File track.
package melody

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultGap is the silence Default leaves after every note.
const DefaultGap = 50 * time.Millisecond

// AnyTrack makes FromSMF use the first track that has notes. Format 1 files
// usually keep tempo and names in track 0 and the notes further on.
const AnyTrack = -1

var ErrEmpty = errors.New("melody: no notes")

// Note is one sounded MIDI note followed by Delay of silence.
type Note struct {
	Number   int
	Duration time.Duration
	Delay    time.Duration
}

// Melody is a sequence of notes played one after the other.
type Melody []Note

// Duration is how long the melody takes to play.
func (m Melody) Duration() time.Duration {
	var d time.Duration
	for _, n := range m {
		d += n.Duration + n.Delay
	}
	return d
}

// Player is what Play drives; *buzzer.Buzzer implements it.
type Player interface {
	PlayNote(ctx context.Context, note int, d time.Duration) error
}

var (
	defaultNotes = [...]int{
		71, 71, 71, 71, 71, 71, 71, 64, 67, 71,
		69, 69, 69, 69, 69, 69, 69, 62, 66, 69,
		71, 71, 71, 71, 71, 71, 71, 73, 74, 77,
		74, 71, 69, 66, 64, 64,
	}
	defaultMillis = [...]int{
		300, 50, 50, 300, 50, 50, 300, 300, 300, 200,
		300, 50, 50, 300, 50, 50, 300, 300, 300, 200,
		300, 50, 50, 300, 50, 50, 300, 300, 300, 200,
		300, 300, 300, 300, 600, 600,
	}
)

// Default returns the demo tune.
func Default() Melody {
	m := make(Melody, len(defaultNotes))
	for i, n := range defaultNotes {
		m[i] = Note{
			Number:   n,
			Duration: time.Duration(defaultMillis[i]) * time.Millisecond,
			Delay:    DefaultGap,
		}
	}
	return m
}

// Play plays m on p, note by note, until it ends or ctx is done.
func Play(ctx context.Context, p Player, m Melody) error {
	if len(m) == 0 {
		return ErrEmpty
	}
	for i, n := range m {
		if err := p.PlayNote(ctx, n.Number, n.Duration); err != nil {
			return fmt.Errorf("melody: note %d: %w", i, err)
		}
		if n.Delay <= 0 {
			continue
		}
		t := time.NewTimer(n.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// FromSMF reads track of a Standard MIDI File as a monophonic melody. A note
// that starts while another is sounding cuts the first one short; the channel
// is ignored. A negative track is AnyTrack.
func FromSMF(r io.Reader, track int) (Melody, error) {
	if track >= 0 {
		return fromTrack(r, track)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("melody: read smf: %w", err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("melody: read smf: %w", err)
	}
	for i := range s.Tracks {
		m, err := fromTrack(bytes.NewReader(b), i)
		if !errors.Is(err, ErrEmpty) {
			return m, err
		}
	}
	return nil, ErrEmpty
}

func fromTrack(r io.Reader, track int) (Melody, error) {
	var (
		m        Melody
		sounding = -1
		startUS  int64
		endUS    int64
		lastUS   int64
	)
	end := func(at int64) {
		m = append(m, Note{
			Number:   sounding,
			Duration: time.Duration(at-startUS) * time.Microsecond,
		})
		sounding, endUS = -1, at
	}

	rd := smf.ReadTracksFrom(r, track).Do(func(te smf.TrackEvent) {
		var ch, key, vel uint8
		lastUS = te.AbsMicroSeconds
		msg := midi.Message(te.Message)
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if sounding >= 0 {
				end(te.AbsMicroSeconds)
			}
			if len(m) > 0 {
				m[len(m)-1].Delay = time.Duration(te.AbsMicroSeconds-endUS) * time.Microsecond
			}
			sounding, startUS = int(key), te.AbsMicroSeconds
		case msg.GetNoteEnd(&ch, &key):
			if int(key) == sounding {
				end(te.AbsMicroSeconds)
			}
		}
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("melody: read smf: %w", err)
	}
	if sounding >= 0 {
		end(lastUS)
	}
	// Notes cut at the instant they started fold into the previous gap.
	out := m[:0]
	for _, n := range m {
		switch {
		case n.Duration > 0:
			out = append(out, n)
		case len(out) > 0:
			out[len(out)-1].Delay += n.Delay
		}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	log.Debug().Int("track", track).Int("notes", len(out)).Dur("length", out.Duration()).Msg("melody loaded")
	return out, nil
}
