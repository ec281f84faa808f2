package preview

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/rainbowhat/alphanum"
	"github.com/coreman2200/rainbowhat/apa102"
	"github.com/coreman2200/rainbowhat/bus"
)

// Frame kinds.
const (
	KindPixels  = "pixels"
	KindCells   = "cells"
	KindTone    = "tone"
	KindCommand = "command"
)

// replayed to clients when they connect, in this order
var stateKinds = []string{KindPixels, KindCells, KindTone}

type Pixel struct {
	R          uint8   `json:"r"`
	G          uint8   `json:"g"`
	B          uint8   `json:"b"`
	Brightness float32 `json:"brightness"`
}

type Cell struct {
	Mask    uint16 `json:"mask"`
	Decimal bool   `json:"dp"`
}

type Tone struct {
	On   bool    `json:"on"`
	Hz   float64 `json:"hz,omitempty"`
	Duty float64 `json:"duty,omitempty"`
}

// Frame is one message on /ws.
type Frame struct {
	T      int64   `json:"t"` // unix nanoseconds
	Seq    uint64  `json:"seq"`
	Kind   string  `json:"kind"`
	Pixels []Pixel `json:"pixels,omitempty"`
	Cells  []Cell  `json:"cells,omitempty"`
	Text   string  `json:"text,omitempty"`
	Tone   *Tone   `json:"tone,omitempty"`
	Reg    *uint8  `json:"reg,omitempty"`
}

// Server mirrors the traffic of a simulated bus to websocket clients and,
// optionally, to the terminal.
type Server struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	last    map[string][]byte
	counts  map[string]uint64
	seq     uint64
	start   time.Time
	drawer  display.Drawer
}

func New() *Server {
	return &Server{
		clients: map[*websocket.Conn]bool{},
		last:    map[string][]byte{},
		counts:  map[string]uint64{},
		start:   time.Now(),
	}
}

// WithConsole also draws the LED chain in the terminal.
func (s *Server) WithConsole() *Server {
	s.drawer = screen.New(apa102.NumPixels)
	return s
}

// Attach subscribes s to everything written to sim.
func (s *Server) Attach(sim *bus.Sim) {
	sim.Subscribe(s.Observe)
}

// Observe turns one bus operation into a frame and sends it.
func (s *Server) Observe(op bus.Op) {
	f, ok := decode(op)
	if !ok {
		return
	}
	if f.Kind == KindPixels && s.drawer != nil {
		s.draw(f.Pixels)
	}
	s.publish(f)
}

// Handler serves /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("preview: upgrade")
		return
	}

	s.mu.Lock()
	for _, k := range stateKinds {
		if b, ok := s.last[k]; ok {
			conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}
	}
	s.clients[conn] = true
	n := len(s.clients)
	s.mu.Unlock()
	log.Info().Str("remote", r.RemoteAddr).Int("clients", n).Msg("preview: client connected")

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := make(map[string]uint64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	resp := map[string]any{
		"seq":      s.seq,
		"uptime_s": time.Since(s.start).Seconds(),
		"clients":  len(s.clients),
		"frames":   counts,
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	f.Seq = s.seq
	b, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("kind", f.Kind).Msg("preview: marshal frame")
		return
	}
	s.counts[f.Kind]++
	if f.Kind != KindCommand {
		s.last[f.Kind] = b
	}
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("preview: write frame")
		}
	}
}

func (s *Server) draw(px []Pixel) {
	img := image.NewNRGBA(image.Rect(0, 0, len(px), 1))
	for i, p := range px {
		img.SetNRGBA(i, 0, color.NRGBA{
			R: scale(p.R, p.Brightness),
			G: scale(p.G, p.Brightness),
			B: scale(p.B, p.Brightness),
			A: 255,
		})
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), img, image.Point{}); err != nil {
		log.Warn().Err(err).Msg("preview: console draw")
	}
}

func decode(op bus.Op) (Frame, bool) {
	f := Frame{T: op.At.UnixNano(), Kind: string(op.Kind)}
	switch op.Kind {
	case bus.OpSerialWrite:
		px, err := apa102.Decode(op.Data)
		if err != nil {
			log.Debug().Err(err).Int("len", len(op.Data)).Msg("preview: not an led frame")
			return f, false
		}
		f.Kind = KindPixels
		f.Pixels = make([]Pixel, len(px))
		for i, p := range px {
			f.Pixels[i] = Pixel{R: p.R, G: p.G, B: p.B, Brightness: p.Brightness}
		}

	case bus.OpAddressedWrite:
		if len(op.Data) == 0 {
			reg := op.Reg
			f.Kind, f.Reg = KindCommand, &reg
			break
		}
		cells, err := alphanum.Decode(op.Data)
		if err != nil {
			log.Debug().Err(err).Uint8("reg", op.Reg).Msg("preview: not a display frame")
			return f, false
		}
		f.Kind = KindCells
		text := make([]rune, len(cells))
		for i, c := range cells {
			f.Cells = append(f.Cells, Cell{Mask: c.Mask, Decimal: c.Decimal})
			r, ok := alphanum.Rune(c.Mask)
			if !ok {
				r = '?'
			}
			text[i] = r
		}
		f.Text = string(text)

	case bus.OpPWMStart:
		f.Kind = KindTone
		f.Tone = &Tone{
			On:   true,
			Hz:   float64(op.Freq) / float64(physic.Hertz),
			Duty: float64(op.Duty) / float64(gpio.DutyMax),
		}

	case bus.OpPWMStop:
		f.Kind = KindTone
		f.Tone = &Tone{}

	default:
		return f, false
	}
	return f, true
}

func scale(v uint8, brightness float32) uint8 {
	return uint8(float32(v)*brightness + 0.5)
}
