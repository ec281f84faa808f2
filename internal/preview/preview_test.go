package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/rainbowhat/alphanum"
	"github.com/coreman2200/rainbowhat/apa102"
	"github.com/coreman2200/rainbowhat/bus"
	"github.com/coreman2200/rainbowhat/buzzer"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := c.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(b, &f))
	return f
}

func health(t *testing.T, srv *httptest.Server) map[string]any {
	t.Helper()
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestDecodeOps(t *testing.T) {
	sim := bus.NewSim()
	var frames []Frame
	sim.Subscribe(func(op bus.Op) {
		if f, ok := decode(op); ok {
			frames = append(frames, f)
		}
	})

	leds := apa102.New(sim)
	require.NoError(t, leds.SetPixel(0, 10, 20, 30, 1))
	require.NoError(t, leds.Show())

	disp, err := alphanum.New(sim)
	require.NoError(t, err)
	disp.PrintStr("ab12", true)
	require.NoError(t, disp.Show())

	require.NoError(t, buzzer.New(sim).PlayNote(context.Background(), 69, time.Millisecond))
	require.NoError(t, sim.SerialWrite([]byte{1, 2, 3}))

	require.Len(t, frames, 7)
	assert.Equal(t, KindPixels, frames[0].Kind)
	require.Len(t, frames[0].Pixels, apa102.NumPixels)
	assert.Equal(t, Pixel{R: 10, G: 20, B: 30, Brightness: 1}, frames[0].Pixels[0])

	for _, f := range frames[1:4] {
		assert.Equal(t, KindCommand, f.Kind)
		require.NotNil(t, f.Reg)
	}
	assert.Equal(t, uint8(0x21), *frames[1].Reg)

	assert.Equal(t, KindCells, frames[4].Kind)
	assert.Equal(t, "AB12", frames[4].Text)
	assert.True(t, frames[4].Cells[alphanum.ColonCell].Decimal)

	assert.Equal(t, KindTone, frames[5].Kind)
	assert.True(t, frames[5].Tone.On)
	assert.InDelta(t, 440.0, frames[5].Tone.Hz, 1e-6)
	assert.InDelta(t, 0.9, frames[5].Tone.Duty, 0.01)
	assert.False(t, frames[6].Tone.On)
}

func TestReplayOnConnect(t *testing.T) {
	sim := bus.NewSim()
	s := New()
	s.Attach(sim)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	disp, err := alphanum.New(sim)
	require.NoError(t, err)
	disp.PrintStr("HI", false)
	require.NoError(t, disp.Show())
	leds := apa102.New(sim)
	leds.SetAll(1, 2, 3, 0.5)
	require.NoError(t, leds.Show())

	c := dial(t, srv)
	first := read(t, c)
	assert.Equal(t, KindPixels, first.Kind)
	second := read(t, c)
	assert.Equal(t, KindCells, second.Kind)
	assert.Equal(t, "HI  ", second.Text)
	assert.Less(t, second.Seq, first.Seq)
}

func TestLiveFramesAndHealth(t *testing.T) {
	sim := bus.NewSim()
	s := New()
	s.Attach(sim)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	c := dial(t, srv)
	require.Eventually(t, func() bool {
		return health(t, srv)["clients"] == float64(1)
	}, 2*time.Second, 10*time.Millisecond)

	leds := apa102.New(sim)
	leds.SetAll(255, 0, 0, 1)
	require.NoError(t, leds.Show())

	f := read(t, c)
	assert.Equal(t, KindPixels, f.Kind)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, uint8(255), f.Pixels[6].R)

	h := health(t, srv)
	assert.Equal(t, float64(1), h["seq"])
	assert.Equal(t, map[string]any{"pixels": float64(1)}, h["frames"])
}

func TestScale(t *testing.T) {
	assert.Equal(t, uint8(255), scale(255, 1))
	assert.Equal(t, uint8(0), scale(255, 0))
	assert.Equal(t, uint8(128), scale(255, 0.5))
}
