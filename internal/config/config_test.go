package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	o := c.BusOpts()
	assert.Equal(t, "SPI0.0", o.SPIPort)
	assert.Equal(t, physic.MegaHertz, o.SPISpeed)
	assert.Equal(t, uint16(0x70), o.I2CAddress)
	assert.Equal(t, "GPIO13", o.BuzzerPin)
	assert.Equal(t, -1, c.MelodyTrack)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
driver: sim
fps: 60
melody_track: 2
spi:
  speed_hz: 4000000
preview:
  console: true
log:
  level: debug
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", c.Driver)
	assert.Equal(t, 60, c.FPS)
	assert.Equal(t, 2, c.MelodyTrack)
	assert.Equal(t, 0.5, c.Brightness)
	assert.Equal(t, "SPI0.0", c.SPI.Port)
	assert.Equal(t, 4*physic.MegaHertz, c.BusOpts().SPISpeed)
	assert.True(t, c.Preview.Console)
	assert.Equal(t, ":8080", c.Preview.Addr)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"driver":     "driver: ws281x\n",
		"brightness": "brightness: 1.5\n",
		"fps":        "fps: 0\n",
		"address":    "i2c:\n  address: 0x80\n",
		"yaml":       "driver: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := Default()
	c.Text = "HI"
	c.MelodyFile = "tune.mid"
	require.NoError(t, Save(path, c))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
