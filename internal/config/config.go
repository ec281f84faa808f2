package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/rainbowhat/bus"
)

type SPI struct {
	Port    string `yaml:"port"`     // e.g. SPI0.0
	SpeedHz int64  `yaml:"speed_hz"` // e.g. 1000000
}

type I2C struct {
	Bus     string `yaml:"bus"`     // "" picks the first bus
	Address uint16 `yaml:"address"` // HT16K33, 0x70 on the HAT
}

type Buzzer struct {
	Pin string `yaml:"pin"`
}

type Preview struct {
	Addr    string `yaml:"addr"`    // HTTP listen address, empty disables
	Console bool   `yaml:"console"` // draw the LEDs in the terminal
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Driver      string  `yaml:"driver"` // "periph" | "sim"
	Brightness  float64 `yaml:"brightness"`
	FPS         int     `yaml:"fps"`
	Text        string  `yaml:"text"`
	MelodyFile  string  `yaml:"melody_file,omitempty"`
	MelodyTrack int     `yaml:"melody_track"` // -1 picks the first track with notes

	SPI     SPI     `yaml:"spi"`
	I2C     I2C     `yaml:"i2c"`
	Buzzer  Buzzer  `yaml:"buzzer"`
	Preview Preview `yaml:"preview"`
	Log     Log     `yaml:"log"`
}

// Default is the board wiring with a local preview server.
func Default() *Config {
	return &Config{
		Driver:      "periph",
		Brightness:  0.5,
		FPS:         30,
		Text:        "RAINBOW HAT",
		MelodyTrack: -1,
		SPI:         SPI{Port: bus.SPIPort, SpeedHz: int64(bus.DefaultOpts.SPISpeed / physic.Hertz)},
		I2C:         I2C{Address: bus.DisplayAddress},
		Buzzer:      Buzzer{Pin: bus.BuzzerPin},
		Preview:     Preview{Addr: ":8080"},
		Log:         Log{Level: "info"},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "periph", "sim":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.Brightness < 0 || c.Brightness > 1 {
		return fmt.Errorf("brightness %g not in [0,1]", c.Brightness)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.I2C.Address > 0x7F {
		return fmt.Errorf("i2c address %#x is not 7 bit", c.I2C.Address)
	}
	return nil
}

// BusOpts is the periph wiring the config describes.
func (c *Config) BusOpts() bus.Opts {
	return bus.Opts{
		SPIPort:    c.SPI.Port,
		SPISpeed:   physic.Frequency(c.SPI.SpeedHz) * physic.Hertz,
		I2CBus:     c.I2C.Bus,
		I2CAddress: c.I2C.Address,
		BuzzerPin:  c.Buzzer.Pin,
	}
}
