package bus

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Opts selects the host devices backing a Periph. Zero values mean the board
// defaults.
type Opts struct {
	SPIPort    string
	SPISpeed   physic.Frequency
	I2CBus     string
	I2CAddress uint16
	BuzzerPin  string
}

// DefaultOpts is the Rainbow HAT wiring.
var DefaultOpts = Opts{
	SPIPort:    SPIPort,
	SPISpeed:   physic.MegaHertz,
	I2CAddress: DisplayAddress,
	BuzzerPin:  BuzzerPin,
}

// Periph is a Bus on top of periph.io.
type Periph struct {
	conn   spi.Conn
	disp   *i2c.Dev
	buzzer gpio.PinIO

	closers []func() error
}

// NewPeriph wraps already opened periph connections. Any of them may be nil
// when the corresponding device is not used; writes to it then fail.
func NewPeriph(conn spi.Conn, disp *i2c.Dev, buzzer gpio.PinIO) *Periph {
	return &Periph{conn: conn, disp: disp, buzzer: buzzer}
}

// OpenPeriph initializes the host drivers and opens the SPI port, the I²C bus
// and the buzzer pin named in o.
func OpenPeriph(o Opts) (*Periph, error) {
	if o.SPIPort == "" {
		o.SPIPort = DefaultOpts.SPIPort
	}
	if o.SPISpeed == 0 {
		o.SPISpeed = DefaultOpts.SPISpeed
	}
	if o.I2CAddress == 0 {
		o.I2CAddress = DefaultOpts.I2CAddress
	}
	if o.BuzzerPin == "" {
		o.BuzzerPin = DefaultOpts.BuzzerPin
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("bus: host init: %w", err)
	}

	p := &Periph{}
	port, err := spireg.Open(o.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("bus: open spi %q: %w", o.SPIPort, err)
	}
	p.closers = append(p.closers, port.Close)
	if p.conn, err = port.Connect(o.SPISpeed, spi.Mode0, 8); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("bus: connect spi %q: %w", o.SPIPort, err)
	}

	b, err := i2creg.Open(o.I2CBus)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("bus: open i2c %q: %w", o.I2CBus, err)
	}
	p.closers = append(p.closers, b.Close)
	p.disp = &i2c.Dev{Addr: o.I2CAddress, Bus: b}

	if p.buzzer = gpioreg.ByName(o.BuzzerPin); p.buzzer == nil {
		_ = p.Close()
		return nil, fmt.Errorf("bus: unknown buzzer pin %q", o.BuzzerPin)
	}

	log.Debug().
		Str("spi", o.SPIPort).
		Str("spi_speed", o.SPISpeed.String()).
		Str("i2c", b.String()).
		Uint16("addr", o.I2CAddress).
		Str("buzzer", o.BuzzerPin).
		Msg("periph bus opened")
	return p, nil
}

// SerialWrite sends p in one SPI transaction.
func (p *Periph) SerialWrite(b []byte) error {
	if p.conn == nil {
		return Wrap("serial_write", "", errors.New("no spi connection"))
	}
	return Wrap("serial_write", p.conn.String(), p.conn.Tx(b, nil))
}

// AddressedWrite sends reg followed by b in one I²C write.
func (p *Periph) AddressedWrite(reg byte, b []byte) error {
	if p.disp == nil {
		return Wrap("addressed_write", "", errors.New("no i2c device"))
	}
	w := make([]byte, 0, len(b)+1)
	w = append(w, reg)
	w = append(w, b...)
	return Wrap("addressed_write", p.disp.String(), p.disp.Tx(w, nil))
}

// DigitalRead configures pin as a pulled-up input and reads it.
func (p *Periph) DigitalRead(pin string) (bool, error) {
	g := gpioreg.ByName(pin)
	if g == nil {
		return false, Wrap("digital_read", pin, errors.New("unknown pin"))
	}
	if err := g.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, Wrap("digital_read", pin, err)
	}
	return g.Read() == gpio.High, nil
}

// PWMStart starts the buzzer output.
func (p *Periph) PWMStart(f physic.Frequency, duty gpio.Duty) error {
	if p.buzzer == nil {
		return Wrap("pwm_start", "", errors.New("no pwm pin"))
	}
	return Wrap("pwm_start", p.buzzer.Name(), p.buzzer.PWM(duty, f))
}

// PWMStop drives the buzzer pin low, which also ends any PWM on it.
func (p *Periph) PWMStop() error {
	if p.buzzer == nil {
		return Wrap("pwm_stop", "", errors.New("no pwm pin"))
	}
	return Wrap("pwm_stop", p.buzzer.Name(), p.buzzer.Out(gpio.Low))
}

// Close releases what OpenPeriph opened. It returns the first error.
func (p *Periph) Close() error {
	var first error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}
