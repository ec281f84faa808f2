package bus

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// OpKind identifies a recorded bus operation.
type OpKind string

const (
	OpSerialWrite    OpKind = "serial_write"
	OpAddressedWrite OpKind = "addressed_write"
	OpPWMStart       OpKind = "pwm_start"
	OpPWMStop        OpKind = "pwm_stop"
)

// Op is one operation seen by Sim.
type Op struct {
	Kind OpKind
	Reg  byte   // AddressedWrite only
	Data []byte // copy of the written bytes
	Freq physic.Frequency
	Duty gpio.Duty
	At   time.Time
}

// Sim is an in-memory Bus. It records every write, can be told to fail and
// notifies subscribers, which is how the preview server watches a board that
// isn't there. Sim is safe for concurrent use.
type Sim struct {
	mu      sync.Mutex
	ops     []Op
	fail    error
	levels  map[string]bool
	pwmOn   bool
	subs    []func(Op)
	discard bool
}

// NewSim returns an empty Sim. Touch inputs read high (released) until set.
func NewSim() *Sim {
	return &Sim{levels: map[string]bool{}}
}

// Discard stops op recording; subscribers are still notified. Long running
// demos use it so the history doesn't grow without bound.
func (s *Sim) Discard() {
	s.mu.Lock()
	s.discard = true
	s.ops = nil
	s.mu.Unlock()
}

// FailWith makes every following operation fail with err, wrapped in *Error.
// A nil err clears the failure. ErrSimulated is a convenient cause.
func (s *Sim) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// SetLevel sets what DigitalRead returns for pin.
func (s *Sim) SetLevel(pin string, high bool) {
	s.mu.Lock()
	s.levels[pin] = high
	s.mu.Unlock()
}

// Subscribe registers fn to be called after each successful operation.
// fn runs on the caller's goroutine and must not call back into s.
func (s *Sim) Subscribe(fn func(Op)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Ops returns a copy of the recorded operations.
func (s *Sim) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Reset forgets the recorded operations.
func (s *Sim) Reset() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()
}

// PWMActive reports whether the simulated buzzer is being driven.
func (s *Sim) PWMActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pwmOn
}

func (s *Sim) SerialWrite(p []byte) error {
	return s.record(Op{Kind: OpSerialWrite, Data: append([]byte(nil), p...)})
}

func (s *Sim) AddressedWrite(reg byte, p []byte) error {
	return s.record(Op{Kind: OpAddressedWrite, Reg: reg, Data: append([]byte(nil), p...)})
}

func (s *Sim) DigitalRead(pin string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return false, Wrap("digital_read", pin, s.fail)
	}
	high, ok := s.levels[pin]
	if !ok {
		return true, nil
	}
	return high, nil
}

func (s *Sim) PWMStart(f physic.Frequency, duty gpio.Duty) error {
	return s.record(Op{Kind: OpPWMStart, Freq: f, Duty: duty})
}

func (s *Sim) PWMStop() error {
	return s.record(Op{Kind: OpPWMStop})
}

func (s *Sim) record(op Op) error {
	s.mu.Lock()
	if s.fail != nil {
		err := s.fail
		s.mu.Unlock()
		return Wrap(string(op.Kind), "sim", err)
	}
	op.At = time.Now()
	switch op.Kind {
	case OpPWMStart:
		s.pwmOn = true
	case OpPWMStop:
		s.pwmOn = false
	}
	if !s.discard {
		s.ops = append(s.ops, op)
	}
	subs := append([](func(Op))(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(op)
	}
	return nil
}
