package session

import (
	"fmt"
	"slices"
	"time"

	"go.bug.st/serial"
)

// Parity selects the parity bit mode of a port.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "None"
	case OddParity:
		return "Odd"
	case EvenParity:
		return "Even"
	}
	return fmt.Sprintf("Parity(%d)", int(p))
}

// StopBits selects the number of stop bits.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

func (s StopBits) String() string {
	switch s {
	case OneStopBit:
		return "1"
	case TwoStopBits:
		return "2"
	}
	return fmt.Sprintf("StopBits(%d)", int(s))
}

// StandardBaudRates lists the baud rates a PortConfig may use.
var StandardBaudRates = []int{
	300, 1200, 2400, 4800, 9600, 19200,
	38400, 57600, 74880, 115200, 230400,
	250000, 500000, 1000000, 2000000,
}

// PortConfig holds the parameters a port is opened with. A session keeps its
// own copy; changing a parameter means closing the session and opening a new one.
type PortConfig struct {
	PortName string
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// DefaultPortConfig returns 9600 8N1 for the named port.
func DefaultPortConfig(name string) PortConfig {
	return PortConfig{
		PortName: name,
		BaudRate: 9600,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}

func (c PortConfig) String() string {
	return fmt.Sprintf("%s %d %d%s%s", c.PortName, c.BaudRate, c.DataBits, c.Parity.String()[:1], c.StopBits)
}

// Validate reports whether the config can be handed to the driver.
func (c PortConfig) Validate() error {
	if c.PortName == "" {
		return fmt.Errorf("%w: empty port name", ErrInvalidConfig)
	}
	if !slices.Contains(StandardBaudRates, c.BaudRate) {
		return fmt.Errorf("%w: unsupported baud rate %d", ErrInvalidConfig, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: unsupported data bits %d", ErrInvalidConfig, c.DataBits)
	}
	switch c.Parity {
	case NoParity, OddParity, EvenParity:
	default:
		return fmt.Errorf("%w: unsupported parity %v", ErrInvalidConfig, c.Parity)
	}
	switch c.StopBits {
	case OneStopBit, TwoStopBits:
	default:
		return fmt.Errorf("%w: unsupported stop bits %v", ErrInvalidConfig, c.StopBits)
	}
	return nil
}

func (c PortConfig) mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch c.Parity {
	case OddParity:
		mode.Parity = serial.OddParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	}
	if c.StopBits == TwoStopBits {
		mode.StopBits = serial.TwoStopBits
	}
	return mode
}

// Options tune the timing and buffering of a session.
type Options struct {
	// ReadTimeout bounds each read so the reader can notice a stop request.
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CloseTimeout   time.Duration
	InboxCapacity  int
	ReadBufferSize int
}

// DefaultOptions returns the timings the monitor ships with.
func DefaultOptions() Options {
	return Options{
		ReadTimeout:    100 * time.Millisecond,
		WriteTimeout:   time.Second,
		CloseTimeout:   2 * time.Second,
		InboxCapacity:  1024,
		ReadBufferSize: 1024,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = d.CloseTimeout
	}
	if o.InboxCapacity <= 0 {
		o.InboxCapacity = d.InboxCapacity
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	return o
}
