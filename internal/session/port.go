package session

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port a session uses. Tests substitute a fake.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// Opener opens a port by name.
type Opener func(name string, mode *serial.Mode) (Port, error)

// baseMode is a mode every driver and device accepts. The port is opened
// with it and then switched to the requested mode.
var baseMode = serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}

// OpenSerial is the default Opener backed by go.bug.st/serial.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	return openConfigured(serial.Open, name, mode)
}

// openConfigured opens the device and applies mode in a second step, so a
// mode the device rejects is reported as ErrInvalidConfig. serial.Open folds
// those failures into an InvalidSerialPort error.
func openConfigured(open func(string, *serial.Mode) (serial.Port, error), name string, mode *serial.Mode) (Port, error) {
	base := baseMode
	p, err := open(name, &base)
	if err != nil {
		return nil, err
	}
	if err := p.SetMode(mode); err != nil {
		p.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}
