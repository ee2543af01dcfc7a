package session

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

var (
	// ErrPortUnavailable is returned when the device is missing or already claimed.
	ErrPortUnavailable = errors.New("port unavailable")
	// ErrInvalidConfig is returned when the port parameters are not supported.
	ErrInvalidConfig = errors.New("invalid port config")
	// ErrSessionClosed is returned by operations on a session that is not open.
	ErrSessionClosed = errors.New("session closed")
	// ErrWriteTimeout is returned when the port does not accept bytes in time.
	ErrWriteTimeout = errors.New("write timeout")
	// ErrHardwareFault wraps the driver error that moved a session to Faulted.
	ErrHardwareFault = errors.New("hardware fault")
	// ErrCloseTimeout means a background goroutine did not exit after Close.
	// The goroutine is leaked and the caller should treat it as fatal.
	ErrCloseTimeout = errors.New("session goroutines did not exit")
)

// classifyOpenError maps a driver error from opening a port onto
// ErrPortUnavailable or ErrInvalidConfig.
func classifyOpenError(name string, err error) error {
	if errors.Is(err, ErrInvalidConfig) {
		return fmt.Errorf("%s: %w", name, err)
	}
	if code, ok := portErrorCode(err); ok {
		switch code {
		case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
			serial.InvalidStopBits, serial.InvalidTimeoutValue:
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
	}
	// Not found, busy, permission denied and plain OS errors all mean the
	// device cannot be claimed right now.
	return fmt.Errorf("%w: %s: %w", ErrPortUnavailable, name, err)
}

// portErrorCode extracts the code of a serial.PortError. The driver returns
// both pointer and value forms depending on the platform.
func portErrorCode(err error) (serial.PortErrorCode, bool) {
	var ptr *serial.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val serial.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}

// isClosedPortError reports whether err is what the driver returns from a
// Read or Write racing a Close.
func isClosedPortError(err error) bool {
	code, ok := portErrorCode(err)
	return ok && code == serial.PortClosed
}
