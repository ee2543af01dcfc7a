package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// driverPort is a serial.Port whose SetMode can be made to fail. Methods the
// tests do not reach are left to the nil embedded interface.
type driverPort struct {
	serial.Port
	setModeErr error
	mode       *serial.Mode
	closed     bool
}

func (p *driverPort) SetMode(mode *serial.Mode) error {
	p.mode = mode
	return p.setModeErr
}

func (p *driverPort) Close() error {
	p.closed = true
	return nil
}

func TestOpenConfiguredAppliesModeAfterOpen(t *testing.T) {
	dp := &driverPort{}
	var opened serial.Mode
	open := func(name string, mode *serial.Mode) (serial.Port, error) {
		opened = *mode
		return dp, nil
	}
	want := DefaultPortConfig("/dev/ttyUSB0")
	want.BaudRate = 115200
	want.DataBits = 7

	p, err := openConfigured(open, want.PortName, want.mode())
	require.NoError(t, err)
	assert.Same(t, dp, p)
	assert.Equal(t, baseMode, opened)
	require.NotNil(t, dp.mode)
	assert.Equal(t, 115200, dp.mode.BaudRate)
	assert.Equal(t, 7, dp.mode.DataBits)
	assert.False(t, dp.closed)
}

func TestOpenConfiguredRejectedModeIsInvalidConfig(t *testing.T) {
	dp := &driverPort{setModeErr: errors.New("Port data bits invalid or not supported")}
	open := func(string, *serial.Mode) (serial.Port, error) { return dp, nil }

	_, err := openConfigured(open, "/dev/pts/0", DefaultPortConfig("/dev/pts/0").mode())
	require.Error(t, err)
	assert.True(t, dp.closed, "rejected port must be closed")

	err = classifyOpenError("/dev/pts/0", err)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.NotErrorIs(t, err, ErrPortUnavailable)
	assert.Contains(t, err.Error(), "/dev/pts/0")
}

func TestOpenConfiguredOpenFailureIsUnavailable(t *testing.T) {
	cause := errors.New("no such file or directory")
	open := func(string, *serial.Mode) (serial.Port, error) { return nil, cause }

	_, err := openConfigured(open, "/dev/ttyACM9", DefaultPortConfig("/dev/ttyACM9").mode())
	require.ErrorIs(t, err, cause)

	err = classifyOpenError("/dev/ttyACM9", err)
	require.ErrorIs(t, err, ErrPortUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenRejectedModeReleasesClaim(t *testing.T) {
	opener := func(name string, mode *serial.Mode) (Port, error) {
		dp := &driverPort{setModeErr: errors.New("unsupported baud rate")}
		return openConfigured(func(string, *serial.Mode) (serial.Port, error) { return dp, nil }, name, mode)
	}
	m := NewManager(WithOptions(testOptions()), WithOpener(opener))

	_, err := m.Open(DefaultPortConfig("COM3"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, m.Held("COM3"))
}
