package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestListSortsNames(t *testing.T) {
	src := Source{Names: func() ([]string, error) {
		return []string{"/dev/ttyUSB1", "/dev/ttyACM0", "/dev/ttyS0"}, nil
	}}

	names, err := src.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyUSB1"}, names)
}

func TestListWrapsError(t *testing.T) {
	cause := errors.New("enumeration failed")
	src := Source{Names: func() ([]string, error) { return nil, cause }}

	_, err := src.List()
	require.ErrorIs(t, err, cause)
}

func TestDetailed(t *testing.T) {
	src := Source{Details: func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "COM4", IsUSB: true, VID: "2341", PID: "0043"},
			nil,
			{Name: "COM1"},
			{Name: "COM3", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R USB UART"},
		}, nil
	}}

	infos, err := src.Detailed()
	require.NoError(t, err)
	require.Len(t, infos, 3)

	var labels []string
	for _, i := range infos {
		labels = append(labels, i.Label())
	}
	assert.Equal(t, []string{"COM1", "COM3 (FT232R USB UART)", "COM4 (USB 2341:0043)"}, labels)
}
