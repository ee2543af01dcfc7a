// Package ports lists the serial ports present on the machine.
package ports

import (
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Info describes a detected port.
type Info struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Label returns a short description for a port picker.
func (i Info) Label() string {
	switch {
	case i.IsUSB && i.Product != "":
		return fmt.Sprintf("%s (%s)", i.Name, i.Product)
	case i.IsUSB:
		return fmt.Sprintf("%s (USB %s:%s)", i.Name, i.VID, i.PID)
	}
	return i.Name
}

// Source abstracts the driver's enumeration calls.
type Source struct {
	Names   func() ([]string, error)
	Details func() ([]*enumerator.PortDetails, error)
}

// System enumerates through go.bug.st/serial.
var System = Source{
	Names:   serial.GetPortsList,
	Details: enumerator.GetDetailedPortsList,
}

// List returns the sorted names of the available ports.
func (s Source) List() ([]string, error) {
	names, err := s.Names()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	names = slices.Clone(names)
	slices.Sort(names)
	return names, nil
}

// Detailed returns the available ports with USB details where known,
// sorted by name.
func (s Source) Detailed() ([]Info, error) {
	details, err := s.Details()
	if err != nil {
		return nil, fmt.Errorf("failed to list port details: %w", err)
	}
	infos := make([]Info, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		infos = append(infos, Info{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return infos, nil
}

// Available returns the port names or an empty list if enumeration fails.
func Available() []string {
	names, err := System.List()
	if err != nil || len(names) == 0 {
		return []string{}
	}
	return names
}
