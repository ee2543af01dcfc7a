package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"serial-app/internal/ports"
	"serial-app/internal/session"
)

var (
	dataBitsOptions = []string{"5", "6", "7", "8"}
	parityOptions   = []string{"None", "Odd", "Even"}
	stopBitsOptions = []string{"1", "2"}
)

func baudOptions() []string {
	opts := make([]string, len(session.StandardBaudRates))
	for i, b := range session.StandardBaudRates {
		opts[i] = strconv.Itoa(b)
	}
	return opts
}

// buildConfig turns the selector values into a PortConfig.
func buildConfig(port, baud, dataBits, parity, stopBits string) (session.PortConfig, error) {
	if port == "" {
		return session.PortConfig{}, fmt.Errorf("no port selected")
	}
	cfg := session.PortConfig{PortName: port}

	var err error
	if cfg.BaudRate, err = strconv.Atoi(baud); err != nil {
		return session.PortConfig{}, fmt.Errorf("invalid baud rate: %s", baud)
	}
	if cfg.DataBits, err = strconv.Atoi(dataBits); err != nil {
		return session.PortConfig{}, fmt.Errorf("invalid data bits: %s", dataBits)
	}

	switch parity {
	case "None":
		cfg.Parity = session.NoParity
	case "Odd":
		cfg.Parity = session.OddParity
	case "Even":
		cfg.Parity = session.EvenParity
	default:
		return session.PortConfig{}, fmt.Errorf("invalid parity: %s", parity)
	}

	switch stopBits {
	case "1":
		cfg.StopBits = session.OneStopBit
	case "2":
		cfg.StopBits = session.TwoStopBits
	default:
		return session.PortConfig{}, fmt.Errorf("invalid stop bits: %s", stopBits)
	}
	return cfg, cfg.Validate()
}

// parseClock reads HH:MM:SS as a time on the same day as now.
func parseClock(text string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format (use HH:MM:SS): %s", text)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location()), nil
}

// portChoices builds the port picker entries. Ports with USB details are
// shown by their label; the map turns a picked label back into the name.
func portChoices(names []string, details []ports.Info) ([]string, map[string]string) {
	labelOf := make(map[string]string, len(details))
	for _, d := range details {
		labelOf[d.Name] = d.Label()
	}
	if len(names) == 0 {
		for _, d := range details {
			names = append(names, d.Name)
		}
	}

	labels := make([]string, 0, len(names))
	byLabel := make(map[string]string, len(names))
	for _, n := range names {
		label, ok := labelOf[n]
		if !ok {
			label = n
		}
		labels = append(labels, label)
		byLabel[label] = n
	}
	return labels, byLabel
}

// portName resolves a picker entry to a port name. Entries not in the map
// are taken as names.
func portName(byLabel map[string]string, label string) string {
	if n, ok := byLabel[label]; ok {
		return n
	}
	return label
}

// localPath strips the leading slash fyne puts in front of Windows drive paths.
func localPath(p string) string {
	if len(p) > 2 && p[0] == '/' && p[2] == ':' {
		return p[1:]
	}
	return p
}

// appendBounded appends items and keeps at most limit trailing elements.
func appendBounded[T any](s []T, limit int, items ...T) []T {
	s = append(s, items...)
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
