// Package format renders captured frames for display and turns command text
// typed by the user into outbound requests.
package format

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"serial-app/internal/session"
)

// Flags selects which representations of a frame are shown.
type Flags uint8

const (
	UTF Flags = 1 << iota
	Hex
	Binary
)

// Has reports whether every flag in f2 is set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// With returns f with flag set or cleared.
func (f Flags) With(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

func (f Flags) String() string {
	var parts []string
	if f.Has(Hex) {
		parts = append(parts, "HEX")
	}
	if f.Has(Binary) {
		parts = append(parts, "BIN")
	}
	if f.Has(UTF) {
		parts = append(parts, "UTF-8")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Formatter renders frames. The zero value is not usable; use NewFormatter.
type Formatter struct {
	p *message.Printer
}

// NewFormatter returns a Formatter printing numbers for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{p: message.NewPrinter(tag)}
}

// Render returns one line per selected representation, hex first, then
// binary, then UTF-8.
func (f *Formatter) Render(frame session.Frame, flags Flags) []string {
	data := frame.Bytes()
	var lines []string
	if flags.Has(Hex) {
		lines = append(lines, f.received(len(data), HexString(data)))
	}
	if flags.Has(Binary) {
		lines = append(lines, f.received(len(data), BinaryString(data)))
	}
	if flags.Has(UTF) {
		lines = append(lines, f.received(len(data), UTFString(data)))
	}
	return lines
}

func (f *Formatter) received(n int, repr string) string {
	return f.p.Sprintf("Received %d bytes: %s", n, repr)
}

// Sent formats the log line for a successful write.
func (f *Formatter) Sent(n int, command string) string {
	return f.p.Sprintf("Sent %d bytes: %s", n, command)
}

// HexString renders data as upper-case hex pairs separated by spaces.
func HexString(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}

// BinaryString renders data as 8-bit groups separated by spaces.
func BinaryString(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%08b", c)
	}
	return b.String()
}

// UTFString decodes data as UTF-8, replacing invalid sequences with U+FFFD.
func UTFString(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

var (
	ErrEmptyCommand = errors.New("empty command")
	ErrOddHexLength = errors.New("hex string has odd length")
	ErrInvalidHex   = errors.New("invalid hex string")
)

// ParseOutbound converts command text into the bytes to send. Hex input may
// contain whitespace between digits.
func ParseOutbound(text string, enc session.Encoding) (session.OutboundRequest, error) {
	if text == "" {
		return session.OutboundRequest{}, ErrEmptyCommand
	}
	if enc != session.EncodingHex {
		return session.OutboundRequest{Data: []byte(text), Encoding: session.EncodingUTF}, nil
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if digits == "" {
		return session.OutboundRequest{}, ErrEmptyCommand
	}
	if len(digits)%2 != 0 {
		return session.OutboundRequest{}, ErrOddHexLength
	}
	data, err := hex.DecodeString(digits)
	if err != nil {
		return session.OutboundRequest{}, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return session.OutboundRequest{Data: data, Encoding: session.EncodingHex}, nil
}
