// Package descriptor implements the 16-bit F-X-Y descriptor codes used by
// BUFR and CREX.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a packed descriptor: 2 bits F, 6 bits X, 8 bits Y.
type Code uint16

// Descriptor classes (the F part).
const (
	Element     = 0
	Replication = 1
	Operator    = 2
	Sequence    = 3
)

// New packs f, x and y. Out of range parts are truncated to their width.
func New(f, x, y int) Code {
	return Code((f&0x3)<<14 | (x&0x3F)<<8 | y&0xFF)
}

// F returns the descriptor class.
func (c Code) F() int { return int(c >> 14) }

// X returns the class/group part.
func (c Code) X() int { return int(c>>8) & 0x3F }

// Y returns the entry part.
func (c Code) Y() int { return int(c) & 0xFF }

var prefixes = [4]byte{'B', 'R', 'C', 'D'}

// String renders the code in the letter form used by tables, e.g. B12101.
func (c Code) String() string {
	return fmt.Sprintf("%c%02d%03d", prefixes[c.F()], c.X(), c.Y())
}

// FXY renders the code in the dashed form, e.g. 0-12-101.
func (c Code) FXY() string {
	return fmt.Sprintf("%d-%02d-%03d", c.F(), c.X(), c.Y())
}

// Parse accepts "B12101", "012101" and "0-12-101" forms.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty descriptor")
	}
	if parts := strings.Split(s, "-"); len(parts) == 3 {
		return fromParts(s, parts[0], parts[1], parts[2])
	}
	if len(s) != 6 {
		return 0, fmt.Errorf("invalid descriptor %q", s)
	}
	f := s[:1]
	switch s[0] {
	case 'B', 'b':
		f = "0"
	case 'R', 'r':
		f = "1"
	case 'C', 'c':
		f = "2"
	case 'D', 'd':
		f = "3"
	}
	return fromParts(s, f, s[1:3], s[3:])
}

func fromParts(orig, fs, xs, ys string) (Code, error) {
	f, err1 := strconv.Atoi(fs)
	x, err2 := strconv.Atoi(xs)
	y, err3 := strconv.Atoi(ys)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("invalid descriptor %q", orig)
	}
	if f < 0 || f > 3 || x < 0 || x > 63 || y < 0 || y > 255 {
		return 0, fmt.Errorf("descriptor %q out of range", orig)
	}
	return New(f, x, y), nil
}

// MustParse is Parse for static tables; it panics on malformed input.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsLocal reports whether the code falls in the centre-reserved ranges
// (X 48-63 or Y 192-255).
func (c Code) IsLocal() bool {
	return c.X() >= 48 || c.Y() >= 192
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Join renders a list of codes separated by spaces.
func Join(codes []Code) string {
	var b strings.Builder
	for i, c := range codes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.String())
	}
	return b.String()
}
