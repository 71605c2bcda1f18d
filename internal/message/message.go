package message

import (
	"fmt"
	"time"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/table"
)

// Format identifies the wire format of a message.
type Format int

const (
	BUFR Format = iota
	CREX
)

func (f Format) String() string {
	switch f {
	case BUFR:
		return "BUFR"
	case CREX:
		return "CREX"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Subset is one observation report: an ordered list of variables.
type Subset struct {
	Vars []*Variable
}

// Append adds v at the end.
func (s *Subset) Append(v *Variable) { s.Vars = append(s.Vars, v) }

// Len returns the number of variables.
func (s *Subset) Len() int { return len(s.Vars) }

// Find returns the first variable with the given code, or nil.
func (s *Subset) Find(code descriptor.Code) *Variable {
	for _, v := range s.Vars {
		if v.Code() == code {
			return v
		}
	}
	return nil
}

// Codes returns the variable codes in order.
func (s *Subset) Codes() []descriptor.Code {
	out := make([]descriptor.Code, len(s.Vars))
	for i, v := range s.Vars {
		out[i] = v.Code()
	}
	return out
}

// Equal compares two subsets variable by variable.
func (s *Subset) Equal(o *Subset) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.Vars) != len(o.Vars) {
		return false
	}
	for i := range s.Vars {
		if !s.Vars[i].Equal(o.Vars[i]) {
			return false
		}
	}
	return true
}

// Message is a BUFR or CREX bulletin: header, unexpanded data descriptors
// and subsets.
type Message struct {
	Format  Format
	Edition int

	MasterTable        int
	Centre             int
	Subcentre          int
	UpdateSequence     int
	Category           int
	Subcategory        int
	LocalSubcategory   int
	MasterTableVersion int
	LocalTableVersion  int

	Year, Month, Day     int
	Hour, Minute, Second int

	Observed   bool
	Compressed bool
	// CheckDigit enables CREX check digits.
	CheckDigit bool
	// LocalData is the opaque content of BUFR section 2.
	LocalData []byte

	Descriptors []descriptor.Code
	Subsets     []*Subset
}

// TableID returns the table identity the message refers to.
func (m *Message) TableID() table.ID {
	return table.ID{
		MasterTable:   m.MasterTable,
		Centre:        m.Centre,
		MasterVersion: m.MasterTableVersion,
		LocalVersion:  m.LocalTableVersion,
	}
}

// NewSubset appends an empty subset and returns it.
func (m *Message) NewSubset() *Subset {
	s := &Subset{}
	m.Subsets = append(m.Subsets, s)
	return s
}

// Time returns the reference time in UTC.
func (m *Message) Time() time.Time {
	return time.Date(m.Year, time.Month(m.Month), m.Day, m.Hour, m.Minute, m.Second, 0, time.UTC)
}

// SetTime sets the reference time fields from t.
func (m *Message) SetTime(t time.Time) {
	t = t.UTC()
	m.Year, m.Month, m.Day = t.Year(), int(t.Month()), t.Day()
	m.Hour, m.Minute, m.Second = t.Hour(), t.Minute(), t.Second()
}
