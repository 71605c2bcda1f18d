// Package table holds parsed B (element) and D (sequence) tables and the
// process-wide cache that loads each table identity once.
package table

import (
	"fmt"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/opcode"
)

// ID identifies a table set.
type ID struct {
	MasterTable   int
	Centre        int
	MasterVersion int
	LocalVersion  int
}

// Normalize drops the centre when no local table is in use, so every
// message relying only on WMO tables shares one cache entry.
func (id ID) Normalize() ID {
	if id.LocalVersion == 0 || id.LocalVersion == 255 {
		id.Centre = 0
		id.LocalVersion = 0
	}
	return id
}

func (id ID) String() string {
	return fmt.Sprintf("master=%d centre=%d version=%d local=%d",
		id.MasterTable, id.Centre, id.MasterVersion, id.LocalVersion)
}

// ElementTable maps element descriptors to their Varinfo.
type ElementTable struct {
	entries map[descriptor.Code]*Varinfo
}

// NewElementTable builds a table; duplicate codes are rejected.
func NewElementTable(infos ...*Varinfo) (*ElementTable, error) {
	t := &ElementTable{entries: make(map[descriptor.Code]*Varinfo, len(infos))}
	for _, vi := range infos {
		if vi.Code.F() != descriptor.Element {
			return nil, fmt.Errorf("%s is not an element descriptor", vi.Code)
		}
		if _, dup := t.entries[vi.Code]; dup {
			return nil, fmt.Errorf("duplicate element %s", vi.Code)
		}
		t.entries[vi.Code] = vi
	}
	return t, nil
}

// Lookup returns the Varinfo for code.
func (t *ElementTable) Lookup(code descriptor.Code) (*Varinfo, error) {
	if vi, ok := t.entries[code]; ok {
		return vi, nil
	}
	return nil, errs.NotFoundf("element %s not in table B", code)
}

// Len returns the number of entries.
func (t *ElementTable) Len() int { return len(t.entries) }

// SequenceTable maps sequence descriptors to their one-level expansion.
type SequenceTable struct {
	entries map[descriptor.Code][]descriptor.Code
}

// NewSequenceTable builds a table from a map of expansions. The map and
// its slices are copied.
func NewSequenceTable(seqs map[descriptor.Code][]descriptor.Code) (*SequenceTable, error) {
	t := &SequenceTable{entries: make(map[descriptor.Code][]descriptor.Code, len(seqs))}
	for code, exp := range seqs {
		if code.F() != descriptor.Sequence {
			return nil, fmt.Errorf("%s is not a sequence descriptor", code)
		}
		if len(exp) == 0 {
			return nil, fmt.Errorf("sequence %s is empty", code)
		}
		t.entries[code] = append([]descriptor.Code(nil), exp...)
	}
	return t, nil
}

// Lookup returns a copy of the expansion of code, owned by the caller.
func (t *SequenceTable) Lookup(code descriptor.Code) (*opcode.Program, error) {
	exp, ok := t.entries[code]
	if !ok {
		return nil, errs.NotFoundf("sequence %s not in table D", code)
	}
	return opcode.New(exp...), nil
}

// Len returns the number of entries.
func (t *SequenceTable) Len() int { return len(t.entries) }

// Tables is one loaded table set. It is immutable once returned by a
// Provider and may be shared between goroutines.
type Tables struct {
	ID     ID
	B      *ElementTable
	D      *SequenceTable
	Source string
	// Digest is the BLAKE3 hash of the file the tables were read from.
	Digest string
}
