package frame

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
)

const (
	crexMagic = "CREX++"
	crexEnd   = "++"
	// CRLF is the CREX line terminator.
	CRLF = "\r\r\n"
)

// Report is a CREX message split into its sections.
type Report struct {
	Raw    []byte
	Source string
	// Header carries the section 1 fields and descriptors.
	Header *message.Message
	// Data is the text between the end of section 1 and the 7777
	// terminator, and DataOffset its position in Raw.
	Data       []byte
	DataOffset int
}

// ParseCREX splits raw into sections.
func ParseCREX(raw []byte, source string) (*Report, error) {
	start := bytes.Index(raw, []byte(crexMagic))
	if start < 0 || len(bytes.TrimSpace(raw[:start])) != 0 {
		return nil, errs.Parsef(source, 0, "missing CREX marker")
	}
	pos := start + len(crexMagic)
	rel := bytes.Index(raw[pos:], []byte(crexEnd))
	if rel < 0 {
		return nil, errs.Parsef(source, pos, "section 1 is not terminated by ++")
	}
	m := &message.Message{Format: message.CREX}
	if err := parseDescription(m, string(raw[pos:pos+rel]), source, pos); err != nil {
		return nil, err
	}
	dataStart := pos + rel + len(crexEnd)
	tail := bytes.TrimRight(raw, " \t\r\n")
	if !bytes.HasSuffix(tail, []byte(endMarker)) || len(tail)-len(endMarker) < dataStart {
		return nil, errs.Parsef(source, len(tail), "missing 7777 end marker")
	}
	return &Report{
		Raw:        raw,
		Source:     source,
		Header:     m,
		Data:       raw[dataStart : len(tail)-len(endMarker)],
		DataOffset: dataStart,
	}, nil
}

func parseDescription(m *message.Message, s, source string, off int) error {
	seenTable := false
	for _, tok := range strings.Fields(s) {
		switch tok[0] {
		case 'T':
			if len(tok) != 7 {
				return errs.Parsef(source, off, "table token %q is not T + 6 digits", tok)
			}
			v, err := strconv.Atoi(tok[1:])
			if err != nil {
				return errs.Parsef(source, off, "table token %q: %v", tok, err)
			}
			m.MasterTable = v / 10000
			m.Edition = v / 100 % 100
			m.MasterTableVersion = v % 100
			seenTable = true
		case 'A':
			v, err := strconv.Atoi(tok[1:])
			if err != nil || len(tok) != 4 {
				return errs.Parsef(source, off, "category token %q is not A + 3 digits", tok)
			}
			m.Category = v
		case 'E':
			if tok != "E" {
				return errs.Parsef(source, off, "unexpected token %q", tok)
			}
			m.CheckDigit = true
		default:
			d, err := descriptor.Parse(tok)
			if err != nil || len(tok) != 6 {
				return errs.Parsef(source, off, "bad descriptor token %q", tok)
			}
			m.Descriptors = append(m.Descriptors, d)
		}
	}
	if !seenTable {
		return errs.Parsef(source, off, "section 1 has no table token")
	}
	return nil
}

// WriteCREX assembles a CREX message from the header fields of m and the
// data section text, which must end with the ++ terminator.
func WriteCREX(m *message.Message, data []byte) ([]byte, error) {
	if m.MasterTable > 99 || m.Edition > 99 || m.MasterTableVersion > 99 {
		return nil, errs.Consistencyf("table %d edition %d version %d do not fit in the T token",
			m.MasterTable, m.Edition, m.MasterTableVersion)
	}
	if m.Category > 999 {
		return nil, errs.Consistencyf("category %d does not fit in the A token", m.Category)
	}
	var out bytes.Buffer
	out.WriteString(crexMagic + CRLF)
	fmt.Fprintf(&out, "T%02d%02d%02d A%03d", m.MasterTable, m.Edition, m.MasterTableVersion, m.Category)
	for _, d := range m.Descriptors {
		out.WriteByte(' ')
		out.WriteString(d.String())
	}
	if m.CheckDigit {
		out.WriteString(" E")
	}
	out.WriteString(crexEnd + CRLF)
	out.Write(data)
	out.WriteString(CRLF + endMarker + CRLF)
	return out.Bytes(), nil
}
