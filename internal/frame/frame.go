// Package frame splits BUFR and CREX messages into their sections and
// assembles sections back into messages. Value data is left to the drivers.
package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
)

const (
	bufrMagic  = "BUFR"
	endMarker  = "7777"
	headerSize = 8
)

// Bulletin is a BUFR message split into its sections.
type Bulletin struct {
	Raw    []byte
	Source string
	// Header carries the section 1 fields, section 2 data and the section 3
	// descriptors and flags. Subsets is left empty.
	Header *message.Message
	// Subsets is the subset count declared in section 3.
	Subsets int
	// Data is the section 4 payload and DataOffset its position in Raw.
	Data       []byte
	DataOffset int
}

// ParseBUFR splits raw into sections. raw must start with the BUFR marker;
// bytes after the declared length are ignored.
func ParseBUFR(raw []byte, source string) (*Bulletin, error) {
	if len(raw) < headerSize || string(raw[:4]) != bufrMagic {
		return nil, errs.Parsef(source, 0, "missing BUFR marker")
	}
	total := be24(raw[4:7])
	edition := int(raw[7])
	if edition < 2 || edition > 4 {
		return nil, errs.Unimplementedf("BUFR edition %d", edition)
	}
	if total < headerSize+len(endMarker) || total > len(raw) {
		return nil, errs.Parsef(source, 4, "declared length %d, have %d bytes", total, len(raw))
	}
	raw = raw[:total]
	if string(raw[total-4:]) != endMarker {
		return nil, errs.Parsef(source, total-4, "missing 7777 end marker")
	}

	b := &Bulletin{
		Raw:    raw,
		Source: source,
		Header: &message.Message{Format: message.BUFR, Edition: edition},
	}
	cur := sectionCursor{raw: raw, source: source, pos: headerSize, end: total - 4}

	s1, err := cur.next(1)
	if err != nil {
		return nil, err
	}
	hasLocal, err := parseIdentification(b.Header, s1, source, cur.pos-len(s1))
	if err != nil {
		return nil, err
	}
	if hasLocal {
		s2, err := cur.next(2)
		if err != nil {
			return nil, err
		}
		b.Header.LocalData = append([]byte(nil), s2[4:]...)
	}
	s3, err := cur.next(3)
	if err != nil {
		return nil, err
	}
	if len(s3) < 7 {
		return nil, errs.Parsef(source, cur.pos-len(s3), "section 3 too short: %d bytes", len(s3))
	}
	b.Subsets = int(binary.BigEndian.Uint16(s3[4:6]))
	b.Header.Observed = s3[6]&0x80 != 0
	b.Header.Compressed = s3[6]&0x40 != 0
	descs := s3[7:]
	for i := 0; i+1 < len(descs); i += 2 {
		b.Header.Descriptors = append(b.Header.Descriptors, descriptor.Code(binary.BigEndian.Uint16(descs[i:])))
	}
	s4, err := cur.next(4)
	if err != nil {
		return nil, err
	}
	b.Data = s4[4:]
	b.DataOffset = cur.pos - len(s4) + 4
	if cur.pos != cur.end {
		return nil, errs.Parsef(source, cur.pos, "%d unexpected bytes before the end marker", cur.end-cur.pos)
	}
	return b, nil
}

type sectionCursor struct {
	raw    []byte
	source string
	pos    int
	end    int
}

func (c *sectionCursor) next(num int) ([]byte, error) {
	if c.pos+4 > c.end {
		return nil, errs.Parsef(c.source, c.pos, "section %d truncated", num)
	}
	length := be24(c.raw[c.pos:])
	if length < 4 || c.pos+length > c.end {
		return nil, errs.Parsef(c.source, c.pos, "section %d declares %d bytes, %d available", num, length, c.end-c.pos)
	}
	s := c.raw[c.pos : c.pos+length]
	c.pos += length
	return s, nil
}

func parseIdentification(m *message.Message, s []byte, source string, off int) (hasLocal bool, err error) {
	if m.Edition == 4 {
		if len(s) < 22 {
			return false, errs.Parsef(source, off, "section 1 too short: %d bytes", len(s))
		}
		m.MasterTable = int(s[3])
		m.Centre = int(binary.BigEndian.Uint16(s[4:6]))
		m.Subcentre = int(binary.BigEndian.Uint16(s[6:8]))
		m.UpdateSequence = int(s[8])
		hasLocal = s[9]&0x80 != 0
		m.Category = int(s[10])
		m.Subcategory = int(s[11])
		m.LocalSubcategory = int(s[12])
		m.MasterTableVersion = int(s[13])
		m.LocalTableVersion = int(s[14])
		m.Year = int(binary.BigEndian.Uint16(s[15:17]))
		m.Month, m.Day = int(s[17]), int(s[18])
		m.Hour, m.Minute, m.Second = int(s[19]), int(s[20]), int(s[21])
		return hasLocal, nil
	}
	if len(s) < 17 {
		return false, errs.Parsef(source, off, "section 1 too short: %d bytes", len(s))
	}
	m.MasterTable = int(s[3])
	m.Subcentre = int(s[4])
	m.Centre = int(s[5])
	m.UpdateSequence = int(s[6])
	hasLocal = s[7]&0x80 != 0
	m.Category = int(s[8])
	m.Subcategory = int(s[9])
	m.MasterTableVersion = int(s[10])
	m.LocalTableVersion = int(s[11])
	m.Year = centuryYear(int(s[12]))
	m.Month, m.Day = int(s[13]), int(s[14])
	m.Hour, m.Minute = int(s[15]), int(s[16])
	return hasLocal, nil
}

// centuryYear expands an edition 3 year of century.
func centuryYear(y int) int {
	switch {
	case y <= 50:
		return 2000 + y
	case y == 100:
		return 2000
	default:
		return 1900 + y
	}
}

// WriteBUFR assembles a BUFR message from the header fields of m, the
// subset count and the packed section 4 payload.
func WriteBUFR(m *message.Message, subsets int, data []byte) ([]byte, error) {
	edition := m.Edition
	if edition == 0 {
		edition = 4
	}
	if edition < 2 || edition > 4 {
		return nil, errs.Unimplementedf("BUFR edition %d", edition)
	}
	if subsets > 0xFFFF {
		return nil, errs.Consistencyf("%d subsets do not fit in section 3", subsets)
	}
	even := edition < 4

	var out bytes.Buffer
	out.WriteString(bufrMagic)
	out.Write([]byte{0, 0, 0, byte(edition)})

	s1, err := identification(m, edition)
	if err != nil {
		return nil, err
	}
	writeSection(&out, s1, even)
	if len(m.LocalData) > 0 {
		writeSection(&out, append([]byte{0, 0, 0, 0}, m.LocalData...), even)
	}

	s3 := make([]byte, 7, 7+2*len(m.Descriptors))
	binary.BigEndian.PutUint16(s3[4:6], uint16(subsets))
	if m.Observed {
		s3[6] |= 0x80
	}
	if m.Compressed {
		s3[6] |= 0x40
	}
	for _, d := range m.Descriptors {
		s3 = binary.BigEndian.AppendUint16(s3, uint16(d))
	}
	writeSection(&out, s3, even)
	writeSection(&out, append([]byte{0, 0, 0, 0}, data...), even)
	out.WriteString(endMarker)

	raw := out.Bytes()
	if len(raw) > 0xFFFFFF {
		return nil, errs.Consistencyf("message of %d bytes exceeds the BUFR length field", len(raw))
	}
	putBE24(raw[4:], len(raw))
	return raw, nil
}

func identification(m *message.Message, edition int) ([]byte, error) {
	if edition == 4 {
		fields := []struct {
			name     string
			val, max int
		}{
			{"master table", m.MasterTable, 0xFF},
			{"centre", m.Centre, 0xFFFF},
			{"subcentre", m.Subcentre, 0xFFFF},
			{"year", m.Year, 0xFFFF},
		}
		for _, f := range fields {
			if err := checkField(f.name, f.val, f.max); err != nil {
				return nil, err
			}
		}
		s := make([]byte, 22)
		s[3] = byte(m.MasterTable)
		binary.BigEndian.PutUint16(s[4:], uint16(m.Centre))
		binary.BigEndian.PutUint16(s[6:], uint16(m.Subcentre))
		s[8] = byte(m.UpdateSequence)
		if len(m.LocalData) > 0 {
			s[9] = 0x80
		}
		s[10], s[11], s[12] = byte(m.Category), byte(m.Subcategory), byte(m.LocalSubcategory)
		s[13], s[14] = byte(m.MasterTableVersion), byte(m.LocalTableVersion)
		binary.BigEndian.PutUint16(s[15:], uint16(m.Year))
		s[17], s[18] = byte(m.Month), byte(m.Day)
		s[19], s[20], s[21] = byte(m.Hour), byte(m.Minute), byte(m.Second)
		return s, nil
	}
	if err := checkField("centre", m.Centre, 0xFF); err != nil {
		return nil, err
	}
	if err := checkField("subcentre", m.Subcentre, 0xFF); err != nil {
		return nil, err
	}
	s := make([]byte, 18)
	s[3] = byte(m.MasterTable)
	s[4], s[5] = byte(m.Subcentre), byte(m.Centre)
	s[6] = byte(m.UpdateSequence)
	if len(m.LocalData) > 0 {
		s[7] = 0x80
	}
	s[8], s[9] = byte(m.Category), byte(m.Subcategory)
	s[10], s[11] = byte(m.MasterTableVersion), byte(m.LocalTableVersion)
	s[12] = byte(m.Year % 100)
	s[13], s[14] = byte(m.Month), byte(m.Day)
	s[15], s[16] = byte(m.Hour), byte(m.Minute)
	return s, nil
}

func checkField(name string, v, max int) error {
	if v < 0 || v > max {
		return errs.Consistencyf("%s %d does not fit in section 1 (max %d)", name, v, max)
	}
	return nil
}

// writeSection fills in the length of s, padding it to an even size when
// required, and appends it to out.
func writeSection(out *bytes.Buffer, s []byte, even bool) {
	if even && len(s)%2 != 0 {
		s = append(s, 0)
	}
	putBE24(s, len(s))
	out.Write(s)
}

func be24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

func putBE24(b []byte, v int) {
	b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
}
