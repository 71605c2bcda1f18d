package archive

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
)

var (
	bufrMagic  = []byte("BUFR")
	crexMagic  = []byte("CREX++")
	endMarker  = []byte("7777")
	sectionEnd = []byte("++")
)

// Scanner walks the messages of an in-memory stream. Bytes that do not
// belong to a message are skipped.
//
//	sc := archive.NewScanner(data, "obs.bufr", opts)
//	for sc.Scan() {
//		raw := sc.Raw()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	data   []byte
	source string
	opts   Options
	log    logrus.FieldLogger

	pos int
	cur Raw
	err error
}

// NewScanner returns a scanner over data. source names it in errors.
func NewScanner(data []byte, source string, opts Options) *Scanner {
	return &Scanner{data: data, source: source, opts: opts, log: opts.logger()}
}

// Scan advances to the next message. It returns false at the end of the
// stream or on error.
func (s *Scanner) Scan() bool {
	for s.err == nil {
		start, format, ok := s.next()
		if !ok {
			if rest := len(bytes.TrimSpace(s.data[s.pos:])); rest > 0 {
				s.log.WithField("source", s.source).Debugf("ignoring %d trailing bytes", rest)
			}
			s.pos = len(s.data)
			return false
		}
		if skipped := bytes.TrimSpace(s.data[s.pos:start]); len(skipped) > 0 {
			s.log.WithField("source", s.source).Debugf("skipped %d bytes before offset %d", len(skipped), start)
		}
		var end int
		var err error
		if format == message.BUFR {
			end, err = s.bufrEnd(start)
		} else {
			end, err = s.crexEnd(start)
		}
		if err != nil {
			if s.opts.Handle(Raw{Format: format, Source: s.source, Offset: start}, err) != nil {
				s.err = err
				return false
			}
			// Resynchronize after the broken marker.
			s.pos = start + len(bufrMagic)
			continue
		}
		s.cur = Raw{Format: format, Source: s.source, Offset: start, Data: s.data[start:end]}
		s.pos = end
		return true
	}
	return false
}

// Raw returns the current message. Data aliases the scanner's input.
func (s *Scanner) Raw() Raw { return s.cur }

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) next() (int, message.Format, bool) {
	rest := s.data[s.pos:]
	b := bytes.Index(rest, bufrMagic)
	c := bytes.Index(rest, crexMagic)
	switch {
	case b < 0 && c < 0:
		return 0, 0, false
	case c < 0 || (b >= 0 && b < c):
		return s.pos + b, message.BUFR, true
	default:
		return s.pos + c, message.CREX, true
	}
}

func (s *Scanner) bufrEnd(start int) (int, error) {
	if start+8 > len(s.data) {
		return 0, errs.Parsef(s.source, start, "truncated BUFR indicator section")
	}
	hdr := s.data[start:]
	total := int(hdr[4])<<16 | int(hdr[5])<<8 | int(hdr[6])
	if total < 8+4 || start+total > len(s.data) {
		return 0, errs.Parsef(s.source, start, "BUFR length %d runs past the end of the stream", total)
	}
	end := start + total
	if !bytes.Equal(s.data[end-4:end], endMarker) {
		return 0, errs.Parsef(s.source, end-4, "BUFR message does not end with 7777")
	}
	return end, nil
}

// crexEnd finds the 7777 that follows a section terminator. Section 1
// ends with the first ++ and data values may contain 7777, so only a ++
// after it followed by blanks and 7777 ends the message.
func (s *Scanner) crexEnd(start int) (int, error) {
	pos := start + len(crexMagic)
	i := bytes.Index(s.data[pos:], sectionEnd)
	if i < 0 {
		return 0, errs.Parsef(s.source, start, "CREX message has no section 1 terminator")
	}
	pos += i + len(sectionEnd)
	for {
		i := bytes.Index(s.data[pos:], sectionEnd)
		if i < 0 {
			return 0, errs.Parsef(s.source, start, "CREX message has no 7777 terminator")
		}
		pos += i + len(sectionEnd)
		end := pos
		for end < len(s.data) && isBlank(s.data[end]) {
			end++
		}
		if bytes.HasPrefix(s.data[end:], endMarker) {
			end += len(endMarker)
			for end < len(s.data) && (s.data[end] == '\r' || s.data[end] == '\n') {
				end++
			}
			return end, nil
		}
	}
}

func isBlank(b byte) bool { return b == ' ' || b == '\r' || b == '\n' || b == '\t' }
