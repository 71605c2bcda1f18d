package crex

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/frame"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
)

// digitReader reads space separated fixed-width fields. With check digits
// each field is preceded by the last digit of its index in the subset.
type digitReader struct {
	data   []byte
	pos    int
	base   int
	source string
	check  bool
	field  int
}

func (r *digitReader) Offset() int    { return r.base + r.pos }
func (r *digitReader) Source() string { return r.source }

func (r *digitReader) fail(format string, args ...any) error {
	return errs.Parsef(r.source, r.Offset(), format, args...)
}

func (r *digitReader) skipLines() {
	for r.pos < len(r.data) && (r.data[r.pos] == '\r' || r.data[r.pos] == '\n') {
		r.pos++
	}
}

func (r *digitReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, r.fail("need %d characters, only %d left", n, len(r.data)-r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *digitReader) Read(info *table.Varinfo) ([]*message.Variable, error) {
	r.skipLines()
	if r.pos >= len(r.data) || r.data[r.pos] != ' ' {
		return nil, r.fail("expected a field separator before %s", info.Code)
	}
	r.pos++
	if r.check {
		want := byte('0' + r.field%10)
		c, err := r.take(1)
		if err != nil {
			return nil, err
		}
		if c[0] != want {
			return nil, r.fail("check digit %q, expected %q", c[0], want)
		}
	}
	r.field++

	v := message.NewVariable(info)
	vars := []*message.Variable{v}
	if info.IsString {
		raw, err := r.take(info.Chars())
		if err != nil {
			return nil, err
		}
		if !allOf(raw, '/') {
			v.SetStringUnchecked(codec.DecodedString(raw))
		}
		return vars, nil
	}

	neg := r.pos < len(r.data) && r.data[r.pos] == '-'
	if neg {
		r.pos++
	}
	raw, err := r.take(info.Digits)
	if err != nil {
		return nil, err
	}
	if allOf(raw, '/') || (!neg && info.CanBeMissing() && allOf(raw, '9')) {
		return vars, nil
	}
	var ival int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return nil, r.fail("%s: %q is not a number", info.Code, raw)
		}
		ival = ival*10 + int64(c-'0')
	}
	if neg {
		ival = -ival
	}
	v.SetScaledUnchecked(ival)
	return vars, nil
}

// endSubset consumes the subset terminator and reports whether it was the
// last one.
func (r *digitReader) endSubset() (last bool, err error) {
	r.skipLines()
	for r.pos < len(r.data) && r.data[r.pos] == ' ' {
		r.pos++
	}
	if r.pos >= len(r.data) || r.data[r.pos] != '+' {
		return false, r.fail("expected + after subset")
	}
	r.pos++
	r.field = 0
	if r.pos < len(r.data) && r.data[r.pos] == '+' {
		r.pos++
		if rest := bytes.TrimSpace(r.data[r.pos:]); len(rest) > 0 {
			return true, r.fail("%d unexpected characters after the data section", len(rest))
		}
		return true, nil
	}
	return false, nil
}

func allOf(b []byte, c byte) bool {
	for _, x := range b {
		if x != c {
			return false
		}
	}
	return len(b) > 0
}

// digitWriter writes the data section text.
type digitWriter struct {
	buf   bytes.Buffer
	check bool
	field int
}

func (w *digitWriter) Offset() int { return w.buf.Len() }

func (w *digitWriter) Write(info *table.Varinfo, vals []*message.Variable) error {
	v := vals[0]
	w.buf.WriteByte(' ')
	if w.check {
		w.buf.WriteByte(byte('0' + w.field%10))
	}
	w.field++

	if info.IsString {
		s, missing, err := codec.StringValue(v, info, info.Chars())
		if err != nil {
			return err
		}
		if missing {
			s = strings.Repeat("/", info.Chars())
		}
		w.buf.WriteString(s)
		return nil
	}
	ival, missing, err := codec.ScaledValue(v, info)
	if err != nil {
		return err
	}
	if missing {
		if !info.CanBeMissing() {
			return errs.Consistencyf("%s cannot be missing", info.Code)
		}
		w.buf.WriteString(strings.Repeat("9", info.Digits))
		return nil
	}
	lo, hi := info.CrexRange()
	if ival < lo || ival > hi {
		return errs.Consistencyf("value %s out of range [%s, %s] for %s",
			info.Format(ival), info.Format(lo), info.Format(hi), info.Code)
	}
	if ival < 0 {
		fmt.Fprintf(&w.buf, "-%0*d", info.Digits, -ival)
		return nil
	}
	fmt.Fprintf(&w.buf, "%0*d", info.Digits, ival)
	return nil
}

func (w *digitWriter) endSubset(last bool) {
	if last {
		w.buf.WriteString("++")
		return
	}
	w.buf.WriteString("+" + frame.CRLF)
	w.field = 0
}
