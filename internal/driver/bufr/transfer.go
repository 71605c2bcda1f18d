package bufr

import (
	"fmt"
	mathbits "math/bits"

	"github.com/d21d3q/gobufr/internal/bits"
	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
)

const nbincBits = 6

func allOnes(n int) uint64 { return 1<<uint(n) - 1 }

func isAllOnes(b []byte) bool {
	for _, c := range b {
		if c != 0xFF {
			return false
		}
	}
	return len(b) > 0
}

// decodedString pads or cuts raw to width characters and turns trailing
// padding into NULs.
func decodedString(raw []byte, width int) string {
	buf := make([]byte, width)
	copy(buf, raw)
	for i := len(raw); i < width; i++ {
		buf[i] = ' '
	}
	return codec.DecodedString(buf)
}

func checkRange(info *table.Varinfo, ival int64) error {
	if err := info.Check(ival); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConsistency, err)
	}
	return nil
}

// plainReader reads one subset's values in sequence.
type plainReader struct {
	br     *bits.Reader
	source string
}

func (r *plainReader) Offset() int    { return r.br.Offset() }
func (r *plainReader) Source() string { return r.source }

func (r *plainReader) Read(info *table.Varinfo) ([]*message.Variable, error) {
	v := message.NewVariable(info)
	if info.IsString {
		raw, err := r.br.ReadBytes(info.Chars())
		if err != nil {
			return nil, err
		}
		if !isAllOnes(raw) {
			v.SetStringUnchecked(codec.DecodedString(raw))
		}
		return []*message.Variable{v}, nil
	}
	raw, err := r.br.ReadBits(info.Bits)
	if err != nil {
		return nil, err
	}
	if !info.CanBeMissing() || raw != allOnes(info.Bits) {
		v.SetScaledUnchecked(int64(raw) + info.Ref)
	}
	return []*message.Variable{v}, nil
}

// plainWriter writes one subset's values in sequence.
type plainWriter struct {
	bw *bits.Writer
}

func (w *plainWriter) Offset() int { return w.bw.Len() / 8 }

func (w *plainWriter) Write(info *table.Varinfo, vals []*message.Variable) error {
	v := vals[0]
	if info.IsString {
		s, missing, err := codec.StringValue(v, info, info.Chars())
		if err != nil {
			return err
		}
		if missing {
			writeOnes(w.bw, info.Chars())
			return nil
		}
		w.bw.WriteBytes([]byte(s))
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
		w.bw.WriteBits(info.Bits, allOnes(info.Bits))
		return nil
	}
	if err := checkRange(info, ival); err != nil {
		return err
	}
	w.bw.WriteBits(info.Bits, uint64(ival-info.Ref))
	return nil
}

func writeOnes(bw *bits.Writer, n int) {
	for i := 0; i < n; i++ {
		bw.WriteBits(8, 0xFF)
	}
}

// compressedReader reads one value for every subset at each element: a
// base value, an increment width and the per-subset increments.
type compressedReader struct {
	br      *bits.Reader
	source  string
	subsets int
}

func (r *compressedReader) Offset() int    { return r.br.Offset() }
func (r *compressedReader) Source() string { return r.source }

func (r *compressedReader) Read(info *table.Varinfo) ([]*message.Variable, error) {
	vars := make([]*message.Variable, r.subsets)
	for i := range vars {
		vars[i] = message.NewVariable(info)
	}
	if info.IsString {
		return vars, r.readStrings(info, vars)
	}
	base, err := r.br.ReadBits(info.Bits)
	if err != nil {
		return nil, err
	}
	nbinc, err := r.br.ReadBits(nbincBits)
	if err != nil {
		return nil, err
	}
	if nbinc == 0 {
		if info.CanBeMissing() && base == allOnes(info.Bits) {
			return vars, nil
		}
		for _, v := range vars {
			v.SetScaledUnchecked(int64(base) + info.Ref)
		}
		return vars, nil
	}
	width := int(nbinc)
	for _, v := range vars {
		inc, err := r.br.ReadBits(width)
		if err != nil {
			return nil, err
		}
		if info.CanBeMissing() && inc == allOnes(width) {
			continue
		}
		v.SetScaledUnchecked(int64(base) + int64(inc) + info.Ref)
	}
	return vars, nil
}

func (r *compressedReader) readStrings(info *table.Varinfo, vars []*message.Variable) error {
	base, err := r.br.ReadBytes(info.Chars())
	if err != nil {
		return err
	}
	nbinc, err := r.br.ReadBits(nbincBits)
	if err != nil {
		return err
	}
	if nbinc == 0 {
		if isAllOnes(base) {
			return nil
		}
		s := codec.DecodedString(base)
		for _, v := range vars {
			v.SetStringUnchecked(s)
		}
		return nil
	}
	for _, v := range vars {
		raw, err := r.br.ReadBytes(int(nbinc))
		if err != nil {
			return err
		}
		if !isAllOnes(raw) {
			v.SetStringUnchecked(decodedString(raw, info.Chars()))
		}
	}
	return nil
}

// compressedWriter writes one value for every subset at each element.
type compressedWriter struct {
	bw *bits.Writer
}

func (w *compressedWriter) Offset() int { return w.bw.Len() / 8 }

func (w *compressedWriter) Write(info *table.Varinfo, vals []*message.Variable) error {
	if info.IsString {
		return w.writeStrings(info, vals)
	}
	ivals := make([]int64, len(vals))
	missing := make([]bool, len(vals))
	var lo, hi int64
	present, anyMissing := 0, false
	for i, v := range vals {
		ival, miss, err := codec.ScaledValue(v, info)
		if err != nil {
			return fmt.Errorf("subset %d: %w", i, err)
		}
		if miss {
			if !info.CanBeMissing() {
				return errs.Consistencyf("subset %d: %s cannot be missing", i, info.Code)
			}
			missing[i], anyMissing = true, true
			continue
		}
		if err := checkRange(info, ival); err != nil {
			return fmt.Errorf("subset %d: %w", i, err)
		}
		ivals[i] = ival
		if present == 0 || ival < lo {
			lo = ival
		}
		if present == 0 || ival > hi {
			hi = ival
		}
		present++
	}

	switch {
	case present == 0:
		w.bw.WriteBits(info.Bits, allOnes(info.Bits))
		w.bw.WriteBits(nbincBits, 0)
		return nil
	case !anyMissing && lo == hi:
		w.bw.WriteBits(info.Bits, uint64(lo-info.Ref))
		w.bw.WriteBits(nbincBits, 0)
		return nil
	}

	// All ones marks a missing increment, so it must stay above the spread
	// for every element that can be missing. Class 31 uses every pattern.
	spread := uint64(hi - lo)
	width := mathbits.Len64(spread)
	if info.CanBeMissing() {
		width = mathbits.Len64(spread + 1)
	}
	if width >= 1<<nbincBits {
		return errs.Consistencyf("%s: spread %d needs %d bit increments, at most %d fit",
			info.Code, spread, width, 1<<nbincBits-1)
	}
	w.bw.WriteBits(info.Bits, uint64(lo-info.Ref))
	w.bw.WriteBits(nbincBits, uint64(width))
	for i := range vals {
		if missing[i] {
			w.bw.WriteBits(width, allOnes(width))
			continue
		}
		w.bw.WriteBits(width, uint64(ivals[i]-lo))
	}
	return nil
}

func (w *compressedWriter) writeStrings(info *table.Varinfo, vals []*message.Variable) error {
	chars := info.Chars()
	texts := make([]string, len(vals))
	missing := make([]bool, len(vals))
	same := true
	for i, v := range vals {
		s, miss, err := codec.StringValue(v, info, chars)
		if err != nil {
			return fmt.Errorf("subset %d: %w", i, err)
		}
		texts[i], missing[i] = s, miss
		if i > 0 && (miss != missing[0] || s != texts[0]) {
			same = false
		}
	}
	if same {
		if missing[0] {
			writeOnes(w.bw, chars)
		} else {
			w.bw.WriteBytes([]byte(texts[0]))
		}
		w.bw.WriteBits(nbincBits, 0)
		return nil
	}
	if chars >= 1<<nbincBits {
		return errs.Consistencyf("%s: %d character strings cannot be compressed", info.Code, chars)
	}
	w.bw.WriteBytes(make([]byte, chars))
	w.bw.WriteBits(nbincBits, uint64(chars))
	for i := range vals {
		if missing[i] {
			writeOnes(w.bw, chars)
			continue
		}
		w.bw.WriteBytes([]byte(texts[i]))
	}
	return nil
}
