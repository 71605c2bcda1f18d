// Package bits reads and writes MSB-first bit fields.
package bits

import (
	"github.com/d21d3q/gobufr/internal/errs"
)

// Reader reads bit fields from a byte slice, starting at the most
// significant bit of the first byte.
type Reader struct {
	data   []byte
	pos    int // bit position
	source string
	base   int // byte offset of data inside the source, for errors
}

// NewReader reads data. source and base locate data in error messages.
func NewReader(data []byte, source string, base int) *Reader {
	return &Reader{data: data, source: source, base: base}
}

// Pos returns the current bit position.
func (r *Reader) Pos() int { return r.pos }

// Offset returns the byte offset of the current position in the source.
func (r *Reader) Offset() int { return r.base + r.pos/8 }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return len(r.data)*8 - r.pos }

// ReadBits reads n bits (0 <= n <= 64) as an unsigned integer.
func (r *Reader) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, errs.Parsef(r.source, r.Offset(), "invalid field width %d", n)
	}
	if n > r.Remaining() {
		return 0, errs.Parsef(r.source, r.Offset(), "need %d bits, only %d left", n, r.Remaining())
	}
	var v uint64
	for n > 0 {
		idx := r.pos / 8
		used := r.pos % 8
		avail := 8 - used
		take := avail
		if take > n {
			take = n
		}
		chunk := (r.data[idx] >> uint(avail-take)) & byte(1<<uint(take)-1)
		v = v<<uint(take) | uint64(chunk)
		r.pos += take
		n -= take
	}
	return v, nil
}

// ReadBytes reads n whole bytes, which need not be byte aligned.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n*8 > r.Remaining() {
		return nil, errs.Parsef(r.source, r.Offset(), "need %d bytes, only %d bits left", n, r.Remaining())
	}
	out := make([]byte, n)
	if r.pos%8 == 0 {
		copy(out, r.data[r.pos/8:])
		r.pos += n * 8
		return out, nil
	}
	for i := range out {
		b, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// Writer appends bit fields to a growing buffer.
type Writer struct {
	buf   []byte
	nbits int
}

// Len returns the number of bits written.
func (w *Writer) Len() int { return w.nbits }

// WriteBits writes the low n bits of v, most significant first.
func (w *Writer) WriteBits(n int, v uint64) {
	for n > 0 {
		used := w.nbits % 8
		if used == 0 {
			w.buf = append(w.buf, 0)
		}
		avail := 8 - used
		take := avail
		if take > n {
			take = n
		}
		chunk := byte(v>>uint(n-take)) & byte(1<<uint(take)-1)
		w.buf[len(w.buf)-1] |= chunk << uint(avail-take)
		w.nbits += take
		n -= take
	}
}

// WriteBytes writes every byte of b as an 8-bit field.
func (w *Writer) WriteBytes(b []byte) {
	if w.nbits%8 == 0 {
		w.buf = append(w.buf, b...)
		w.nbits += len(b) * 8
		return
	}
	for _, c := range b {
		w.WriteBits(8, uint64(c))
	}
}

// Bytes returns the buffer, zero padded to whole bytes.
func (w *Writer) Bytes() []byte { return w.buf }
