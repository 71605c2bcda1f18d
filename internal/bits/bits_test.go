package bits

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d21d3q/gobufr/internal/errs"
)

func TestWriteThenRead(t *testing.T) {
	fields := []struct {
		n int
		v uint64
	}{
		{7, 16}, {10, 601}, {1, 1}, {12, 2024}, {25, 13550000}, {0, 0}, {3, 5}, {16, 65535}, {62, 1<<61 + 12345},
	}
	var w Writer
	for _, f := range fields {
		w.WriteBits(f.n, f.v)
	}
	total := 0
	for _, f := range fields {
		total += f.n
	}
	require.Equal(t, total, w.Len())
	require.Len(t, w.Bytes(), (total+7)/8)

	r := NewReader(w.Bytes(), "mem", 0)
	for _, f := range fields {
		got, err := r.ReadBits(f.n)
		require.NoError(t, err)
		require.Equal(t, f.v, got, "width %d", f.n)
	}
}

func TestKnownLayout(t *testing.T) {
	var w Writer
	w.WriteBits(4, 0xA)
	w.WriteBits(8, 0xBC)
	w.WriteBits(4, 0xD)
	require.Equal(t, []byte{0xAB, 0xCD}, w.Bytes())

	r := NewReader([]byte{0xAB, 0xCD}, "mem", 0)
	v, err := r.ReadBits(12)
	require.NoError(t, err)
	require.Equal(t, uint64(0xABC), v)
	require.Equal(t, 4, r.Remaining())
}

func TestUnalignedBytes(t *testing.T) {
	var w Writer
	w.WriteBits(3, 0)
	w.WriteBytes([]byte("abc"))
	w.WriteBits(5, 31)

	r := NewReader(w.Bytes(), "mem", 0)
	_, err := r.ReadBits(3)
	require.NoError(t, err)
	b, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.Equal(t, "abc", string(b))
	v, err := r.ReadBits(5)
	require.NoError(t, err)
	require.Equal(t, uint64(31), v)
}

func TestTruncationReportsOffset(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF}, "obs.bufr", 100)
	_, err := r.ReadBits(12)
	require.NoError(t, err)
	_, err = r.ReadBits(8)
	require.ErrorIs(t, err, errs.ErrParse)
	var perr *errs.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "obs.bufr", perr.Source)
	require.Equal(t, 101, perr.Offset)

	_, err = r.ReadBytes(1)
	require.ErrorIs(t, err, errs.ErrParse)
}
