package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/table"
)

func info(t *testing.T, code string, scale int, ref int64, bits int, isString bool) *table.Varinfo {
	t.Helper()
	vi, err := table.NewVarinfo(descriptor.MustParse(code), "TEST", "K", scale, ref, bits, 0, isString)
	require.NoError(t, err)
	return vi
}

func TestUnsetIsNotZero(t *testing.T) {
	v := NewVariable(info(t, "B12101", 2, 0, 16, false))
	require.False(t, v.IsSet())
	_, err := v.Float()
	require.ErrorIs(t, err, ErrUnset)

	require.NoError(t, v.SetScaled(0))
	require.True(t, v.IsSet())
	f, err := v.Float()
	require.NoError(t, err)
	require.Zero(t, f)

	v.Unset()
	require.False(t, v.IsSet())
}

func TestSettersCheckRange(t *testing.T) {
	v := NewVariable(info(t, "B12101", 2, 0, 16, false))
	require.NoError(t, v.SetFloat(273.15))
	ival, err := v.Scaled()
	require.NoError(t, err)
	require.EqualValues(t, 27315, ival)
	text, err := v.Text()
	require.NoError(t, err)
	require.Equal(t, "273.15", text)

	// All ones is the missing pattern, so 65535 is out of range.
	require.ErrorIs(t, v.SetScaled(65535), errs.ErrConsistency)
	require.ErrorIs(t, v.SetFloat(-1), errs.ErrConsistency)
	require.ErrorIs(t, v.SetString("x"), errs.ErrConsistency)

	n, err := v.Int()
	require.NoError(t, err)
	require.EqualValues(t, 273, n)
}

func TestStringWidth(t *testing.T) {
	v := NewVariable(info(t, "B01019", 0, 0, 40, true))
	require.NoError(t, v.SetString("abcde"))
	require.NoError(t, v.SetString("abc\x00\x00\x00"))
	require.ErrorIs(t, v.SetString("abcdef"), errs.ErrConsistency)
	require.ErrorIs(t, v.SetFloat(1), errs.ErrConsistency)
}

func TestAttributes(t *testing.T) {
	v := NewVariable(info(t, "B12101", 2, 0, 16, false))
	q := NewVariable(info(t, "B33007", 0, 0, 7, false))
	require.NoError(t, q.SetInt(70))
	require.NoError(t, v.SetAttr(q))

	q2 := NewVariable(info(t, "B33007", 0, 0, 7, false))
	require.NoError(t, q2.SetInt(80))
	require.NoError(t, v.SetAttr(q2))
	require.Len(t, v.Attrs(), 1)
	require.Same(t, q2, v.Attr(descriptor.MustParse("B33007")))

	bad := NewVariable(info(t, "B12103", 2, 0, 16, false))
	require.ErrorIs(t, v.SetAttr(bad), errs.ErrConsistency)
	require.Nil(t, v.Attr(descriptor.MustParse("B33002")))
}

func TestEqualAcrossScales(t *testing.T) {
	a := NewVariable(info(t, "B12101", 2, 0, 16, false))
	b := NewVariable(info(t, "B12101", 3, 0, 20, false))
	require.NoError(t, a.SetFloat(273.15))
	require.NoError(t, b.SetFloat(273.152))
	require.True(t, a.Equal(b))

	require.NoError(t, b.SetFloat(273.16))
	require.False(t, a.Equal(b))

	c := a.Clone()
	require.True(t, a.Equal(c))
	q := NewVariable(info(t, "B33007", 0, 0, 7, false))
	require.NoError(t, c.SetAttr(q))
	require.False(t, a.Equal(c))
	require.Empty(t, a.Attrs())
}

func TestSubsetAndMessage(t *testing.T) {
	m := &Message{Format: BUFR, Centre: 98, MasterTableVersion: 13}
	s := m.NewSubset()
	v := NewVariable(info(t, "B12101", 2, 0, 16, false))
	s.Append(v)
	require.Len(t, m.Subsets, 1)
	require.Same(t, v, s.Find(descriptor.MustParse("B12101")))
	require.Nil(t, s.Find(descriptor.MustParse("B12103")))
	require.Equal(t, []descriptor.Code{descriptor.MustParse("B12101")}, s.Codes())

	ts := time.Date(2024, 3, 15, 12, 30, 45, 0, time.UTC)
	m.SetTime(ts)
	require.Equal(t, ts, m.Time())
	require.Equal(t, table.ID{Centre: 98, MasterVersion: 13}, m.TableID())
	require.Equal(t, "BUFR", m.Format.String())
}
