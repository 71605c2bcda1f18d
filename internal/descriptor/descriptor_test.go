package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	for f := 0; f < 4; f++ {
		for _, x := range []int{0, 1, 31, 33, 63} {
			for _, y := range []int{0, 1, 101, 255} {
				c := New(f, x, y)
				require.Equal(t, f, c.F())
				require.Equal(t, x, c.X())
				require.Equal(t, y, c.Y())
			}
		}
	}
}

func TestParseForms(t *testing.T) {
	want := New(0, 12, 101)
	for _, in := range []string{"B12101", "012101", "0-12-101", " b12101 "} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	c, err := Parse("3-35-6")
	require.NoError(t, err)
	require.Equal(t, "D35006", c.String())
	require.Equal(t, "3-35-006", c.FXY())

	for _, bad := range []string{"", "X1", "B1210", "4-01-001", "0-64-000", "0-01-256", "Bxx101"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
	}
}

func TestStringPrefixes(t *testing.T) {
	require.Equal(t, "R01002", New(1, 1, 2).String())
	require.Equal(t, "C02129", New(2, 2, 129).String())
	require.Equal(t, "D01001", New(3, 1, 1).String())
	require.Equal(t, "B33007 D35006", Join([]Code{New(0, 33, 7), New(3, 35, 6)}))
}

func TestTextRoundTrip(t *testing.T) {
	c := New(0, 1, 19)
	text, err := c.MarshalText()
	require.NoError(t, err)
	var back Code
	require.NoError(t, back.UnmarshalText(text))
	require.Equal(t, c, back)
	require.Error(t, back.UnmarshalText([]byte("nope")))
}

func TestIsLocal(t *testing.T) {
	require.True(t, New(0, 48, 1).IsLocal())
	require.True(t, New(0, 1, 192).IsLocal())
	require.False(t, New(0, 12, 101).IsLocal())
}
