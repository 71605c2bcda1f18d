package crex

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/driver"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
	"github.com/d21d3q/gobufr/internal/testutil"
)

func env(t *testing.T) driver.Env {
	return driver.Env{Source: "test.crex", Tables: testutil.Cache(t)}
}

func newVar(t *testing.T, tb *table.Tables, code string, val any) *message.Variable {
	t.Helper()
	info, err := tb.B.Lookup(descriptor.MustParse(code))
	require.NoError(t, err)
	v := message.NewVariable(info)
	switch x := val.(type) {
	case nil:
	case string:
		require.NoError(t, v.SetString(x))
	case float64:
		require.NoError(t, v.SetFloat(x))
	case int:
		require.NoError(t, v.SetInt(int64(x)))
	}
	return v
}

func newMessage(descs ...string) *message.Message {
	m := &message.Message{Format: message.CREX, Edition: 1, MasterTableVersion: 13}
	for _, d := range descs {
		m.Descriptors = append(m.Descriptors, descriptor.MustParse(d))
	}
	return m
}

func station(t *testing.T, m *message.Message, block, number int, temp any) {
	tb := testutil.Tables(t)
	s := m.NewSubset()
	s.Append(newVar(t, tb, "B01001", block))
	s.Append(newVar(t, tb, "B01002", number))
	s.Append(newVar(t, tb, "B12101", temp))
}

func roundTrip(t *testing.T, m *message.Message) (*message.Message, string) {
	t.Helper()
	ctx := context.Background()
	raw, err := Driver{}.Encode(ctx, m, env(t))
	require.NoError(t, err)
	got, err := Driver{}.Decode(ctx, raw, env(t))
	require.NoError(t, err)
	if diff := cmp.Diff(m.Subsets, got.Subsets); diff != "" {
		t.Fatalf("subsets differ (-want +got):\n%s", diff)
	}
	return got, string(raw)
}

func TestEncodeLayout(t *testing.T) {
	m := newMessage("B01001", "B01002", "B12101")
	station(t, m, 16, 601, 273.15)

	_, raw := roundTrip(t, m)
	want := "CREX++\r\r\n" +
		"T000113 A000 B01001 B01002 B12101++\r\r\n" +
		" 16 601 27315++" +
		"\r\r\n7777\r\r\n"
	require.Equal(t, want, raw)
}

func TestCheckDigits(t *testing.T) {
	m := newMessage("B01001", "B01002", "B12101")
	m.CheckDigit = true
	station(t, m, 16, 601, 273.15)
	station(t, m, 16, 602, 280.0)

	got, raw := roundTrip(t, m)
	require.True(t, got.CheckDigit)
	require.Contains(t, raw, "B12101 E++")
	require.Contains(t, raw, " 016 1601 227315+\r\r\n 016 1602 228000++")

	bad := strings.Replace(raw, " 1602", " 7602", 1)
	_, err := Driver{}.Decode(context.Background(), []byte(bad), env(t))
	require.ErrorIs(t, err, errs.ErrParse)
	require.Contains(t, err.Error(), "subset 1")
	var perr *errs.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "test.crex", perr.Source)
}

func TestNegativeValues(t *testing.T) {
	tb := testutil.Tables(t)
	m := newMessage("B05001", "B07001")
	s := m.NewSubset()
	s.Append(newVar(t, tb, "B05001", -45.5))
	s.Append(newVar(t, tb, "B07001", -12))

	got, raw := roundTrip(t, m)
	require.Contains(t, raw, " -4550000 -0012++")
	lat, err := got.Subsets[0].Vars[0].Float()
	require.NoError(t, err)
	require.InDelta(t, -45.5, lat, 1e-9)
}

func TestMissingValues(t *testing.T) {
	tb := testutil.Tables(t)
	m := newMessage("B12101", "B01019")
	s := m.NewSubset()
	s.Append(newVar(t, tb, "B12101", nil))
	s.Append(newVar(t, tb, "B01019", nil))

	_, raw := roundTrip(t, m)
	require.Contains(t, raw, " 99999 //////////////++")

	// Slashes are accepted for numbers too.
	slashed := strings.Replace(raw, " 99999", " /////", 1)
	got, err := Driver{}.Decode(context.Background(), []byte(slashed), env(t))
	require.NoError(t, err)
	require.False(t, got.Subsets[0].Vars[0].IsSet())
	require.False(t, got.Subsets[0].Vars[1].IsSet())
}

func TestStringPadding(t *testing.T) {
	tb := testutil.Tables(t)
	m := newMessage("B01019")
	m.NewSubset().Append(newVar(t, tb, "B01019", "abcdefg"))

	got, raw := roundTrip(t, m)
	require.Contains(t, raw, " abcdefg       ++")
	text, err := got.Subsets[0].Vars[0].Text()
	require.NoError(t, err)
	require.Equal(t, "abcdefg\x00\x00\x00\x00\x00\x00\x00", text)
}

func TestReplicationAcrossSubsets(t *testing.T) {
	tb := testutil.Tables(t)
	m := newMessage("B01001", "R01000", "B31001", "B10004")
	for i, n := range []int{2, 0, 1} {
		s := m.NewSubset()
		s.Append(newVar(t, tb, "B01001", 10+i))
		s.Append(newVar(t, tb, "B31001", n))
		for j := 0; j < n; j++ {
			s.Append(newVar(t, tb, "B10004", 100000.0+float64(10*j)))
		}
	}
	got, _ := roundTrip(t, m)
	require.Len(t, got.Subsets, 3)
	require.Equal(t, 4, got.Subsets[0].Len())
	require.Equal(t, 2, got.Subsets[1].Len())
}

func TestEncodeErrors(t *testing.T) {
	tb := testutil.Tables(t)
	ctx := context.Background()

	m := newMessage("B01001")
	_, err := Driver{}.Encode(ctx, m, env(t))
	require.ErrorIs(t, err, errs.ErrConsistency)

	v := newVar(t, tb, "B01001", nil)
	v.SetScaledUnchecked(100)
	m.NewSubset().Append(v)
	_, err = Driver{}.Encode(ctx, m, env(t))
	require.ErrorIs(t, err, errs.ErrConsistency)

	m.Format = message.BUFR
	_, err = Driver{}.Encode(ctx, m, env(t))
	require.ErrorIs(t, err, errs.ErrConsistency)
}

func TestDecodeErrors(t *testing.T) {
	head := "CREX++\r\r\nT000113 A000 B01001 B01002++\r\r\n"
	for name, raw := range map[string]string{
		"short field":      head + " 16 60++\r\r\n7777\r\r\n",
		"no separator":     head + "16 601++\r\r\n7777\r\r\n",
		"not a number":     head + " 1x 601++\r\r\n7777\r\r\n",
		"no terminator":    head + " 16 601\r\r\n7777\r\r\n",
		"trailing garbage": head + " 16 601++ 17\r\r\n7777\r\r\n",
	} {
		_, err := Driver{}.Decode(context.Background(), []byte(raw), env(t))
		require.ErrorIs(t, err, errs.ErrParse, name)
	}
}

func TestRegistered(t *testing.T) {
	d, f, err := driver.Detect([]byte("  CREX++\r\r\n"), "mem")
	require.NoError(t, err)
	require.Equal(t, "crex", d.Name())
	require.Equal(t, message.CREX, f)
}
