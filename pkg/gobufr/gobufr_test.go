package gobufr

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/d21d3q/gobufr/internal/archive"
	"github.com/d21d3q/gobufr/internal/table"
	"github.com/d21d3q/gobufr/internal/testutil"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(Options{TablesDir: testutil.TablesDir(t)})
	require.NoError(t, err)
	return c
}

func goldenHex(t *testing.T) string {
	return hex.EncodeToString(testutil.LoadHex(t, "bufr/synop_ed4.hex"))
}

func TestDecodeHex(t *testing.T) {
	data, err := decodeHex(" |4255_4652 0000| ")
	require.NoError(t, err)
	require.Equal(t, []byte("BUFR\x00\x00"), data)

	_, err = decodeHex("ABC")
	require.Error(t, err)
	_, err = decodeHex("zz")
	require.Error(t, err)
}

func TestNewRequiresTables(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	c, err := New(Options{Tables: table.Fixed(testutil.Tables(t))})
	require.NoError(t, err)
	tb, err := c.Tables(TableID{MasterVersion: 99})
	require.NoError(t, err)
	require.NotEmpty(t, tb.Digest)
}

func TestGoldenSummary(t *testing.T) {
	c := newCodec(t)
	m, err := c.DecodeHex(context.Background(), goldenHex(t))
	require.NoError(t, err)

	var want any
	testutil.LoadJSON(t, "golden/synop_ed4.json", &want)
	var got any
	require.NoError(t, json.Unmarshal([]byte(Summarize(m, "hex", 0).String()), &got))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryRenderings(t *testing.T) {
	c := newCodec(t)
	m, err := c.DecodeHex(context.Background(), goldenHex(t))
	require.NoError(t, err)
	s := Summarize(m, "x.bufr", 12)

	y, err := s.Render("yaml")
	require.NoError(t, err)
	require.Contains(t, string(y), "code: B12101")
	require.Contains(t, string(y), "offset: 12")

	a, err := s.Render("cbor")
	require.NoError(t, err)
	b, err := s.CBOR()
	require.NoError(t, err)
	require.Equal(t, a, b)
	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(a, &decoded))
	require.Equal(t, "BUFR", decoded["format"])
	require.Equal(t, "x.bufr", decoded["source"])

	_, err = s.Render("xml")
	require.Error(t, err)
}

func TestFieldSet(t *testing.T) {
	c := newCodec(t)
	m, err := c.DecodeHex(context.Background(), goldenHex(t))
	require.NoError(t, err)
	fs := NewFieldSet(m.Subsets[0])

	temp, err := fs.Float("B12101")
	require.NoError(t, err)
	require.InDelta(t, 273.15, temp, 1e-9)
	station, err := fs.Int("0-01-002")
	require.NoError(t, err)
	require.EqualValues(t, 601, station)
	text, err := fs.String("B12101")
	require.NoError(t, err)
	require.Equal(t, "273.15", text)
	flag, err := fs.Bool("B01001")
	require.NoError(t, err)
	require.True(t, flag)

	_, err = fs.Float("B13003")
	require.Error(t, err)
	require.False(t, fs.Missing("B13003"))
	require.Equal(t, map[string]any{"B01001": int64(16), "B01002": int64(601), "B12101": 273.15}, fs.Map())
	require.Empty(t, NewFieldSet(nil).Map())
}

func TestEncodeWithTemplate(t *testing.T) {
	c := newCodec(t)
	ctx := context.Background()
	m, err := c.DecodeHex(ctx, goldenHex(t))
	require.NoError(t, err)
	m.Subcategory = 0

	raw, err := c.Encode(ctx, m, EncodeOptions{Template: "1.4.9"})
	require.NoError(t, err)
	require.Zero(t, m.Category)

	got, err := c.Decode(ctx, raw, "encoded")
	require.NoError(t, err)
	require.Equal(t, 1, got.Category)
	require.Equal(t, 4, got.Subcategory)
	require.Equal(t, 9, got.LocalSubcategory)

	_, err = c.Encode(ctx, m, EncodeOptions{Template: "x"})
	require.Error(t, err)
}

func TestConvertBUFRToCREX(t *testing.T) {
	c := newCodec(t)
	ctx := context.Background()
	m, err := c.DecodeHex(ctx, goldenHex(t))
	require.NoError(t, err)

	raw, err := c.Encode(ctx, Convert(m, ConvertOptions{Format: CREX, CheckDigit: true}), EncodeOptions{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("CREX++")))

	back, err := c.Decode(ctx, raw, "converted.crex")
	require.NoError(t, err)
	require.Equal(t, CREX, back.Format)
	require.True(t, back.CheckDigit)
	if diff := cmp.Diff(m.Subsets, back.Subsets); diff != "" {
		t.Fatalf("subsets differ (-want +got):\n%s", diff)
	}

	again, err := c.Encode(ctx, Convert(back, ConvertOptions{Format: BUFR, Compressed: true}), EncodeOptions{})
	require.NoError(t, err)
	final, err := c.Decode(ctx, again, "again.bufr")
	require.NoError(t, err)
	require.True(t, final.Compressed)
	require.Equal(t, 4, final.Edition)
	if diff := cmp.Diff(m.Subsets, final.Subsets); diff != "" {
		t.Fatalf("subsets differ (-want +got):\n%s", diff)
	}
}

func TestDecodeStream(t *testing.T) {
	c := newCodec(t)
	golden := testutil.LoadHex(t, "bufr/synop_ed4.hex")
	broken := append([]byte(nil), golden...)
	broken[40] = 99 // unknown descriptor B01099

	var stream bytes.Buffer
	stream.WriteString("header\r\r\n")
	stream.Write(golden)
	stream.Write(broken)
	stream.Write(golden)

	var offsets []int
	collect := func(raw archive.Raw, m *Message) error {
		offsets = append(offsets, raw.Offset)
		require.Len(t, m.Subsets, 1)
		return nil
	}
	err := c.DecodeStream(context.Background(), bytes.NewReader(stream.Bytes()), "stream", archive.Options{}, collect)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, []int{9}, offsets)

	offsets = nil
	err = c.DecodeStream(context.Background(), bytes.NewReader(stream.Bytes()), "stream", archive.Options{SkipErrors: true}, collect)
	require.NoError(t, err)
	require.Equal(t, []int{9, 9 + 2*len(golden)}, offsets)

	stop := errors.New("stop")
	err = c.DecodeStream(context.Background(), bytes.NewReader(stream.Bytes()), "stream", archive.Options{},
		func(archive.Raw, *Message) error { return stop })
	require.ErrorIs(t, err, stop)

	// The second message declares two subsets and runs off its data.
	short := append([]byte(nil), golden...)
	short[35] = 2
	stream.Reset()
	stream.WriteString("header\r\r\n")
	stream.Write(golden)
	stream.Write(short)
	err = c.DecodeStream(context.Background(), bytes.NewReader(stream.Bytes()), "stream", archive.Options{},
		func(archive.Raw, *Message) error { return nil })
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "stream", perr.Source)
	require.GreaterOrEqual(t, perr.Offset, 9+len(golden)+47)
	require.Less(t, perr.Offset, 9+2*len(golden))
}

func TestDecodeErrors(t *testing.T) {
	c := newCodec(t)
	_, err := c.Decode(context.Background(), []byte("GRIB"), "x")
	require.ErrorIs(t, err, ErrParse)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "x", perr.Source)

	_, err = c.DecodeHex(context.Background(), strings.Repeat("0", 3))
	require.Error(t, err)
}

func TestExpand(t *testing.T) {
	c := newCodec(t)
	d, err := ParseCode("D35007")
	require.NoError(t, err)
	got, err := c.Expand(TableID{MasterVersion: 13}, []Code{d})
	require.NoError(t, err)
	require.Equal(t, "B12101", got[0].String())
	require.Equal(t, "B13003", got[1].String())
}
