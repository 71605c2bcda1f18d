package table_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/table"
	"github.com/d21d3q/gobufr/internal/testutil"
)

func TestSequenceExpansion(t *testing.T) {
	tables := testutil.Tables(t)

	prog, err := tables.D.Lookup(descriptor.MustParse("3-35-6"))
	require.NoError(t, err)
	require.Equal(t, "B08021 B04004 B08021 B04004 B35000 B01003 B35011", prog.String())

	prog, err = tables.D.Lookup(descriptor.MustParse("3-35-10"))
	require.NoError(t, err)
	require.Equal(t, "D35002 D35003 D35007", prog.String())
}

func TestSequenceLookupReturnsCopy(t *testing.T) {
	tables := testutil.Tables(t)
	code := descriptor.MustParse("D35006")

	first, err := tables.D.Lookup(code)
	require.NoError(t, err)
	for !first.Empty() {
		first.PopHead()
	}
	first.Append(descriptor.MustParse("B12101"))

	second, err := tables.D.Lookup(code)
	require.NoError(t, err)
	require.Equal(t, 7, second.Len())
	require.Equal(t, "B08021", second.Codes()[0].String())
}

func TestLookupNotFound(t *testing.T) {
	tables := testutil.Tables(t)

	vi, err := tables.B.Lookup(descriptor.MustParse("B48001"))
	require.Nil(t, vi)
	require.True(t, errors.Is(err, errs.ErrNotFound))

	prog, err := tables.D.Lookup(descriptor.MustParse("D48001"))
	require.Nil(t, prog)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestVarinfoRanges(t *testing.T) {
	tables := testutil.Tables(t)

	temp, err := tables.B.Lookup(descriptor.MustParse("B12101"))
	require.NoError(t, err)
	min, max := temp.Range()
	require.Equal(t, int64(0), min)
	require.Equal(t, int64(65534), max)
	require.Equal(t, int64(27315), temp.FromFloat(273.15))
	require.InDelta(t, 273.15, temp.ToFloat(27315), 1e-9)
	require.Equal(t, "273.15", temp.Format(27315))
	cmin, cmax := temp.CrexRange()
	require.Equal(t, int64(-99999), cmin)
	require.Equal(t, int64(99998), cmax)

	lat, err := tables.B.Lookup(descriptor.MustParse("B05001"))
	require.NoError(t, err)
	min, _ = lat.Range()
	require.Equal(t, int64(-9000000), min)
	require.NoError(t, lat.Check(lat.FromFloat(-90)))
	require.Error(t, lat.Check(lat.FromFloat(-90.00001)))

	// Class 31 has no missing value, so every bit pattern is usable.
	dpi, err := tables.B.Lookup(descriptor.MustParse("B31031"))
	require.NoError(t, err)
	require.False(t, dpi.CanBeMissing())
	_, max = dpi.Range()
	require.Equal(t, int64(1), max)

	name, err := tables.B.Lookup(descriptor.MustParse("B01019"))
	require.NoError(t, err)
	require.True(t, name.IsString)
	require.Equal(t, 14, name.Chars())

	code, err := tables.B.Lookup(descriptor.MustParse("B08021"))
	require.NoError(t, err)
	require.True(t, code.IsCodeTable())
	require.False(t, temp.IsCodeTable())
}

func TestDerive(t *testing.T) {
	tables := testutil.Tables(t)
	temp, err := tables.B.Lookup(descriptor.MustParse("B12101"))
	require.NoError(t, err)

	same, err := temp.Derive(temp.Bits, temp.Digits, temp.Scale, temp.Ref)
	require.NoError(t, err)
	require.Same(t, temp, same)

	wide, err := temp.Derive(20, 6, 3, 0)
	require.NoError(t, err)
	require.True(t, wide.Local)
	require.False(t, temp.Local)
	_, max := wide.Range()
	require.Equal(t, int64(1<<20-2), max)

	_, err = temp.Derive(70, 6, 3, 0)
	require.Error(t, err)
}

func TestParseRejectsBadTables(t *testing.T) {
	_, err := table.Parse("bad", []byte("elements:\n  - {code: D01001, bits: 8}\n"))
	require.Error(t, err)
	_, err = table.Parse("bad", []byte("elements:\n  - {code: B01001, bits: 0}\n"))
	require.Error(t, err)
	_, err = table.Parse("bad", []byte("elements:\n  - {code: B01015, unit: CCITTIA5, bits: 12}\n"))
	require.Error(t, err)
	_, err = table.Parse("bad", []byte("sequences:\n  B01001: [B01002]\n"))
	require.Error(t, err)
	_, err = table.Parse("bad", []byte("elements:\n  - {code: B01001, bits: 7}\n  - {code: B01001, bits: 7}\n"))
	require.Error(t, err)
}

func TestDigestIsStable(t *testing.T) {
	data := []byte("elements:\n  - {code: B01001, bits: 7}\n")
	a, err := table.Parse("a", data)
	require.NoError(t, err)
	b, err := table.Parse("b", data)
	require.NoError(t, err)
	require.Len(t, a.Digest, 64)
	require.Equal(t, a.Digest, b.Digest)
}

func TestDirProvider(t *testing.T) {
	p := table.DirProvider{Dir: testutil.TablesDir(t)}

	local, err := p.Load(table.ID{Centre: 98, MasterVersion: 13, LocalVersion: 1})
	require.NoError(t, err)
	_, err = local.B.Lookup(descriptor.MustParse("B48001"))
	require.NoError(t, err)

	wmo, err := p.Load(table.ID{MasterVersion: 13})
	require.NoError(t, err)
	require.Equal(t, "bufr_13.yaml", filepath.Base(wmo.Source))

	// Unknown versions fall back to the newest master table.
	newer, err := p.Load(table.ID{MasterVersion: 40})
	require.NoError(t, err)
	require.Equal(t, "bufr_13.yaml", filepath.Base(newer.Source))

	_, err = table.DirProvider{Dir: t.TempDir()}.Load(table.ID{MasterVersion: 13})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCacheLoadsOnce(t *testing.T) {
	tables := testutil.Tables(t)
	var loads atomic.Int32
	cache := table.NewCache(table.ProviderFunc(func(table.ID) (*table.Tables, error) {
		loads.Add(1)
		return tables, nil
	}), nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Get(table.ID{MasterVersion: 13})
			require.NoError(t, err)
			require.Same(t, tables, got)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), loads.Load())

	// Identities without a local table share the WMO entry.
	_, err := cache.Get(table.ID{Centre: 98, MasterVersion: 13})
	require.NoError(t, err)
	require.Equal(t, int32(1), loads.Load())
	require.Equal(t, 1, cache.Len())
}

func TestCacheDoesNotRememberFailures(t *testing.T) {
	tables := testutil.Tables(t)
	var fail atomic.Bool
	fail.Store(true)
	cache := table.NewCache(table.ProviderFunc(func(table.ID) (*table.Tables, error) {
		if fail.Load() {
			return nil, os.ErrNotExist
		}
		return tables, nil
	}), nil)

	_, err := cache.Get(table.ID{MasterVersion: 13})
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, 0, cache.Len())

	fail.Store(false)
	got, err := cache.Get(table.ID{MasterVersion: 13})
	require.NoError(t, err)
	require.Same(t, tables, got)
}
