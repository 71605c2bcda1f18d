package testutil

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/d21d3q/gobufr/internal/table"
)

// LoadJSON loads a JSON fixture from testdata relative to the repo root.
func LoadJSON(t *testing.T, rel string, v any) {
	t.Helper()
	data := readTestdata(t, rel)
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", rel, err)
	}
}

// LoadHex decodes a hex fixture. Whitespace and '|' separators are ignored
// so fixtures can be laid out one section per line.
func LoadHex(t *testing.T, rel string) []byte {
	t.Helper()
	data := readTestdata(t, rel)
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '|':
			return -1
		}
		return r
	}, string(data))
	out, err := hex.DecodeString(clean)
	if err != nil {
		t.Fatalf("hex decode %s: %v", rel, err)
	}
	return out
}

// TablesDir returns the directory holding the fixture tables.
func TablesDir(t *testing.T) string {
	t.Helper()
	path := locate(t, filepath.Join("tables", "bufr_13.yaml"))
	return filepath.Dir(path)
}

// Tables loads the WMO fixture tables.
func Tables(t *testing.T) *table.Tables {
	t.Helper()
	tables, err := table.LoadFile(locate(t, filepath.Join("tables", "bufr_13.yaml")))
	if err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return tables
}

// Cache returns a private table cache serving the fixture tables for
// every identity.
func Cache(t *testing.T) *table.Cache {
	t.Helper()
	return table.NewCache(table.Fixed(Tables(t)), nil)
}

func readTestdata(t *testing.T, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(locate(t, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return data
}

func locate(t *testing.T, rel string) string {
	t.Helper()
	candidates := []string{
		filepath.Join("testdata", rel),
		filepath.Join("..", "testdata", rel),
		filepath.Join("..", "..", "testdata", rel),
		filepath.Join("..", "..", "..", "testdata", rel),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Fatalf("unable to locate testdata file %s", rel)
	return ""
}
