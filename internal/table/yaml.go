package table

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
)

// fileFormat is the on-disk layout of a table file:
//
//	elements:
//	  - {code: B12101, desc: TEMPERATURE/AIR TEMPERATURE, unit: K, scale: 2, bits: 16, digits: 5}
//	sequences:
//	  D35006: [B08021, B04004, B08021, B04004, B35000, B01003, B35011]
type fileFormat struct {
	Elements  []fileElement                `yaml:"elements"`
	Sequences map[string][]descriptor.Code `yaml:"sequences"`
}

type fileElement struct {
	Code   descriptor.Code `yaml:"code"`
	Desc   string          `yaml:"desc"`
	Unit   string          `yaml:"unit"`
	Scale  int             `yaml:"scale"`
	Ref    int64           `yaml:"ref"`
	Bits   int             `yaml:"bits"`
	Digits int             `yaml:"digits"`
	String bool            `yaml:"string"`
}

// Parse reads a YAML table file. src names the data in errors.
func Parse(src string, data []byte) (*Tables, error) {
	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	infos := make([]*Varinfo, 0, len(ff.Elements))
	for _, e := range ff.Elements {
		isString := e.String || e.Unit == "CCITTIA5" || e.Unit == "CCITT IA5"
		vi, err := NewVarinfo(e.Code, e.Desc, e.Unit, e.Scale, e.Ref, e.Bits, e.Digits, isString)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		infos = append(infos, vi)
	}
	b, err := NewElementTable(infos...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	seqs := make(map[descriptor.Code][]descriptor.Code, len(ff.Sequences))
	for key, exp := range ff.Sequences {
		code, err := descriptor.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("%s: sequence key: %w", src, err)
		}
		seqs[code] = exp
	}
	d, err := NewSequenceTable(seqs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	sum := blake3.Sum256(data)
	return &Tables{B: b, D: d, Source: src, Digest: hex.EncodeToString(sum[:])}, nil
}

// LoadFile reads and parses one table file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// DirProvider resolves identities to files in a directory:
//
//	bufr_<centre>_<masterversion>_<localversion>.yaml  (local tables)
//	bufr_<masterversion>.yaml                          (WMO tables)
//
// When neither exists the newest WMO version in the directory is used.
type DirProvider struct {
	Dir string
	Log logrus.FieldLogger
}

var masterFile = regexp.MustCompile(`^bufr_(\d+)\.yaml$`)

// Load implements Provider.
func (p DirProvider) Load(id ID) (*Tables, error) {
	candidates := []string{}
	if id.LocalVersion != 0 {
		candidates = append(candidates, fmt.Sprintf("bufr_%d_%d_%d.yaml", id.Centre, id.MasterVersion, id.LocalVersion))
	}
	candidates = append(candidates, fmt.Sprintf("bufr_%d.yaml", id.MasterVersion))
	for _, name := range candidates {
		path := filepath.Join(p.Dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return p.load(path, id)
	}
	newest, err := p.newest()
	if err != nil {
		return nil, err
	}
	if newest == "" {
		return nil, errs.NotFoundf("no table file for %s in %s", id, p.Dir)
	}
	if p.Log != nil {
		p.Log.WithFields(logrus.Fields{"tables": id.String(), "file": newest}).Warn("falling back to newest master table")
	}
	return p.load(newest, id)
}

func (p DirProvider) load(path string, id ID) (*Tables, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return t, nil
}

func (p DirProvider) newest() (string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return "", fmt.Errorf("read table directory: %w", err)
	}
	best, bestVersion := "", -1
	for _, e := range entries {
		m := masterFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > bestVersion {
			best, bestVersion = filepath.Join(p.Dir, e.Name()), v
		}
	}
	return best, nil
}
