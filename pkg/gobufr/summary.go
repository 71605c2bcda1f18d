package gobufr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Summary is a format independent view of a decoded message, meant for
// rendering.
type Summary struct {
	Source           string   `json:"source,omitempty" yaml:"source,omitempty"`
	Offset           int      `json:"offset" yaml:"offset"`
	Format           string   `json:"format" yaml:"format"`
	Edition          int      `json:"edition" yaml:"edition"`
	Centre           int      `json:"centre" yaml:"centre"`
	Subcentre        int      `json:"subcentre" yaml:"subcentre"`
	Category         int      `json:"category" yaml:"category"`
	Subcategory      int      `json:"subcategory" yaml:"subcategory"`
	LocalSubcategory int      `json:"local_subcategory" yaml:"local_subcategory"`
	Tables           string   `json:"tables" yaml:"tables"`
	Time             string   `json:"time" yaml:"time"`
	Observed         bool     `json:"observed" yaml:"observed"`
	Compressed       bool     `json:"compressed" yaml:"compressed"`
	Descriptors      []string `json:"descriptors" yaml:"descriptors"`
	Subsets          [][]Item `json:"subsets" yaml:"subsets"`
}

// Item is one variable of a subset. Value is nil when missing.
type Item struct {
	Code  string `json:"code" yaml:"code"`
	Name  string `json:"name" yaml:"name"`
	Unit  string `json:"unit" yaml:"unit"`
	Value any    `json:"value" yaml:"value"`
	Attrs []Item `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("gobufr: CBOR encoder initialization failed: " + err.Error())
	}
}

// Summarize builds the summary of m. source and offset locate it in its
// input stream.
func Summarize(m *Message, source string, offset int) Summary {
	s := Summary{
		Source:           source,
		Offset:           offset,
		Format:           m.Format.String(),
		Edition:          m.Edition,
		Centre:           m.Centre,
		Subcentre:        m.Subcentre,
		Category:         m.Category,
		Subcategory:      m.Subcategory,
		LocalSubcategory: m.LocalSubcategory,
		Tables:           m.TableID().String(),
		Time:             m.Time().Format("2006-01-02T15:04:05Z"),
		Observed:         m.Observed,
		Compressed:       m.Compressed,
		Descriptors:      make([]string, len(m.Descriptors)),
		Subsets:          make([][]Item, len(m.Subsets)),
	}
	for i, d := range m.Descriptors {
		s.Descriptors[i] = d.String()
	}
	for i, sub := range m.Subsets {
		items := make([]Item, len(sub.Vars))
		for j, v := range sub.Vars {
			items[j] = itemOf(v)
		}
		s.Subsets[i] = items
	}
	return s
}

func itemOf(v *Variable) Item {
	it := Item{Code: v.Code().String(), Name: v.Info.Desc, Unit: v.Info.Unit, Value: valueOf(v)}
	for _, a := range v.Attrs() {
		it.Attrs = append(it.Attrs, itemOf(a))
	}
	return it
}

// valueOf returns nil, a string, an int64 for unscaled numbers or a float64.
func valueOf(v *Variable) any {
	if !v.IsSet() {
		return nil
	}
	if v.Info.IsString {
		text, _ := v.Text()
		return strings.TrimRight(text, "\x00")
	}
	if v.Info.Scale <= 0 {
		n, _ := v.Int()
		return n
	}
	f, _ := v.Float()
	return f
}

// JSON renders the summary as indented JSON.
func (s Summary) JSON() ([]byte, error) { return json.MarshalIndent(s, "", "  ") }

// YAML renders the summary as a YAML document.
func (s Summary) YAML() ([]byte, error) { return yaml.Marshal(s) }

// CBOR renders the summary with core deterministic encoding.
func (s Summary) CBOR() ([]byte, error) { return cborMode.Marshal(s) }

// Render renders the summary as "json", "yaml" or "cbor".
func (s Summary) Render(format string) ([]byte, error) {
	switch format {
	case "json":
		return s.JSON()
	case "yaml":
		return s.YAML()
	case "cbor":
		return s.CBOR()
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// String renders a human-readable representation of the summary.
func (s Summary) String() string {
	data, err := s.JSON()
	if err != nil {
		return fmt.Sprintf("%s %s:%d subsets:%d (marshal error: %v)", s.Format, s.Source, s.Offset, len(s.Subsets), err)
	}
	return string(data)
}
