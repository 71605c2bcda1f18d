package gobufr

import (
	"fmt"
	"strings"
)

// FieldSet offers typed helpers on top of a subset. Keys are descriptor
// codes in any form ParseCode accepts; the first variable with that code
// is used.
type FieldSet struct {
	subset *Subset
}

// NewFieldSet returns a FieldSet wrapper for s.
func NewFieldSet(s *Subset) FieldSet {
	return FieldSet{subset: s}
}

// Map exposes the values by code, first occurrence wins. Missing values
// map to nil.
func (fs FieldSet) Map() map[string]any {
	out := map[string]any{}
	if fs.subset == nil {
		return out
	}
	for _, v := range fs.subset.Vars {
		key := v.Code().String()
		if _, dup := out[key]; !dup {
			out[key] = valueOf(v)
		}
	}
	return out
}

// Raw returns the variable for key.
func (fs FieldSet) Raw(key string) (*Variable, bool) {
	if fs.subset == nil {
		return nil, false
	}
	code, err := ParseCode(key)
	if err != nil {
		return nil, false
	}
	v := fs.subset.Find(code)
	return v, v != nil
}

func (fs FieldSet) get(key string) (*Variable, error) {
	v, ok := fs.Raw(key)
	if !ok {
		return nil, fmt.Errorf("field %q missing", key)
	}
	return v, nil
}

// Missing reports whether key is present but holds no value.
func (fs FieldSet) Missing(key string) bool {
	v, ok := fs.Raw(key)
	return ok && !v.IsSet()
}

// Float returns the field's physical value.
func (fs FieldSet) Float(key string) (float64, error) {
	v, err := fs.get(key)
	if err != nil {
		return 0, err
	}
	f, err := v.Float()
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

// Int returns the field rounded to an integer.
func (fs FieldSet) Int(key string) (int64, error) {
	v, err := fs.get(key)
	if err != nil {
		return 0, err
	}
	i, err := v.Int()
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return i, nil
}

// String returns text fields without padding and numbers formatted with
// their decimals.
func (fs FieldSet) String(key string) (string, error) {
	v, err := fs.get(key)
	if err != nil {
		return "", err
	}
	s, err := v.Text()
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return strings.TrimRight(s, "\x00"), nil
}

// Bool returns the field as a flag: any non-zero value is true.
func (fs FieldSet) Bool(key string) (bool, error) {
	i, err := fs.Int(key)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}
