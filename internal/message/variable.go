// Package message holds the in-memory form of decoded observations:
// variables, subsets and the message header.
package message

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/table"
)

// ErrUnset is returned when reading the value of an unset variable.
var ErrUnset = errors.New("value is unset")

// Variable is one value of an element descriptor plus its attributes.
type Variable struct {
	Info *table.Varinfo

	ival  int64
	sval  string
	set   bool
	attrs []*Variable
}

// NewVariable returns an unset variable for info.
func NewVariable(info *table.Varinfo) *Variable {
	return &Variable{Info: info}
}

// Code returns the descriptor of the variable.
func (v *Variable) Code() descriptor.Code { return v.Info.Code }

// IsSet reports whether the variable holds a value.
func (v *Variable) IsSet() bool { return v.set }

// Unset clears the value, keeping attributes.
func (v *Variable) Unset() {
	v.set, v.ival, v.sval = false, 0, ""
}

// SetScaled stores a scaled integer (value * 10^scale).
func (v *Variable) SetScaled(ival int64) error {
	if v.Info.IsString {
		return errs.Consistencyf("%s is a string element", v.Code())
	}
	if err := v.Info.Check(ival); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConsistency, err)
	}
	v.ival, v.set = ival, true
	return nil
}

// SetScaledUnchecked stores a scaled integer without the range check.
// Decoders use it to keep whatever the wire carried.
func (v *Variable) SetScaledUnchecked(ival int64) {
	v.ival, v.sval, v.set = ival, "", true
}

// SetStringUnchecked stores text without the width check.
func (v *Variable) SetStringUnchecked(s string) {
	v.ival, v.sval, v.set = 0, s, true
}

// SetFloat stores a physical value, rounded to the element's scale.
func (v *Variable) SetFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errs.Consistencyf("%s: cannot store %v", v.Code(), f)
	}
	return v.SetScaled(v.Info.FromFloat(f))
}

// SetInt stores an integer physical value.
func (v *Variable) SetInt(i int64) error {
	return v.SetFloat(float64(i))
}

// SetString stores text. Trailing NUL bytes count as padding.
func (v *Variable) SetString(s string) error {
	if !v.Info.IsString {
		return errs.Consistencyf("%s is not a string element", v.Code())
	}
	if n := len(strings.TrimRight(s, "\x00")); n > v.Info.Chars() {
		return errs.Consistencyf("%s: %d characters do not fit in %d", v.Code(), n, v.Info.Chars())
	}
	v.sval, v.set = s, true
	return nil
}

// Scaled returns the value as a scaled integer.
func (v *Variable) Scaled() (int64, error) {
	if !v.set {
		return 0, fmt.Errorf("%s: %w", v.Code(), ErrUnset)
	}
	if v.Info.IsString {
		return 0, fmt.Errorf("%s is a string element", v.Code())
	}
	return v.ival, nil
}

// Float returns the physical value.
func (v *Variable) Float() (float64, error) {
	ival, err := v.Scaled()
	if err != nil {
		return 0, err
	}
	return v.Info.ToFloat(ival), nil
}

// Int returns the physical value rounded to an integer.
func (v *Variable) Int() (int64, error) {
	f, err := v.Float()
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

// Text returns string values verbatim and numbers formatted with the
// element's decimals.
func (v *Variable) Text() (string, error) {
	if !v.set {
		return "", fmt.Errorf("%s: %w", v.Code(), ErrUnset)
	}
	if v.Info.IsString {
		return v.sval, nil
	}
	return v.Info.Format(v.ival), nil
}

// Attrs returns the attributes in insertion order.
func (v *Variable) Attrs() []*Variable { return v.attrs }

// Attr returns the attribute with the given code, or nil.
func (v *Variable) Attr(code descriptor.Code) *Variable {
	for _, a := range v.attrs {
		if a.Code() == code {
			return a
		}
	}
	return nil
}

// SetAttr attaches a, replacing an existing attribute with the same code.
func (v *Variable) SetAttr(a *Variable) error {
	if a.Code().F() != descriptor.Element || a.Code().X() != 33 {
		return errs.Consistencyf("%s cannot be an attribute: only class 33 qualifies", a.Code())
	}
	for i, old := range v.attrs {
		if old.Code() == a.Code() {
			v.attrs[i] = a
			return nil
		}
	}
	v.attrs = append(v.attrs, a)
	return nil
}

// Clone returns a deep copy.
func (v *Variable) Clone() *Variable {
	c := *v
	c.attrs = nil
	for _, a := range v.attrs {
		c.attrs = append(c.attrs, a.Clone())
	}
	return &c
}

// Equal compares code, value and attributes. Numbers are compared at the
// coarser precision of the two entries; trailing NULs in text are padding.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.Code() != o.Code() || v.set != o.set || v.Info.IsString != o.Info.IsString {
		return false
	}
	if v.set {
		if v.Info.IsString {
			if strings.TrimRight(v.sval, "\x00") != strings.TrimRight(o.sval, "\x00") {
				return false
			}
		} else {
			scale := v.Info.Scale
			if o.Info.Scale < scale {
				scale = o.Info.Scale
			}
			tolerance := 0.5 * math.Pow10(-scale)
			if math.Abs(v.Info.ToFloat(v.ival)-o.Info.ToFloat(o.ival)) >= tolerance {
				return false
			}
		}
	}
	if len(v.attrs) != len(o.attrs) {
		return false
	}
	for i := range v.attrs {
		if !v.attrs[i].Equal(o.attrs[i]) {
			return false
		}
	}
	return true
}

func (v *Variable) String() string {
	var b strings.Builder
	b.WriteString(v.Code().String())
	b.WriteByte(' ')
	if text, err := v.Text(); err == nil {
		if v.Info.IsString {
			fmt.Fprintf(&b, "%q", text)
		} else {
			b.WriteString(text)
		}
	} else {
		b.WriteString("(unset)")
	}
	for _, a := range v.attrs {
		fmt.Fprintf(&b, " [%s]", a)
	}
	return b.String()
}
