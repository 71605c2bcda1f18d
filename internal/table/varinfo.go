package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/d21d3q/gobufr/internal/descriptor"
)

// Varinfo describes how values of one element descriptor are encoded.
//
// Numeric values are held as scaled integers: ival = round(value * 10^Scale).
// On the BUFR wire the stored field is ival - Ref in Bits bits; on the CREX
// wire ival is written as Digits decimal digits.
type Varinfo struct {
	Code     descriptor.Code
	Desc     string
	Unit     string
	Scale    int
	Ref      int64
	Bits     int
	Digits   int
	IsString bool
	// Local is set on entries synthesized by operators rather than read
	// from a table file.
	Local bool

	imin, imax int64
	cmin, cmax int64
}

// NewVarinfo validates the entry and computes its value ranges.
func NewVarinfo(code descriptor.Code, desc, unit string, scale int, ref int64, bits, digits int, isString bool) (*Varinfo, error) {
	v := &Varinfo{
		Code:     code,
		Desc:     desc,
		Unit:     unit,
		Scale:    scale,
		Ref:      ref,
		Bits:     bits,
		Digits:   digits,
		IsString: isString,
	}
	if err := v.compute(); err != nil {
		return nil, err
	}
	return v, nil
}

// NewLocal synthesizes an entry for operator-defined data. digits may be
// zero to derive it from bits.
func NewLocal(code descriptor.Code, desc string, bits, digits int, isString bool) (*Varinfo, error) {
	v := &Varinfo{Code: code, Desc: desc, Unit: "NUMERIC", Bits: bits, Digits: digits, IsString: isString, Local: true}
	if isString {
		v.Unit = "CCITTIA5"
	}
	if err := v.compute(); err != nil {
		return nil, err
	}
	return v, nil
}

// BitsForDigits returns the bit width able to hold every value of the
// given number of decimal digits.
func BitsForDigits(digits int) int {
	if digits > 18 {
		return 64
	}
	return len(strconv.FormatUint(uint64(pow10(digits)-1), 2))
}

func (v *Varinfo) compute() error {
	if v.Bits <= 0 {
		return fmt.Errorf("%s: bit width must be positive, got %d", v.Code, v.Bits)
	}
	if v.IsString {
		if v.Bits%8 != 0 {
			return fmt.Errorf("%s: string width %d is not a whole number of bytes", v.Code, v.Bits)
		}
		if v.Digits <= 0 {
			v.Digits = v.Bits / 8
		}
		return nil
	}
	if v.Bits > 62 {
		return fmt.Errorf("%s: bit width %d too large", v.Code, v.Bits)
	}
	if v.Digits <= 0 {
		v.Digits = digitsForBits(v.Bits)
	}
	if v.Digits > 18 {
		return fmt.Errorf("%s: digit width %d too large", v.Code, v.Digits)
	}
	maxRaw := int64(1)<<uint(v.Bits) - 1
	if v.CanBeMissing() {
		maxRaw--
	}
	v.imin = v.Ref
	v.imax = v.Ref + maxRaw
	p := pow10(v.Digits)
	v.cmin = -(p - 1)
	v.cmax = p - 2
	return nil
}

func digitsForBits(bits int) int {
	return len(fmt.Sprint(uint64(1)<<uint(bits) - 1))
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

// CanBeMissing reports whether the all-ones (all-nines) pattern means
// "missing" for this element. Class 31 holds replication factors and data
// present indicators, which use every bit pattern.
func (v *Varinfo) CanBeMissing() bool {
	return v.Code.F() != descriptor.Element || v.Code.X() != 31
}

// IsCodeTable reports whether values are code or flag table entries.
func (v *Varinfo) IsCodeTable() bool {
	u := strings.ToUpper(v.Unit)
	return strings.Contains(u, "CODE TABLE") || strings.Contains(u, "FLAG TABLE")
}

// Range returns the valid scaled integer range on the BUFR wire.
func (v *Varinfo) Range() (min, max int64) { return v.imin, v.imax }

// CrexRange returns the valid scaled integer range on the CREX wire.
func (v *Varinfo) CrexRange() (min, max int64) { return v.cmin, v.cmax }

// Chars returns the width in characters of a string element.
func (v *Varinfo) Chars() int { return v.Bits / 8 }

// ToFloat converts a scaled integer to its physical value.
func (v *Varinfo) ToFloat(ival int64) float64 {
	if v.Scale == 0 {
		return float64(ival)
	}
	return float64(ival) / math.Pow10(v.Scale)
}

// FromFloat converts a physical value to the scaled integer domain.
func (v *Varinfo) FromFloat(f float64) int64 {
	return int64(math.Round(f * math.Pow10(v.Scale)))
}

// Check reports whether ival fits the BUFR range.
func (v *Varinfo) Check(ival int64) error {
	if ival < v.imin || ival > v.imax {
		return fmt.Errorf("value %s out of range [%s, %s] for %s",
			v.Format(ival), v.Format(v.imin), v.Format(v.imax), v.Code)
	}
	return nil
}

// Format renders a scaled integer with the entry's decimals.
func (v *Varinfo) Format(ival int64) string {
	if v.Scale <= 0 {
		return fmt.Sprint(int64(v.ToFloat(ival)))
	}
	return fmt.Sprintf("%.*f", v.Scale, v.ToFloat(ival))
}

// Derive returns a local copy with altered encoding parameters.
func (v *Varinfo) Derive(bits, digits, scale int, ref int64) (*Varinfo, error) {
	if bits == v.Bits && digits == v.Digits && scale == v.Scale && ref == v.Ref {
		return v, nil
	}
	d := &Varinfo{
		Code:     v.Code,
		Desc:     v.Desc,
		Unit:     v.Unit,
		Scale:    scale,
		Ref:      ref,
		Bits:     bits,
		Digits:   digits,
		IsString: v.IsString,
		Local:    true,
	}
	if err := d.compute(); err != nil {
		return nil, err
	}
	return d, nil
}

func (v *Varinfo) String() string {
	if v.IsString {
		return fmt.Sprintf("%s %q [%d chars]", v.Code, v.Desc, v.Chars())
	}
	return fmt.Sprintf("%s %q [%s] scale=%d ref=%d bits=%d digits=%d",
		v.Code, v.Desc, v.Unit, v.Scale, v.Ref, v.Bits, v.Digits)
}
