package codec

import (
	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/table"
)

// opContext is the state set by operator descriptors. It lives for one
// subset (one compressed message) and survives replication.
type opContext struct {
	widthDelta  int // 2-01: Y-128
	scaleDelta  int // 2-02: Y-128
	increase    int // 2-07: Y
	stringChars int // 2-08: Y
	localWidth  int // 2-06: Y, next element only
	skip        int // 2-21: elements left without data

	// assoc is the stack of 2-04 widths in bits; the field width is their sum.
	assoc    []int
	assocSig int
}

func (c *opContext) assocWidth() int {
	w := 0
	for _, a := range c.assoc {
		w += a
	}
	return w
}

// apply returns the encoding parameters of info under the active operators.
// Strings only honor 2-08; code and flag tables and class 31 are left as is.
func (c *opContext) apply(info *table.Varinfo, digitsMode bool) (bits, digits, scale int, ref int64, err error) {
	bits, digits, scale, ref = info.Bits, info.Digits, info.Scale, info.Ref
	if info.IsString {
		if c.stringChars > 0 {
			bits, digits = c.stringChars*8, c.stringChars
		}
		return bits, digits, scale, ref, nil
	}
	if info.IsCodeTable() || info.Code.X() == 31 {
		return bits, digits, scale, ref, nil
	}
	if c.increase > 0 {
		scale += c.increase
		for i := 0; i < c.increase; i++ {
			ref *= 10
		}
		bits += (10*c.increase + 2) / 3
		digits += c.increase
	}
	if digitsMode {
		digits += c.widthDelta
	} else {
		bits += c.widthDelta
	}
	scale += c.scaleDelta
	if bits <= 0 || digits <= 0 {
		return 0, 0, 0, 0, errs.Consistencyf("operators leave %s with width %d bits, %d digits", info.Code, bits, digits)
	}
	return bits, digits, scale, ref, nil
}

func (in *interpreter) operator(code descriptor.Code) error {
	y := code.Y()
	switch code.X() {
	case 1:
		in.ctx.widthDelta = 0
		if y != 0 {
			in.ctx.widthDelta = y - 128
		}
	case 2:
		in.ctx.scaleDelta = 0
		if y != 0 {
			in.ctx.scaleDelta = y - 128
		}
	case 3:
		return errs.Unimplementedf("change reference values")
	case 4:
		if y == 0 {
			if n := len(in.ctx.assoc); n > 0 {
				in.ctx.assoc = in.ctx.assoc[:n-1]
			}
			if len(in.ctx.assoc) == 0 {
				in.ctx.assocSig = 0
			}
			return nil
		}
		in.ctx.assoc = append(in.ctx.assoc, y)
	case 5:
		if y == 0 {
			return in.malformed("character insertion of zero length")
		}
		return in.characters(code)
	case 6:
		if y == 0 {
			return in.malformed("local element of zero width")
		}
		in.ctx.localWidth = y
	case 7:
		in.ctx.increase = y
	case 8:
		in.ctx.stringChars = y
	case 21:
		in.ctx.skip = y
	case 22, 23, 24, 25, 32:
		if y != 0 {
			return errs.Unimplementedf("operator %s", code)
		}
		return in.startBitmap()
	case 35:
		if y != 0 {
			return errs.Unimplementedf("operator %s", code)
		}
		in.bm.cancel()
	case 36:
		if y != 0 {
			return errs.Unimplementedf("operator %s", code)
		}
		in.bm.saveNext = true
		return in.startBitmap()
	case 37:
		switch y {
		case 0:
			return in.reuseBitmap()
		case 255:
			in.bm.saved = nil
		default:
			return errs.Unimplementedf("operator %s", code)
		}
	default:
		return errs.Unimplementedf("operator %s", code)
	}
	return nil
}
