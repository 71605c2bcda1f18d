package codec

import (
	"fmt"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/message"
)

// bitmapState tracks data present bitmaps (2-22..2-37). A bitmap selects,
// counting back from the operator that introduced it, the data variables
// that the following class 33 values qualify.
type bitmapState struct {
	// pending is set between the bitmap operator and the first element
	// that is not a 0-31-031 entry.
	pending  bool
	saveNext bool
	anchor   []int
	entries  [][]bool // per subset, true where data is present

	active  bool
	targets [][]*message.Variable
	pos     int
	first   descriptor.Code

	saved [][]*message.Variable
}

func (b *bitmapState) collect(vars []*message.Variable) {
	for i, v := range vars {
		ival, err := v.Scaled()
		b.entries[i] = append(b.entries[i], err == nil && ival == 0)
	}
}

func (b *bitmapState) activate(targets [][]*message.Variable) {
	b.active = true
	b.targets = targets
	b.pos = -1
	b.first = 0
}

func (b *bitmapState) cancel() {
	b.pending, b.active, b.saveNext = false, false, false
	b.targets = nil
}

// next returns the variables the next attribute with code attaches to. The
// group advances to the next present entry each time its first attribute
// code comes round again.
func (b *bitmapState) next(code descriptor.Code) ([]*message.Variable, error) {
	if b.first == 0 || code == b.first {
		if b.first == 0 {
			b.first = code
		}
		b.pos++
	}
	out := make([]*message.Variable, len(b.targets))
	for i, t := range b.targets {
		if b.pos >= len(t) {
			return nil, fmt.Errorf("%s has no bitmap entry left: %d are marked present", code, len(t))
		}
		out[i] = t[b.pos]
	}
	return out, nil
}

func (in *interpreter) startBitmap() error {
	if in.bm.pending {
		return nil
	}
	in.bm.pending = true
	in.bm.active = false
	in.bm.anchor = append(in.bm.anchor[:0], in.cursor...)
	in.bm.entries = make([][]bool, len(in.subsets))
	return nil
}

func (in *interpreter) finishBitmap() error {
	bm := &in.bm
	bm.pending = false
	targets := make([][]*message.Variable, len(in.subsets))
	for i, s := range in.subsets {
		var candidates []*message.Variable
		for _, v := range s.Vars[:bm.anchor[i]] {
			if v.Code().F() == descriptor.Element && v.Code().X() != 31 {
				candidates = append(candidates, v)
			}
		}
		n := len(bm.entries[i])
		if n == 0 {
			return in.malformed("bitmap has no 0-31-031 entries")
		}
		if n > len(candidates) {
			return in.malformed("bitmap of %d entries covers only %d variables", n, len(candidates))
		}
		base := len(candidates) - n
		for j, present := range bm.entries[i] {
			if present {
				targets[i] = append(targets[i], candidates[base+j])
			}
		}
		if i > 0 && len(targets[i]) != len(targets[0]) {
			return in.malformed("subset %d marks %d entries present, subset 0 marks %d", i, len(targets[i]), len(targets[0]))
		}
	}
	bm.activate(targets)
	if bm.saveNext {
		bm.saved = targets
		bm.saveNext = false
	}
	return nil
}

func (in *interpreter) reuseBitmap() error {
	if in.bm.saved == nil {
		return in.malformed("no bitmap defined for reuse")
	}
	in.bm.pending = false
	in.bm.activate(in.bm.saved)
	return nil
}
