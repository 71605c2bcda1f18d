package codec

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/opcode"
	"github.com/d21d3q/gobufr/internal/table"
)

var (
	codeAssocSignificance = descriptor.New(descriptor.Element, 31, 21)
	codeBitmapEntry       = descriptor.New(descriptor.Element, 31, 31)
)

type derivedKey struct {
	code                descriptor.Code
	bits, digits, scale int
	ref                 int64
	local               bool
}

// interpreter walks a descriptor program for one subset (plain messages)
// or all subsets at once (compressed messages). Exactly one of r and w is
// set.
type interpreter struct {
	tables *table.Tables
	limits Limits
	log    logrus.FieldLogger
	digits bool

	r Reader
	w Writer

	subsets []*message.Subset
	// cursor is the index of the next variable to encode, per subset. While
	// decoding it tracks len(Vars).
	cursor []int
	// last is the most recent data variable per subset, the target of
	// class 33 attributes when no bitmap is active.
	last []*message.Variable

	ctx     opContext
	bm      bitmapState
	derived map[derivedKey]*table.Varinfo
}

func newInterpreter(t *table.Tables, subsets []*message.Subset, opts Options) *interpreter {
	return &interpreter{
		tables:  t,
		limits:  opts.Limits.resolved(),
		log:     opts.Logger(),
		digits:  opts.Digits,
		subsets: subsets,
		cursor:  make([]int, len(subsets)),
		last:    make([]*message.Variable, len(subsets)),
		derived: make(map[derivedKey]*table.Varinfo),
	}
}

func (in *interpreter) decoding() bool { return in.r != nil }

func (in *interpreter) offset() int {
	if in.r != nil {
		return in.r.Offset()
	}
	return in.w.Offset()
}

// malformed reports a structural problem: a parse error when the structure
// came off the wire, a consistency error when the caller built it.
func (in *interpreter) malformed(format string, args ...any) error {
	if in.r != nil {
		return errs.Parsef(in.r.Source(), in.r.Offset(), format, args...)
	}
	return errs.Consistencyf(format, args...)
}

func (in *interpreter) run(prog *opcode.Program) error {
	if len(in.subsets) == 0 {
		return nil
	}
	for {
		code, ok := prog.PopHead()
		if !ok {
			break
		}
		var err error
		switch code.F() {
		case descriptor.Element:
			_, err = in.element(code)
		case descriptor.Replication:
			err = in.replicate(code, prog)
		case descriptor.Operator:
			err = in.operator(code)
		case descriptor.Sequence:
			err = in.sequence(code, prog)
		}
		if err != nil {
			return fmt.Errorf("%s at byte %d: %w", code, in.offset(), err)
		}
	}
	if in.bm.pending {
		return in.malformed("bitmap is not followed by any data")
	}
	return nil
}

func (in *interpreter) sequence(code descriptor.Code, prog *opcode.Program) error {
	exp, err := in.tables.D.Lookup(code)
	if err != nil {
		return err
	}
	if prog.Len()+exp.Len() > in.limits.MaxProgram {
		return errs.Limitf("expansion exceeds %d descriptors", in.limits.MaxProgram)
	}
	prog.PrependCopy(exp)
	return nil
}

func (in *interpreter) replicate(code descriptor.Code, prog *opcode.Program) error {
	span := code.X()
	count := code.Y()
	if count == 0 {
		cc, ok := prog.PopHead()
		if !ok {
			return in.malformed("delayed replication without a count descriptor")
		}
		if cc.F() != descriptor.Element || cc.X() != 31 {
			return in.malformed("delayed replication count is %s, not a class 31 element", cc)
		}
		if cc.Y() == 11 || cc.Y() == 12 {
			return errs.Unimplementedf("delayed repetition %s", cc)
		}
		n, err := in.count(cc)
		if err != nil {
			return err
		}
		count = n
	}
	body := prog.PopN(span)
	if body.Len() < span {
		return in.malformed("replication of %d descriptors, only %d left", span, body.Len())
	}
	if count > 0 && prog.Len()+count*body.Len() > in.limits.MaxProgram {
		return errs.Limitf("replicating %d descriptors %d times exceeds %d", span, count, in.limits.MaxProgram)
	}
	for i := 0; i < count; i++ {
		prog.PrependCopy(body)
	}
	return nil
}

// count transfers a delayed replication factor and returns its value,
// which must agree across subsets.
func (in *interpreter) count(code descriptor.Code) (int, error) {
	vars, err := in.element(code)
	if err != nil {
		return 0, err
	}
	n := -1
	for i, v := range vars {
		ival, err := v.Scaled()
		if err != nil {
			return 0, in.malformed("replication factor %s is unset", code)
		}
		if ival < 0 {
			return 0, in.malformed("negative replication factor %d", ival)
		}
		if n >= 0 && int(ival) != n {
			return 0, in.malformed("subset %d repeats %d times, subset 0 repeats %d", i, ival, n)
		}
		n = int(ival)
	}
	return n, nil
}

// resolve finds the Varinfo for an element, honoring 2-06 local widths and
// the active operators.
func (in *interpreter) resolve(code descriptor.Code) (*table.Varinfo, error) {
	if w := in.ctx.localWidth; w > 0 {
		in.ctx.localWidth = 0
		if info, err := in.tables.B.Lookup(code); err == nil && info.Bits == w {
			return info, nil
		}
		in.log.WithFields(logrus.Fields{"code": code.String(), "bits": w}).Debug("local element width")
		return in.local(code, "LOCAL ELEMENT", w, 0, false)
	}
	info, err := in.tables.B.Lookup(code)
	if err != nil {
		return nil, err
	}
	bits, digits, scale, ref, err := in.ctx.apply(info, in.digits)
	if err != nil {
		return nil, err
	}
	key := derivedKey{code: code, bits: bits, digits: digits, scale: scale, ref: ref}
	if d, ok := in.derived[key]; ok {
		return d, nil
	}
	d, err := info.Derive(bits, digits, scale, ref)
	if err != nil {
		return nil, errs.Consistencyf("%v", err)
	}
	in.derived[key] = d
	return d, nil
}

// local returns the cached synthesized entry for an operator-defined
// field. Widths come off the wire, so a rejected one is a malformed message.
func (in *interpreter) local(code descriptor.Code, desc string, bits, digits int, isString bool) (*table.Varinfo, error) {
	key := derivedKey{code: code, bits: bits, digits: digits, local: true}
	if info, ok := in.derived[key]; ok {
		return info, nil
	}
	info, err := table.NewLocal(code, desc, bits, digits, isString)
	if err != nil {
		return nil, in.malformed("%v", err)
	}
	in.derived[key] = info
	return info, nil
}

// take consumes the next variable of every subset, which must carry code.
func (in *interpreter) take(code descriptor.Code) ([]*message.Variable, error) {
	vars := make([]*message.Variable, len(in.subsets))
	for i, s := range in.subsets {
		c := in.cursor[i]
		if c >= len(s.Vars) {
			return nil, errs.Consistencyf("subset %d ends before %s", i, code)
		}
		if got := s.Vars[c].Code(); got != code {
			return nil, errs.Consistencyf("subset %d variable %d is %s, expected %s", i, c, got, code)
		}
		vars[i] = s.Vars[c]
		in.cursor[i]++
	}
	return vars, nil
}

// place appends decoded variables to their subsets.
func (in *interpreter) place(vars []*message.Variable) error {
	if len(vars) != len(in.subsets) {
		return fmt.Errorf("reader returned %d values for %d subsets", len(vars), len(in.subsets))
	}
	for i, s := range in.subsets {
		if len(s.Vars) >= in.limits.MaxVariables {
			return errs.Limitf("subset %d exceeds %d variables", i, in.limits.MaxVariables)
		}
		s.Append(vars[i])
		in.cursor[i] = len(s.Vars)
	}
	return nil
}

// transfer moves one value per subset across the wire in the current
// direction.
func (in *interpreter) transfer(info *table.Varinfo, vars []*message.Variable) ([]*message.Variable, error) {
	if in.decoding() {
		return in.r.Read(info)
	}
	return vars, in.w.Write(info, vars)
}

// element handles one element descriptor and returns the variables it
// produced or consumed, one per subset.
func (in *interpreter) element(code descriptor.Code) ([]*message.Variable, error) {
	info, err := in.resolve(code)
	if err != nil {
		return nil, err
	}
	class := code.X()

	if in.ctx.skip > 0 {
		in.ctx.skip--
		if class > 9 && class != 31 {
			return in.absent(info)
		}
	}
	if class != 31 && in.bm.pending {
		if err := in.finishBitmap(); err != nil {
			return nil, err
		}
	}
	if class == 33 {
		if vars, ok, err := in.attribute(info); ok || err != nil {
			return vars, err
		}
	}

	var vars []*message.Variable
	if !in.decoding() {
		if vars, err = in.take(code); err != nil {
			return nil, err
		}
	}
	assoc, err := in.associated(class, vars)
	if err != nil {
		return nil, err
	}
	if vars, err = in.transfer(info, vars); err != nil {
		return nil, err
	}
	if in.decoding() {
		if err := in.place(vars); err != nil {
			return nil, err
		}
		if assoc != nil {
			for i, v := range vars {
				if err := v.SetAttr(assoc[i]); err != nil {
					return nil, err
				}
			}
		}
	}
	if class != 31 && class != 33 {
		copy(in.last, vars)
	}
	switch {
	case code == codeAssocSignificance:
		in.ctx.assocSig = -1
		if ival, err := vars[0].Scaled(); err == nil {
			in.ctx.assocSig = int(ival)
		}
	case code == codeBitmapEntry && in.bm.pending:
		in.bm.collect(vars)
	}
	return vars, nil
}

// absent handles an element under 2-21: nothing is on the wire.
func (in *interpreter) absent(info *table.Varinfo) ([]*message.Variable, error) {
	if !in.decoding() {
		return in.take(info.Code)
	}
	vars := make([]*message.Variable, len(in.subsets))
	for i := range vars {
		vars[i] = message.NewVariable(info)
	}
	return vars, in.place(vars)
}

// associated transfers the 2-04 associated field preceding a data element.
// It returns the attribute variables to attach when decoding, or nil.
func (in *interpreter) associated(class int, vars []*message.Variable) ([]*message.Variable, error) {
	width := in.ctx.assocWidth()
	if width == 0 || class == 31 || class == 33 {
		return nil, nil
	}
	code, known := assocAttribute(in.ctx.assocSig)
	if !known {
		in.log.WithField("significance", in.ctx.assocSig).Debug("dropping associated field")
	}
	// In CREX the 2-04 operand counts digits.
	bits, digits := width, 0
	if in.digits {
		bits, digits = table.BitsForDigits(width), width
	}
	info, err := in.local(code, "ASSOCIATED FIELD", bits, digits, false)
	if err != nil {
		return nil, err
	}
	var vals []*message.Variable
	if !in.decoding() {
		vals = make([]*message.Variable, len(vars))
		for i, v := range vars {
			if a := v.Attr(code); a != nil && known {
				vals[i] = a
			} else {
				vals[i] = message.NewVariable(info)
			}
		}
	}
	vals, err = in.transfer(info, vals)
	if err != nil || !known || !in.decoding() {
		return nil, err
	}
	return vals, nil
}

// assocAttribute maps an associated field significance (code table
// 0-31-021) to the class 33 code that holds it.
func assocAttribute(sig int) (descriptor.Code, bool) {
	switch sig {
	case 1:
		return descriptor.New(descriptor.Element, 33, 2), true
	case 2:
		return descriptor.New(descriptor.Element, 33, 3), true
	case 21:
		return descriptor.New(descriptor.Element, 33, 7), true
	default:
		return descriptor.New(descriptor.Element, 33, 0), false
	}
}

// attribute transfers a class 33 element as an attribute of the variable it
// qualifies. ok is false when there is nothing to attach to, in which case
// the caller treats it as plain data.
func (in *interpreter) attribute(info *table.Varinfo) (vars []*message.Variable, ok bool, err error) {
	targets := in.last
	if in.bm.active {
		if targets, err = in.bm.next(info.Code); err != nil {
			return nil, true, in.malformed("%v", err)
		}
	}
	if targets[0] == nil {
		return nil, false, nil
	}
	if !in.decoding() {
		vars = make([]*message.Variable, len(targets))
		for i, t := range targets {
			if a := t.Attr(info.Code); a != nil {
				vars[i] = a
			} else {
				vars[i] = message.NewVariable(info)
			}
		}
		return vars, true, in.w.Write(info, vars)
	}
	if vars, err = in.r.Read(info); err != nil {
		return nil, true, err
	}
	for i, t := range targets {
		if err := t.SetAttr(vars[i]); err != nil {
			return nil, true, err
		}
	}
	return vars, true, nil
}

// characters handles 2-05-Y: Y characters of text carried in the data
// section, stored as a variable coded with the operator itself.
func (in *interpreter) characters(code descriptor.Code) error {
	info, err := in.local(code, "CHARACTERS", code.Y()*8, 0, true)
	if err != nil {
		return err
	}
	var vars []*message.Variable
	if !in.decoding() {
		if vars, err = in.take(code); err != nil {
			return err
		}
	}
	if vars, err = in.transfer(info, vars); err != nil {
		return err
	}
	if in.decoding() {
		return in.place(vars)
	}
	return nil
}
