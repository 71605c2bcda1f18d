// Package codec interprets data descriptor programs. It is shared by the
// BUFR and CREX drivers, which supply the wire-level value transfer.
package codec

import (
	"cmp"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/opcode"
	"github.com/d21d3q/gobufr/internal/table"
)

const (
	defaultMaxProgram   = 1 << 20
	defaultMaxVariables = 1 << 20
)

// Limits bounds the work done for one message. Zero fields take defaults.
type Limits struct {
	// MaxProgram caps the number of pending descriptors after an expansion.
	MaxProgram int
	// MaxVariables caps the number of variables in one subset.
	MaxVariables int
}

func (l Limits) resolved() Limits {
	return Limits{
		MaxProgram:   cmp.Or(l.MaxProgram, defaultMaxProgram),
		MaxVariables: cmp.Or(l.MaxVariables, defaultMaxVariables),
	}
}

// Reader pulls values off the wire. A compressed reader returns one
// variable per subset; a plain one returns exactly one.
type Reader interface {
	Read(info *table.Varinfo) ([]*message.Variable, error)
	Offset() int
	Source() string
}

// Writer puts one value per subset on the wire. Variables may be unset,
// meaning missing.
type Writer interface {
	Write(info *table.Varinfo, vals []*message.Variable) error
	Offset() int
}

// Options configure an interpreter run.
type Options struct {
	Limits Limits
	Log    logrus.FieldLogger
	// Digits makes 2-01 change decimal digits instead of bits (CREX).
	Digits bool
}

// Logger returns Log, or a logger discarding everything when Log is nil.
func (o Options) Logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Decode runs descs, reading values from r into subsets. Plain messages are
// decoded one subset per call.
func Decode(t *table.Tables, descs []descriptor.Code, r Reader, subsets []*message.Subset, opts Options) error {
	in := newInterpreter(t, subsets, opts)
	in.r = r
	return in.run(opcode.New(descs...))
}

// Encode runs descs, writing the variables of subsets to w. Every variable
// of every subset must be consumed by the program.
func Encode(t *table.Tables, descs []descriptor.Code, w Writer, subsets []*message.Subset, opts Options) error {
	in := newInterpreter(t, subsets, opts)
	in.w = w
	if err := in.run(opcode.New(descs...)); err != nil {
		return err
	}
	for i, s := range subsets {
		if in.cursor[i] != len(s.Vars) {
			return errs.Consistencyf("subset %d: %d variables left over after %s",
				i, len(s.Vars)-in.cursor[i], s.Vars[in.cursor[i]].Code())
		}
	}
	return nil
}

// CheckUniform verifies that all subsets carry the same sequence of
// variable codes, as compressed encoding requires.
func CheckUniform(subsets []*message.Subset) error {
	if len(subsets) == 0 {
		return nil
	}
	ref := subsets[0]
	for i, s := range subsets[1:] {
		if len(s.Vars) != len(ref.Vars) {
			return errs.Consistencyf("subset %d has %d variables, subset 0 has %d", i+1, len(s.Vars), len(ref.Vars))
		}
		for j, v := range s.Vars {
			if v.Code() != ref.Vars[j].Code() {
				return errs.Consistencyf("subset %d variable %d is %s, subset 0 has %s",
					i+1, j, v.Code(), ref.Vars[j].Code())
			}
		}
	}
	return nil
}

// Expand returns the fully expanded element sequence of descs, ignoring
// replication counts and operators. It is meant for listings.
func Expand(t *table.Tables, descs []descriptor.Code, limits Limits) ([]descriptor.Code, error) {
	limits = limits.resolved()
	prog := opcode.New(descs...)
	var out []descriptor.Code
	for {
		code, ok := prog.PopHead()
		if !ok {
			return out, nil
		}
		if code.F() == descriptor.Sequence {
			exp, err := t.D.Lookup(code)
			if err != nil {
				return nil, err
			}
			prog.PrependCopy(exp)
			if prog.Len() > limits.MaxProgram {
				return nil, errs.Limitf("expansion of %s exceeds %d descriptors", code, limits.MaxProgram)
			}
			continue
		}
		out = append(out, code)
	}
}
