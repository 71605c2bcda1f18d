// Package opcode holds the list of descriptors still to be interpreted.
//
// A Program is a FIFO of descriptor codes stored as a chain of segments:
// splicing another program in front of or behind the current one links
// segments instead of moving codes, and nothing walks the chain
// recursively, so deeply nested sequence expansions cost no stack.
package opcode

import "github.com/d21d3q/gobufr/internal/descriptor"

type segment struct {
	codes []descriptor.Code
	next  *segment
}

// Program is an ordered list of descriptors. The zero value is empty and
// ready to use. A Program is not safe for concurrent use.
type Program struct {
	head *segment
	tail *segment
	n    int
}

// New returns a program holding a copy of codes.
func New(codes ...descriptor.Code) *Program {
	p := &Program{}
	if len(codes) > 0 {
		p.link(&segment{codes: append([]descriptor.Code(nil), codes...)})
	}
	return p
}

// Len returns the number of descriptors left.
func (p *Program) Len() int { return p.n }

// Empty reports whether the program has been consumed.
func (p *Program) Empty() bool { return p.n == 0 }

func (p *Program) link(s *segment) {
	if p.tail == nil {
		p.head = s
	} else {
		p.tail.next = s
	}
	p.tail = s
	p.n += len(s.codes)
}

// Append adds c at the end.
func (p *Program) Append(c descriptor.Code) {
	if p.tail == nil {
		p.link(&segment{codes: []descriptor.Code{c}})
		return
	}
	p.tail.codes = append(p.tail.codes, c)
	p.n++
}

// PrependCopy splices a copy of other before the current head. other is
// left untouched.
func (p *Program) PrependCopy(other *Program) {
	if other == nil || other.n == 0 {
		return
	}
	s := &segment{codes: other.Codes(), next: p.head}
	p.head = s
	if p.tail == nil {
		p.tail = s
	}
	p.n += len(s.codes)
}

// Join moves every descriptor of other to the end of p. other is empty
// afterwards.
func (p *Program) Join(other *Program) {
	if other == nil || other == p || other.n == 0 {
		return
	}
	if p.tail == nil {
		p.head = other.head
	} else {
		p.tail.next = other.head
	}
	p.tail = other.tail
	p.n += other.n
	other.head, other.tail, other.n = nil, nil, 0
}

// PopHead removes and returns the next descriptor.
func (p *Program) PopHead() (descriptor.Code, bool) {
	for p.head != nil && len(p.head.codes) == 0 {
		p.dropHead()
	}
	if p.head == nil {
		return 0, false
	}
	c := p.head.codes[0]
	p.head.codes = p.head.codes[1:]
	p.n--
	if len(p.head.codes) == 0 {
		p.dropHead()
	}
	return c, true
}

// Peek returns the next descriptor without removing it.
func (p *Program) Peek() (descriptor.Code, bool) {
	for s := p.head; s != nil; s = s.next {
		if len(s.codes) > 0 {
			return s.codes[0], true
		}
	}
	return 0, false
}

func (p *Program) dropHead() {
	p.head = p.head.next
	if p.head == nil {
		p.tail = nil
	}
}

// PopN removes the first count descriptors and returns them as a new
// program. Fewer are returned if p runs out.
func (p *Program) PopN(count int) *Program {
	out := &Program{}
	for count > 0 && p.head != nil {
		s := p.head
		if len(s.codes) <= count {
			p.dropHead()
			s.next = nil
			p.n -= len(s.codes)
			count -= len(s.codes)
			out.link(s)
			continue
		}
		// Split the segment; the capacity cap keeps appends on out from
		// overwriting what stays in p.
		out.link(&segment{codes: s.codes[:count:count]})
		s.codes = s.codes[count:]
		p.n -= count
		count = 0
	}
	return out
}

// Codes returns a copy of the remaining descriptors in order.
func (p *Program) Codes() []descriptor.Code {
	out := make([]descriptor.Code, 0, p.n)
	for s := p.head; s != nil; s = s.next {
		out = append(out, s.codes...)
	}
	return out
}

// Clone returns an independent copy of p.
func (p *Program) Clone() *Program {
	return New(p.Codes()...)
}

// String renders the remaining descriptors.
func (p *Program) String() string {
	return descriptor.Join(p.Codes())
}
