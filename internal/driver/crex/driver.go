// Package crex implements the CREX character format: section framing and
// digit level value transfer with optional check digits.
package crex

import (
	"context"
	"fmt"

	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/driver"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/frame"
	"github.com/d21d3q/gobufr/internal/message"
)

func init() {
	driver.Register(driver.Detection{Magic: "CREX", Format: message.CREX}, Driver{})
}

// Driver implements driver.Driver for CREX.
type Driver struct{}

// Name returns the canonical driver name.
func (Driver) Name() string { return "crex" }

// Decode parses raw and reads subsets until the data section terminator.
func (Driver) Decode(ctx context.Context, raw []byte, env driver.Env) (*message.Message, error) {
	rep, err := frame.ParseCREX(raw, env.Source)
	if err != nil {
		return nil, err
	}
	m := rep.Header
	tables, err := env.Tables.Get(m.TableID())
	if err != nil {
		return nil, err
	}
	opts := env.Codec
	opts.Digits = true
	r := &digitReader{data: rep.Data, base: rep.DataOffset, source: env.Source, check: m.CheckDigit}
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := m.NewSubset()
		if err := codec.Decode(tables, m.Descriptors, r, []*message.Subset{s}, opts); err != nil {
			return nil, fmt.Errorf("subset %d: %w", i, err)
		}
		last, err := r.endSubset()
		if err != nil {
			return nil, fmt.Errorf("subset %d: %w", i, err)
		}
		if last {
			return m, nil
		}
	}
}

// Encode writes m's subsets as CREX text.
func (Driver) Encode(ctx context.Context, m *message.Message, env driver.Env) ([]byte, error) {
	if m.Format != message.CREX {
		return nil, errs.Consistencyf("cannot encode a %s message as CREX", m.Format)
	}
	if len(m.Subsets) == 0 {
		return nil, errs.Consistencyf("a CREX message needs at least one subset")
	}
	tables, err := env.Tables.Get(m.TableID())
	if err != nil {
		return nil, err
	}
	opts := env.Codec
	opts.Digits = true
	w := &digitWriter{check: m.CheckDigit}
	for i, s := range m.Subsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := codec.Encode(tables, m.Descriptors, w, []*message.Subset{s}, opts); err != nil {
			return nil, fmt.Errorf("subset %d: %w", i, err)
		}
		w.endSubset(i == len(m.Subsets)-1)
	}
	return frame.WriteCREX(m, w.buf.Bytes())
}
