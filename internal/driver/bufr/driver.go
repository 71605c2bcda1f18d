// Package bufr implements the BUFR binary format: section framing and bit
// level value transfer, plain or compressed.
package bufr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/bits"
	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/driver"
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/frame"
	"github.com/d21d3q/gobufr/internal/message"
)

func init() {
	driver.Register(driver.Detection{Magic: "BUFR", Format: message.BUFR}, Driver{})
}

// Driver implements driver.Driver for BUFR.
type Driver struct{}

// Name returns the canonical driver name.
func (Driver) Name() string { return "bufr" }

// Decode parses raw and interprets its data section.
func (Driver) Decode(ctx context.Context, raw []byte, env driver.Env) (*message.Message, error) {
	b, err := frame.ParseBUFR(raw, env.Source)
	if err != nil {
		return nil, err
	}
	m := b.Header
	tables, err := env.Tables.Get(m.TableID())
	if err != nil {
		return nil, err
	}
	br := bits.NewReader(b.Data, env.Source, b.DataOffset)

	if m.Compressed {
		subsets := make([]*message.Subset, b.Subsets)
		for i := range subsets {
			subsets[i] = m.NewSubset()
		}
		r := &compressedReader{br: br, source: env.Source, subsets: b.Subsets}
		if err := codec.Decode(tables, m.Descriptors, r, subsets, env.Codec); err != nil {
			return nil, err
		}
	} else {
		r := &plainReader{br: br, source: env.Source}
		for i := 0; i < b.Subsets; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			s := m.NewSubset()
			if err := codec.Decode(tables, m.Descriptors, r, []*message.Subset{s}, env.Codec); err != nil {
				return nil, fmt.Errorf("subset %d: %w", i, err)
			}
		}
	}

	// Up to a byte of bit padding plus the edition 3 even-length byte.
	if left := br.Remaining(); left >= 16 {
		env.Codec.Logger().WithFields(logrus.Fields{
			"source": env.Source,
			"bits":   left,
		}).Warn("data section has unread bits")
	}
	return m, nil
}

// Encode packs m's subsets and frames them. Only compressed messages need
// subsets of identical structure; plain subsets may differ, for example in
// their delayed replication counts.
func (Driver) Encode(ctx context.Context, m *message.Message, env driver.Env) ([]byte, error) {
	if m.Format != message.BUFR {
		return nil, errs.Consistencyf("cannot encode a %s message as BUFR", m.Format)
	}
	tables, err := env.Tables.Get(m.TableID())
	if err != nil {
		return nil, err
	}
	var bw bits.Writer
	if m.Compressed {
		if err := codec.CheckUniform(m.Subsets); err != nil {
			return nil, err
		}
		w := &compressedWriter{bw: &bw}
		if err := codec.Encode(tables, m.Descriptors, w, m.Subsets, env.Codec); err != nil {
			return nil, err
		}
	} else {
		w := &plainWriter{bw: &bw}
		for i, s := range m.Subsets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := codec.Encode(tables, m.Descriptors, w, []*message.Subset{s}, env.Codec); err != nil {
				return nil, fmt.Errorf("subset %d: %w", i, err)
			}
		}
	}
	return frame.WriteBUFR(m, len(m.Subsets), bw.Bytes())
}
