// Package gobufr decodes and encodes WMO BUFR and CREX messages.
//
// A Codec owns a table cache and is safe for concurrent use:
//
//	c, err := gobufr.New(gobufr.Options{TablesDir: "/usr/share/gobufr"})
//	msg, err := c.Decode(ctx, raw, "synop.bufr")
//	fs := gobufr.NewFieldSet(msg.Subsets[0])
//	t, err := fs.Float("B12101")
package gobufr

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/archive"
	"github.com/d21d3q/gobufr/internal/codec"
	"github.com/d21d3q/gobufr/internal/descriptor"
	"github.com/d21d3q/gobufr/internal/driver"
	_ "github.com/d21d3q/gobufr/internal/driver/bufr" // register driver
	_ "github.com/d21d3q/gobufr/internal/driver/crex" // register driver
	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
)

type (
	Message  = message.Message
	Subset   = message.Subset
	Variable = message.Variable
	Format   = message.Format
	Code     = descriptor.Code
	Varinfo  = table.Varinfo
	Tables   = table.Tables
	TableID  = table.ID
	Limits   = codec.Limits
	// ParseError locates a decoding failure in its input.
	ParseError = errs.ParseError
)

const (
	BUFR = message.BUFR
	CREX = message.CREX
)

var (
	ErrNotFound      = errs.ErrNotFound
	ErrParse         = errs.ErrParse
	ErrConsistency   = errs.ErrConsistency
	ErrUnimplemented = errs.ErrUnimplemented
	ErrLimit         = errs.ErrLimit
	ErrUnset         = message.ErrUnset
)

// ParseCode parses a descriptor written as "B12101", "012101" or "0-12-101".
func ParseCode(s string) (Code, error) { return descriptor.Parse(s) }

// Codec decodes and encodes messages against a shared table cache.
type Codec struct {
	tables *table.Cache
	opts   codec.Options
	log    logrus.FieldLogger
}

// New builds a codec from opts.
func New(opts Options) (*Codec, error) {
	provider := opts.Tables
	if provider == nil {
		if opts.TablesDir == "" {
			return nil, fmt.Errorf("gobufr: either Tables or TablesDir is required")
		}
		provider = table.DirProvider{Dir: opts.TablesDir, Log: opts.Log}
	}
	copts := codec.Options{Limits: opts.Limits, Log: opts.Log}
	log := copts.Logger()
	return &Codec{
		tables: table.NewCache(provider, log),
		opts:   copts,
		log:    log,
	}, nil
}

// Tables returns the tables for id, loading them on first use.
func (c *Codec) Tables(id TableID) (*Tables, error) { return c.tables.Get(id) }

func (c *Codec) env(source string) driver.Env {
	return driver.Env{Source: source, Tables: c.tables, Codec: c.opts}
}

// Decode decodes one BUFR or CREX message. source names raw in errors.
func (c *Codec) Decode(ctx context.Context, raw []byte, source string) (*Message, error) {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	drv, format, err := driver.Detect(raw, source)
	if err != nil {
		return nil, err
	}
	m, err := drv.Decode(ctx, raw, c.env(source))
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"source":  source,
		"format":  format,
		"tables":  m.TableID().String(),
		"subsets": len(m.Subsets),
	}).Debug("decoded message")
	return m, nil
}

// DecodeHex decodes a message given as hex digits. Whitespace, '|' and
// '_' separators are ignored.
func (c *Codec) DecodeHex(ctx context.Context, s string) (*Message, error) {
	data, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return c.Decode(ctx, data, "hex")
}

// DecodeStream decodes every message found in r, which may be zstd
// compressed, and calls fn for each. With opts.SkipErrors, messages that
// fail to decode are logged and skipped.
func (c *Codec) DecodeStream(ctx context.Context, r io.Reader, source string, opts archive.Options, fn func(archive.Raw, *Message) error) error {
	if opts.Log == nil {
		opts.Log = c.log
	}
	data, err := archive.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	sc := archive.NewScanner(data, source, opts)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := sc.Raw()
		m, err := c.Decode(ctx, raw.Data, source)
		if err != nil {
			// Offsets inside the message become offsets in the stream.
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Offset += raw.Offset
			}
			if err := opts.Handle(raw, err); err != nil {
				return err
			}
			continue
		}
		if err := fn(raw, m); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Encode encodes m in its own format.
func (c *Codec) Encode(ctx context.Context, m *Message, opts EncodeOptions) ([]byte, error) {
	ctx, err := opts.toInternal(ctx)
	if err != nil {
		return nil, err
	}
	drv, err := driver.Lookup(m.Format)
	if err != nil {
		return nil, err
	}
	return drv.Encode(ctx, applyTemplate(ctx, m), c.env("encode"))
}

// Expand lists the element descriptors descs expand to under id's tables.
func (c *Codec) Expand(id TableID, descs []Code) ([]Code, error) {
	t, err := c.tables.Get(id)
	if err != nil {
		return nil, err
	}
	return codec.Expand(t, descs, c.opts.Limits)
}

func decodeHex(input string) ([]byte, error) {
	clean := stripWhitespace(input)
	if strings.HasPrefix(clean, "0X") || strings.HasPrefix(clean, "0x") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex message must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripWhitespace(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
