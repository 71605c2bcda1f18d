// Package archive finds BUFR and CREX messages in concatenated streams,
// such as bulletin files with transmission headers between messages, and
// writes message streams back out.
package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// MaxInput bounds the decompressed size of one stream.
const MaxInput = 1 << 30

// Raw is one undecoded message found in a stream.
type Raw struct {
	Format message.Format
	Source string
	Offset int
	Data   []byte
}

func (r Raw) String() string {
	return fmt.Sprintf("%s:%d %s (%d bytes)", r.Source, r.Offset, r.Format, len(r.Data))
}

// Options controls scanning.
type Options struct {
	// SkipErrors makes broken messages a warning instead of a failure.
	SkipErrors bool
	Log        logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Handle applies the skip policy to a failure on r: with SkipErrors the
// error is logged and dropped.
func (o Options) Handle(r Raw, err error) error {
	if err == nil || !o.SkipErrors {
		return err
	}
	o.logger().WithFields(logrus.Fields{
		"source": r.Source,
		"offset": r.Offset,
		"format": r.Format,
	}).WithError(err).Warn("skipping message")
	return nil
}

// ReadAll reads r fully, decompressing zstd input.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInput+1))
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		if len(data) > MaxInput {
			return nil, errs.Limitf("input larger than %d bytes", MaxInput)
		}
		return data, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(MaxInput))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()
	out, err := io.ReadAll(io.LimitReader(dec, MaxInput+1))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(out) > MaxInput {
		return nil, errs.Limitf("decompressed input larger than %d bytes", MaxInput)
	}
	return out, nil
}
