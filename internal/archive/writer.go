package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Writer appends encoded messages to a stream, optionally zstd compressed.
type Writer struct {
	w     io.Writer
	z     *zstd.Encoder
	count int
}

// NewWriter returns a writer on w. With compress set the output is a single
// zstd frame, finished by Close.
func NewWriter(w io.Writer, compress bool) (*Writer, error) {
	out := &Writer{w: w}
	if compress {
		z, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		out.z, out.w = z, z
	}
	return out, nil
}

// Write appends one message.
func (w *Writer) Write(msg []byte) error {
	if _, err := w.w.Write(msg); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of messages written.
func (w *Writer) Count() int { return w.count }

// Close flushes the compressor. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.z == nil {
		return nil
	}
	return w.z.Close()
}
