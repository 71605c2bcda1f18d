package gobufr

import (
	"context"

	"github.com/sirupsen/logrus"

	internalopts "github.com/d21d3q/gobufr/internal/options"
	"github.com/d21d3q/gobufr/internal/table"
)

// Options configures a Codec.
type Options struct {
	// TablesDir holds bufr_<version>.yaml table files.
	TablesDir string
	// Tables overrides TablesDir with a custom provider.
	Tables table.Provider
	Limits Limits
	// Log receives debug and warning messages. Nil discards them.
	Log logrus.FieldLogger
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Template is a "category.subcategory.local" hint for messages that
	// leave the data category fields at zero.
	Template string
}

func (opts EncodeOptions) toInternal(ctx context.Context) (context.Context, error) {
	tpl, ok, err := internalopts.ParseTemplate(opts.Template)
	if err != nil {
		return ctx, err
	}
	if ok {
		ctx = internalopts.WithTemplate(ctx, tpl)
	}
	return ctx, nil
}

// applyTemplate returns m, or a shallow copy carrying the context template.
func applyTemplate(ctx context.Context, m *Message) *Message {
	tpl, ok := internalopts.TemplateFrom(ctx)
	if !ok {
		return m
	}
	cp := *m
	tpl.Apply(&cp)
	return &cp
}
