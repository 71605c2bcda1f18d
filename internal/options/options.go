package options

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/d21d3q/gobufr/internal/message"
)

type contextKey struct{}

// Template is a category hint for encoding: data category, international
// subcategory and local subcategory.
type Template struct {
	Category         int
	Subcategory      int
	LocalSubcategory int
}

func (t Template) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Category, t.Subcategory, t.LocalSubcategory)
}

// Apply fills the category fields of m from the hint when m leaves them
// at 0 (auto).
func (t Template) Apply(m *message.Message) {
	if m.Category != 0 || m.Subcategory != 0 || m.LocalSubcategory != 0 {
		return
	}
	m.Category = t.Category
	m.Subcategory = t.Subcategory
	m.LocalSubcategory = t.LocalSubcategory
}

// WithTemplate stores the hint inside the context.
func WithTemplate(ctx context.Context, t Template) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// TemplateFrom retrieves the hint from context if present.
func TemplateFrom(ctx context.Context) (Template, bool) {
	if v := ctx.Value(contextKey{}); v != nil {
		if t, ok := v.(Template); ok {
			return t, true
		}
	}
	return Template{}, false
}

// ParseTemplate parses "cat", "cat.sub" or "cat.sub.local". An empty string
// means no hint.
func ParseTemplate(input string) (Template, bool, error) {
	clean := stripWhitespace(input)
	if clean == "" {
		return Template{}, false, nil
	}
	parts := strings.Split(clean, ".")
	if len(parts) > 3 {
		return Template{}, false, fmt.Errorf("template %q has more than three parts", input)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return Template{}, false, fmt.Errorf("template %q: part %q is not a number in 0-255", input, p)
		}
		vals[i] = v
	}
	return Template{Category: vals[0], Subcategory: vals[1], LocalSubcategory: vals[2]}, true, nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
