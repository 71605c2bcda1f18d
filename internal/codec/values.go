package codec

import (
	"strings"

	"github.com/d21d3q/gobufr/internal/errs"
	"github.com/d21d3q/gobufr/internal/message"
	"github.com/d21d3q/gobufr/internal/table"
)

// ScaledValue returns the scaled integer to write for v under info, which
// may differ from v.Info when operators changed the scale. missing is set
// for unset variables.
func ScaledValue(v *message.Variable, info *table.Varinfo) (ival int64, missing bool, err error) {
	if v == nil || !v.IsSet() {
		return 0, true, nil
	}
	if v.Info.IsString {
		return 0, false, errs.Consistencyf("%s holds text where %s expects a number", v.Code(), info.Code)
	}
	ival, err = v.Scaled()
	if err != nil {
		return 0, false, err
	}
	if v.Info.Scale != info.Scale {
		ival = info.FromFloat(v.Info.ToFloat(ival))
	}
	return ival, false, nil
}

// StringValue returns the text to write for v, space padded to the width
// of info. Trailing NUL bytes are treated as padding.
func StringValue(v *message.Variable, info *table.Varinfo, width int) (s string, missing bool, err error) {
	if v == nil || !v.IsSet() {
		return "", true, nil
	}
	text, err := v.Text()
	if err != nil {
		return "", false, err
	}
	if !v.Info.IsString {
		return "", false, errs.Consistencyf("%s holds a number where %s expects text", v.Code(), info.Code)
	}
	text = strings.TrimRight(text, "\x00")
	if len(text) > width {
		return "", false, errs.Consistencyf("%s: %q is longer than %d characters", info.Code, text, width)
	}
	return text + strings.Repeat(" ", width-len(text)), false, nil
}

// DecodedString turns the space padding at the end of a fixed-width field
// into NUL bytes, keeping the declared width.
func DecodedString(raw []byte) string {
	end := len(raw)
	for end > 0 && (raw[end-1] == ' ' || raw[end-1] == 0) {
		end--
	}
	out := make([]byte, len(raw))
	copy(out, raw[:end])
	return string(out)
}
