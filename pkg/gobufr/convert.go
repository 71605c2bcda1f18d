package gobufr

// ConvertOptions selects the output of Convert.
type ConvertOptions struct {
	Format Format
	// Edition of the output. Zero picks 4 for BUFR and 1 for CREX.
	Edition int
	// Compressed requests BUFR data compression.
	Compressed bool
	// CheckDigit requests CREX check digits.
	CheckDigit bool
}

// Convert returns a copy of m's header retargeted to another format,
// sharing m's descriptors and subsets.
func Convert(m *Message, opts ConvertOptions) *Message {
	out := *m
	out.Format = opts.Format
	out.Edition = opts.Edition
	switch opts.Format {
	case BUFR:
		if out.Edition == 0 {
			out.Edition = 4
		}
		out.Compressed = opts.Compressed
		out.CheckDigit = false
	case CREX:
		if out.Edition == 0 {
			out.Edition = 1
		}
		out.Compressed = false
		out.CheckDigit = opts.CheckDigit
		out.LocalData = nil
	}
	return &out
}
