package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorMatchesSentinel(t *testing.T) {
	err := Parsef("obs.bufr", 42, "section 4 truncated")
	require.True(t, errors.Is(err, ErrParse))
	require.False(t, errors.Is(err, ErrConsistency))
	require.Equal(t, "obs.bufr:42: section 4 truncated", err.Error())

	wrapped := fmt.Errorf("decode: %w", err)
	var perr *ParseError
	require.True(t, errors.As(wrapped, &perr))
	require.Equal(t, 42, perr.Offset)
}

func TestKindHelpers(t *testing.T) {
	require.ErrorIs(t, NotFoundf("B%05d", 12101), ErrNotFound)
	require.ErrorIs(t, Consistencyf("value %d out of range", 7), ErrConsistency)
	require.ErrorIs(t, Unimplementedf("operator C03000"), ErrUnimplemented)
	require.ErrorIs(t, Limitf("program too long"), ErrLimit)
	require.Contains(t, NotFoundf("B12101").Error(), "B12101")
}
