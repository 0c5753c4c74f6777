package errors

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourcesExceededClassification(t *testing.T) {
	err := NewResourcesExceeded("chunker.header", 2<<20)
	assert.True(t, IsResourcesExceeded(err))
	assert.False(t, IsParseError(err))
}

func TestParseErrorUnwraps(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewParseError("decode.tag_id", cause)
	require.True(t, IsParseError(err))
	assert.ErrorIs(t, err, cause)
}

func TestIOErrorUnwraps(t *testing.T) {
	cause := io.EOF
	err := NewIOError("read.body", cause)
	assert.ErrorIs(t, err, cause)
}
