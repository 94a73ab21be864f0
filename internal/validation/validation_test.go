package validation //nolint:testpackage // tests exercise unexported internals directly.

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerlab/go-grader/internal/domain"
)

func TestSanitize(t *testing.T) {
	v := New(100)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text passes through",
			in:   "a sorted array",
			want: "a sorted array",
		},
		{
			name: "compatibility forms are folded",
			in:   "eﬃcient", // ffi ligature
			want: "efficient",
		},
		{
			name: "fullwidth letters are folded",
			in:   "ＡＢＣ",
			want: "ABC",
		},
		{
			name: "control characters are stripped",
			in:   "null\x00byte\x07bell",
			want: "nullbytebell",
		},
		{
			name: "whitespace controls survive",
			in:   "line one\nline two\tand\rmore",
			want: "line one\nline two\tand\rmore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Sanitize(tt.in))
		})
	}
}

func TestCheck_LengthBounds(t *testing.T) {
	v := New(10)

	assert.NoError(t, v.Check(strings.Repeat("x", 10)))

	err := v.Check(strings.Repeat("x", 11))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTextTooLong)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCheck_CountsRunesNotBytes(t *testing.T) {
	v := New(10)

	// Ten two-byte characters fit a ten-character limit.
	assert.NoError(t, v.Check(strings.Repeat("é", 10)))
	assert.Error(t, v.Check(strings.Repeat("é", 11)))
}

func TestProcess(t *testing.T) {
	v := New(20)

	clean, err := v.Process("answer\x00 text")
	require.NoError(t, err)
	assert.Equal(t, "answer text", clean)

	_, err = v.Process(strings.Repeat("long ", 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTextTooLong)
}
