package errdefs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesContext(t *testing.T) {
	err := New(KindFormatError, "expected KEY=VALUE").
		WithAlias("dev").
		WithLine(4).
		WithOperation("decode")

	assert.Equal(t, "expected KEY=VALUE (alias=dev, line=4, operation=decode)", err.Error())
}

func TestErrorWrapsCause(t *testing.T) {
	err := Wrap(KindIOError, "failed to read store", fs.ErrPermission)

	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("set dev: %w", NotFound("dev"))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrAlreadyExists))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindInvalidName, true},
		{KindInvalidVarName, true},
		{KindValueTooLong, true},
		{KindInvalidValue, true},
		{KindTooManyVariables, true},
		{KindDescriptionTooLong, true},
		{KindNotFound, false},
		{KindCorruptFile, false},
		{KindFormatError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidation(New(tt.kind, "x")))
		})
	}
}

func TestWithDetail(t *testing.T) {
	err := New(KindUnknownAlias, "unknown").WithDetail("missing", []string{"a", "b"})

	require.NotNil(t, err.Details)
	assert.Equal(t, []string{"a", "b"}, err.Details["missing"])
}

func TestHintFor(t *testing.T) {
	assert.Contains(t, HintFor(NotFound("x")), "envswitch list")
	assert.Contains(t, HintFor(New(KindInvalidValue, "x")), "UTF-8")
	assert.Empty(t, HintFor(errors.New("plain")))
}
