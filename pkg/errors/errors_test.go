package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	err := Wrap(CodeInvalidInput, "unknown category", context.Canceled)
	require.Equal(t, "unknown category: context canceled", err.Error())
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, IsCode(err, CodeInvalidInput))
}

func TestCodeOfWrappedChain(t *testing.T) {
	err := fmt.Errorf("expand: %w", Wrap(CodeNotFound, "missing", nil))
	require.Equal(t, CodeNotFound, CodeOf(err))
	require.Empty(t, CodeOf(fmt.Errorf("plain")))
	require.False(t, IsCode(nil, CodeNotFound))
}
