package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := NewError(KindCompletion, "complete", context.DeadlineExceeded)

	assert.Equal(t, "completion error: complete: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsKind(err, KindCompletion))
	assert.False(t, IsKind(err, KindPersistence))

	wrapped := fmt.Errorf("turn failed: %w", err)
	assert.True(t, IsKind(wrapped, KindCompletion))

	assert.False(t, IsKind(errors.New("plain"), KindCompletion))
	assert.False(t, IsKind(nil, KindCompletion))
}
