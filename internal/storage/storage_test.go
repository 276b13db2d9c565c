package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "token")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "token", "a"))
	require.NoError(t, m.Set(ctx, "token", "b"))
	v, err := m.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	require.NoError(t, m.Set(ctx, "user", "{}"))
	require.NoError(t, m.Delete(ctx, "token", "user", "missing"))
	assert.Empty(t, m.Keys())
}
