package runlock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/pkg/platform/sentinel"
)

func TestMemoryLockIsPerTenant(t *testing.T) {
	ctx := context.Background()
	l := NewMemory()

	release, err := l.Acquire(ctx, 1)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	other, err := l.Acquire(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, 1)
	require.NoError(t, err)

	// A stale release must not free the new holder's lease.
	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, again(ctx))
}
