package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackGuardMarksDeliveries(t *testing.T) {
	t.Parallel()

	store := newFakeDedupStore()
	guard, err := NewCallbackGuard(store, time.Hour)
	require.NoError(t, err)

	duplicate, err := guard.CheckAndMark(context.Background(), "TXN_1_AAAA0000", true)
	require.NoError(t, err)
	assert.False(t, duplicate)

	duplicate, err = guard.CheckAndMark(context.Background(), "TXN_1_AAAA0000", true)
	require.NoError(t, err)
	assert.True(t, duplicate)

	// The opposite outcome uses its own key.
	duplicate, err = guard.CheckAndMark(context.Background(), "TXN_1_AAAA0000", false)
	require.NoError(t, err)
	assert.False(t, duplicate)
}

func TestCallbackGuardForget(t *testing.T) {
	t.Parallel()

	store := newFakeDedupStore()
	guard, err := NewCallbackGuard(store, time.Hour)
	require.NoError(t, err)

	_, err = guard.CheckAndMark(context.Background(), "TXN_2_BBBB1111", true)
	require.NoError(t, err)
	require.NoError(t, guard.Forget(context.Background(), "TXN_2_BBBB1111", true))

	duplicate, err := guard.CheckAndMark(context.Background(), "TXN_2_BBBB1111", true)
	require.NoError(t, err)
	assert.False(t, duplicate)
}

func TestCallbackGuardRequiresTransactionID(t *testing.T) {
	t.Parallel()

	guard, err := NewCallbackGuard(newFakeDedupStore(), time.Hour)
	require.NoError(t, err)

	_, err = guard.CheckAndMark(context.Background(), "", true)
	assert.Error(t, err)
	assert.Error(t, guard.Forget(context.Background(), "", true))
}

func TestNewCallbackGuardValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCallbackGuard(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewCallbackGuard(newFakeDedupStore(), -time.Hour)
	assert.Error(t, err)
}
