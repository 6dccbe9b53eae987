package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Machine_HappyPath(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()

	require.NoError(t, m.Fire(ctx, EventLoadOK))
	assert.Equal(t, StateSelected, m.Current())

	require.NoError(t, m.Fire(ctx, EventActivateOK))
	assert.Equal(t, StateActive, m.Current())

	require.NoError(t, m.Fire(ctx, EventDeactivateOK))
	assert.Equal(t, StateDeactivatedOk, m.Current())

	require.NoError(t, m.Fire(ctx, EventDeselect))
	assert.Equal(t, StateDeselected, m.Current())
	assert.True(t, m.Terminal())
}

func Test_Machine_LoadFailurePaths(t *testing.T) {
	ctx := context.Background()

	incompatible := NewMachine()
	require.NoError(t, incompatible.Fire(ctx, EventLoadErrIncompat))
	assert.Equal(t, StateIncompatible, incompatible.Current())
	assert.True(t, incompatible.Terminal())

	failed := NewMachine()
	require.NoError(t, failed.Fire(ctx, EventLoadErrFailed))
	assert.Equal(t, StateLoadFailed, failed.Current())
	assert.True(t, failed.Terminal())
}

func Test_Machine_ActiveToActiveNotAllowed(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()

	require.NoError(t, m.Fire(ctx, EventLoadOK))
	require.NoError(t, m.Fire(ctx, EventActivateOK))

	assert.Error(t, m.Fire(ctx, EventActivateOK))
	assert.Equal(t, StateActive, m.Current())
}

func Test_Machine_ChildExitRoutesToDeactivated(t *testing.T) {
	ctx := context.Background()
	m := NewMachine()

	require.NoError(t, m.Fire(ctx, EventLoadOK))
	require.NoError(t, m.Fire(ctx, EventActivateOK))
	require.NoError(t, m.Fire(ctx, EventChildExitFail))

	assert.Equal(t, StateDeactivatedFail, m.Current())
}
