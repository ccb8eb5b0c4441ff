package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinVersion_HidesEnvironmentsCreatedAfterPin(t *testing.T) {
	a, ctx := newTestAPI(t)
	require.NoError(t, a.CreateEnv(ctx, "prod"))

	v1, err := a.CurrentVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, a.CreateEnv(ctx, "staging"))

	a.PinVersion(v1)
	envs, err := a.AllEnvironments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, envs)

	a.UnpinVersion()
	envs, err = a.AllEnvironments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod", "staging"}, envs)
}

func TestPinVersion_FindOrphanedNodesHonorsPin(t *testing.T) {
	a, ctx := newTestAPI(t)
	require.NoError(t, a.CreateEnv(ctx, "prod"))
	require.NoError(t, a.AddHost(ctx, "prod", "orphan1"))

	v1, err := a.CurrentVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, a.AddHost(ctx, "prod", "orphan2"))

	a.PinVersion(v1)
	defer a.UnpinVersion()

	orphans, err := a.FindOrphanedNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prod#orphan1"}, orphans)
}
