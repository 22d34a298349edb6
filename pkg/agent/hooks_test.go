package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_FirstLaunchPrimesInstall(t *testing.T) {
	h := newDispatcherHarness(t)

	require.NoError(t, h.d.Start(h.ctx))

	flags, err := h.state.Flags(h.ctx)
	require.NoError(t, err)
	assert.True(t, flags.FirstInstallDone)
	assert.Equal(t, "2025-03-10", flags.LastActiveDate)
	assert.True(t, h.toggle.enabled, "extensionActive defaults to true")
	assert.Zero(t, h.runner.resets.Load())
}

func TestStart_ColdStartRespectsInactive(t *testing.T) {
	h := newDispatcherHarness(t)
	require.NoError(t, h.state.PrimeInstall(h.ctx, "2025-03-01"))
	require.NoError(t, h.state.SetExtensionActive(h.ctx, false))

	require.NoError(t, h.d.Start(h.ctx))

	assert.False(t, h.toggle.enabled)
	flags, err := h.state.Flags(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", flags.LastActiveDate, "startup leaves the date for the first cycle")
}

func TestStart_ColdStartActive(t *testing.T) {
	h := newDispatcherHarness(t)
	require.NoError(t, h.state.PrimeInstall(h.ctx, "2025-03-10"))

	require.NoError(t, h.d.OnStartup(h.ctx))
	assert.True(t, h.toggle.enabled)
}
