package state

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royhairul/auto-ads-shopee/pkg/settings"
	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

func newTestState() (*State, *store.Memory, *store.Memory) {
	local, synced := store.NewMemory(), store.NewMemory()
	return New(local, synced), local, synced
}

func TestLoadSettings_AppliesDefaults(t *testing.T) {
	st, _, synced := newTestState()
	ctx := context.Background()

	require.NoError(t, synced.Set(ctx, map[string]any{
		settings.KeyMode:        "time",
		settings.KeyDailyBudget: 10000,
	}))

	got, err := st.LoadSettings(ctx)
	require.NoError(t, err)

	want := settings.Defaults()
	want.Mode = settings.ModeTime
	want.DailyBudget = 10000
	assert.Equal(t, want, got)
}

func TestLoadSettings_EmptyStore(t *testing.T) {
	st, _, _ := newTestState()
	got, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), got)
}

func TestUpdateSettings_RejectsInvalid(t *testing.T) {
	st, _, _ := newTestState()
	ctx := context.Background()

	bad := int64(1234)
	_, err := st.UpdateSettings(ctx, settings.Patch{DailyBudget: &bad})
	require.Error(t, err)

	got, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.DailyBudget)
}

func TestFlags_DefaultActive(t *testing.T) {
	st, _, _ := newTestState()
	f, err := st.Flags(context.Background())
	require.NoError(t, err)
	assert.True(t, f.ExtensionActive)
	assert.False(t, f.FirstInstallDone)
	assert.Empty(t, f.LastActiveDate)
}

func TestPrimeInstall(t *testing.T) {
	st, _, _ := newTestState()
	ctx := context.Background()

	require.NoError(t, st.PrimeInstall(ctx, "2026-10-17"))

	f, err := st.Flags(ctx)
	require.NoError(t, err)
	assert.True(t, f.FirstInstallDone)
	assert.Equal(t, "2026-10-17", f.LastActiveDate)
}

func TestBookkeeping_SingleBatchedWrite(t *testing.T) {
	st, local, _ := newTestState()
	ctx := context.Background()

	b := NewBookkeeping()
	b.Updated[42] = 1000
	b.LastBudgets[42] = decimal.NewFromInt(15000)
	b.Notified[42] = 1000

	before := local.SetCalls()
	require.NoError(t, st.SaveBookkeeping(ctx, b))
	assert.Equal(t, before+1, local.SetCalls())

	got, err := st.LoadBookkeeping(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Updated, got.Updated)
	assert.Equal(t, b.Notified, got.Notified)
	require.Contains(t, got.LastBudgets, int64(42))
	assert.Equal(t, "15000", got.LastBudgets[42].String())
}

func TestClearDailyBookkeeping(t *testing.T) {
	st, _, _ := newTestState()
	ctx := context.Background()

	b := NewBookkeeping()
	b.Notified[1] = 99
	b.LastBudgets[1] = decimal.NewFromInt(5000)
	require.NoError(t, st.SaveBookkeeping(ctx, b))
	require.NoError(t, st.SetLastUpdateTime(ctx, 12345))

	require.NoError(t, st.ClearDailyBookkeeping(ctx))

	got, err := st.LoadBookkeeping(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Notified)
	assert.Equal(t, "5000", got.LastBudgets[1].String(), "the reset leaves lastBudgets alone")

	s, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.LastUpdateTime)
}
