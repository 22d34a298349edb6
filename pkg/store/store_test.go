package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": openTestSQLite(t).Scope(ScopeLocal),
	}
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Set(ctx, map[string]any{
				"extensionActive": false,
				"lastBudgets":     map[string]int64{"7": 150000000},
			})
			require.NoError(t, err)

			vals, err := s.Get(ctx, "extensionActive", "lastBudgets", "missing")
			require.NoError(t, err)
			assert.Len(t, vals, 2)

			active, err := Decode(vals, "extensionActive", true)
			require.NoError(t, err)
			assert.False(t, active)

			budgets, err := Decode(vals, "lastBudgets", map[string]int64{})
			require.NoError(t, err)
			assert.Equal(t, int64(150000000), budgets["7"])

			require.NoError(t, s.Remove(ctx, "lastBudgets"))
			vals, err = s.Get(ctx, "lastBudgets")
			require.NoError(t, err)
			assert.Empty(t, vals)
		})
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, map[string]any{"lastActiveDate": "2026-10-16"}))
			require.NoError(t, s.Set(ctx, map[string]any{"lastActiveDate": "2026-10-17"}))

			vals, err := s.Get(ctx, "lastActiveDate")
			require.NoError(t, err)
			date, err := Decode(vals, "lastActiveDate", "")
			require.NoError(t, err)
			assert.Equal(t, "2026-10-17", date)
		})
	}
}

func TestSQLite_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)
	local := db.Scope(ScopeLocal)
	synced := db.Scope(ScopeSynced)

	require.NoError(t, synced.Set(ctx, map[string]any{"mode": "time"}))

	vals, err := local.Get(ctx, "mode")
	require.NoError(t, err)
	assert.Empty(t, vals)

	vals, err = synced.Get(ctx, "mode")
	require.NoError(t, err)
	assert.JSONEq(t, `"time"`, string(vals["mode"]))
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Scope(ScopeLocal).Set(ctx, map[string]any{"firstInstallDone": true}))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	vals, err := db.Scope(ScopeLocal).Get(ctx, "firstInstallDone")
	require.NoError(t, err)
	done, err := Decode(vals, "firstInstallDone", false)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDecode_DefaultsAndErrors(t *testing.T) {
	v, err := Decode(nil, "updateInterval", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = Decode(map[string]json.RawMessage{"updateInterval": json.RawMessage(`"ten"`)}, "updateInterval", 10)
	assert.Error(t, err)
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(t, m.Set(context.Background(), map[string]any{"a": 1}), ErrClosed)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, "autoads:synced", hashKey("autoads", ScopeSynced))
	assert.Equal(t, "local", hashKey("", ScopeLocal))
}
