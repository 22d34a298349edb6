package errlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

func TestRecord_NewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory(), 3, nil)

	for i := 1; i <= 5; i++ {
		b.Record(ctx, fmt.Errorf("failure %d", i), map[string]any{"n": i})
	}

	entries, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "failure 5", entries[0].Message)
	assert.Equal(t, "failure 3", entries[2].Message)
	assert.Equal(t, SourceError, entries[0].Source)
	assert.NotEmpty(t, entries[0].ID)
}

func TestRecord_IgnoresNil(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory(), 0, nil)
	b.Record(ctx, nil, nil)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecord_KeepsHistoryWhenUnreadable(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, map[string]any{StorageKey: "not a list"}))
	b := New(mem, 10, nil)

	b.Record(ctx, errors.New("boom"), nil)

	vals, err := mem.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `"not a list"`, string(vals[StorageKey]))
	assert.Equal(t, 1, mem.SetCalls(), "no write after the failed read")
}

func TestRecentBetweenClear(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory(), 0, nil)

	base := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		b.now = func() time.Time { return at }
		b.Record(ctx, errors.New("boom"), nil)
	}

	recent, err := b.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, base.Add(3*time.Hour), recent[0].When)

	window, err := b.Between(ctx, base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, window, 2)

	require.NoError(t, b.Clear(ctx))
	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGuard_RecoversPanic(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory(), 0, nil)

	err := b.Guard(ctx, "tick", func(context.Context) error {
		panic("nil campaign")
	})
	assert.ErrorIs(t, err, ErrPanicked)

	entries, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, SourcePanic, entries[0].Source)
	assert.Equal(t, "nil campaign", entries[0].Message)
	assert.Equal(t, "tick", entries[0].Info["op"])
}

func TestGuard_PassesThroughErrors(t *testing.T) {
	want := errors.New("plain")
	err := New(store.NewMemory(), 0, nil).Guard(context.Background(), "x", func(context.Context) error { return want })
	assert.Equal(t, want, err)
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory(), 0, nil)
	b.Record(ctx, errors.New("export me"), map[string]any{"function": "getProfile"})

	raw, err := b.ExportJSON(ctx)
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "getProfile", entries[0].Info["function"])
}
