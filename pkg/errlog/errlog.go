// Package errlog keeps a bounded, newest-first log of unexpected failures in
// the local store.
package errlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/store"
)

// StorageKey is the local-scope key holding the log.
const StorageKey = "errorLogs"

// DefaultMaxEntries caps the log when no limit is configured.
const DefaultMaxEntries = 200

const maxStackBytes = 4096

// Source tells how an entry was captured.
type Source string

const (
	SourceError Source = "error"
	SourcePanic Source = "panic"
)

// Entry is one logged failure.
type Entry struct {
	ID      string         `json:"id"`
	Message string         `json:"message"`
	Stack   string         `json:"stack"`
	When    time.Time      `json:"when"`
	Source  Source         `json:"source"`
	Info    map[string]any `json:"info,omitempty"`
}

// Book is the bounded error log.
type Book struct {
	mu     sync.Mutex
	store  store.Store
	max    int
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Book persisting into s.
func New(s store.Store, maxEntries int, logger *zap.Logger) *Book {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		store:  s,
		max:    maxEntries,
		logger: logger.Named("errlog"),
		now:    time.Now,
	}
}

// Record appends err with optional context. Storage failures are logged and
// swallowed.
func (b *Book) Record(ctx context.Context, err error, info map[string]any) {
	if err == nil {
		return
	}
	b.append(ctx, Entry{
		Message: err.Error(),
		Stack:   trimStack(debug.Stack()),
		Source:  SourceError,
		Info:    info,
	})
}

// RecordPanic appends a recovered panic value with its stack.
func (b *Book) RecordPanic(ctx context.Context, recovered any, stack []byte, info map[string]any) {
	b.append(ctx, Entry{
		Message: fmt.Sprint(recovered),
		Stack:   trimStack(stack),
		Source:  SourcePanic,
		Info:    info,
	})
}

func (b *Book) append(ctx context.Context, e Entry) {
	e.ID = uuid.NewString()
	e.When = b.now().UTC()

	b.logger.Error("error logged",
		zap.String("id", e.ID),
		zap.String("source", string(e.Source)),
		zap.String("message", e.Message),
		zap.Any("info", e.Info))

	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.load(ctx)
	if err != nil {
		// Writing now would replace whatever history is stored.
		b.logger.Error("failed to read error log, entry not persisted", zap.String("id", e.ID), zap.Error(err))
		return
	}

	entries = append([]Entry{e}, entries...)
	if len(entries) > b.max {
		entries = entries[:b.max]
	}

	if err := b.store.Set(ctx, map[string]any{StorageKey: entries}); err != nil {
		b.logger.Error("failed to persist error log", zap.Error(err))
	}
}

func (b *Book) load(ctx context.Context) ([]Entry, error) {
	vals, err := b.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, err
	}
	return store.Decode(vals, StorageKey, []Entry{})
}

// List returns every entry, newest first.
func (b *Book) List(ctx context.Context) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read error log: %w", err)
	}
	return entries, nil
}

// Recent returns at most n of the newest entries.
func (b *Book) Recent(ctx context.Context, n int) ([]Entry, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

// Between returns entries logged within [from, to].
func (b *Book) Between(ctx context.Context, from, to time.Time) ([]Entry, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.When.Before(from) && !e.When.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count returns the number of entries.
func (b *Book) Count(ctx context.Context) (int, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes every entry.
func (b *Book) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.store.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear error log: %w", err)
	}
	return nil
}

// ExportJSON returns the log as indented JSON.
func (b *Book) ExportJSON(ctx context.Context) ([]byte, error) {
	entries, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ErrPanicked is returned by Guard when fn panicked.
var ErrPanicked = errors.New("recovered from panic")

// Guard runs fn, converting a panic into ErrPanicked and an error log entry.
func (b *Book) Guard(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.RecordPanic(ctx, r, debug.Stack(), map[string]any{"op": op})
			err = fmt.Errorf("%s: %w: %v", op, ErrPanicked, r)
		}
	}()
	return fn(ctx)
}

func trimStack(stack []byte) string {
	if len(stack) > maxStackBytes {
		stack = stack[:maxStackBytes]
	}
	return string(stack)
}
