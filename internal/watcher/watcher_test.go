package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, events <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestFSWatcherDetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	w, err := NewFSWatcher(path, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(`[{}]`), 0o644))

	ev := waitForEvent(t, w.Events(), 3*time.Second)
	assert.Equal(t, KindReload, ev.Kind)
}

func TestFSWatcherCoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	w, err := NewFSWatcher(path, Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	waitForEvent(t, w.Events(), 3*time.Second)

	// The burst collapsed into a single event
	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("unexpected second event: %v", ev)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSWatcherDetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	w, err := NewFSWatcher(path, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	tmp := filepath.Join(dir, "catalog.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`[{}]`), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	ev := waitForEvent(t, w.Events(), 3*time.Second)
	assert.Equal(t, KindReload, ev.Kind)
}

func TestFSWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")

	w, err := NewFSWatcher(path, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`[]`), 0o644))

	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("unexpected event for sibling file: %v", ev)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFSWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFSWatcher(filepath.Join(dir, "catalog.json"), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestPollingWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	w := NewPollingWatcher(path, Options{PollInterval: 30 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	// Size change guarantees detection even on coarse mtime filesystems
	require.NoError(t, os.WriteFile(path, []byte(`[{"product_code":"X"}]`), 0o644))

	ev := waitForEvent(t, w.Events(), 3*time.Second)
	assert.Equal(t, KindReload, ev.Kind)
}

func TestPollingWatcherDetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	w := NewPollingWatcher(path, Options{PollInterval: 30 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.Remove(path))

	ev := waitForEvent(t, w.Events(), 3*time.Second)
	assert.Equal(t, KindRemoved, ev.Kind)
}

func TestPollingWatcherNoSpuriousInitialEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	w := NewPollingWatcher(path, Options{PollInterval: 30 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("unexpected event for unchanged snapshot: %v", ev)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(Event{Kind: KindRemoved, Path: "catalog.json"})
	d.Add(Event{Kind: KindReload, Path: "catalog.json"})

	ev := waitForEvent(t, d.Output(), time.Second)
	// Replace-after-delete surfaces as a reload
	assert.Equal(t, KindReload, ev.Kind)
}

func TestDebouncerAddAfterStop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Must not panic or emit
	d.Add(Event{Kind: KindReload})
}
