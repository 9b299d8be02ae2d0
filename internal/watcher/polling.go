package watcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PollingWatcher detects snapshot changes by comparing modification time
// and size at a fixed interval. Fallback for filesystems where native
// notification does not work.
type PollingWatcher struct {
	path     string
	opts     Options
	events   chan Event
	errors   chan error
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	exists  bool
	modTime time.Time
	size    int64
}

var _ Watcher = (*PollingWatcher)(nil)

// NewPollingWatcher creates a mod-time polling watcher for the snapshot
// at path.
func NewPollingWatcher(path string, opts Options) *PollingWatcher {
	return &PollingWatcher{
		path:   path,
		opts:   opts.WithDefaults(),
		events: make(chan Event, 4),
		errors: make(chan error, 4),
		stopCh: make(chan struct{}),
	}
}

// Start records the snapshot's current state and begins polling.
// Changes relative to the state at Start are reported, so a snapshot
// that already exists does not trigger a spurious reload.
func (w *PollingWatcher) Start(ctx context.Context) error {
	if info, err := os.Stat(w.path); err == nil {
		w.exists = true
		w.modTime = info.ModTime()
		w.size = info.Size()
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *PollingWatcher) loop(ctx context.Context) {
	defer func() {
		close(w.events)
		close(w.errors)
		w.wg.Done()
	}()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *PollingWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			if w.exists {
				w.exists = false
				w.emit(Event{Kind: KindRemoved, Path: w.path, At: time.Now()})
			}
			return
		}
		select {
		case w.errors <- err:
		default:
		}
		return
	}

	changed := !w.exists || !info.ModTime().Equal(w.modTime) || info.Size() != w.size
	w.exists = true
	w.modTime = info.ModTime()
	w.size = info.Size()

	if changed {
		w.emit(Event{Kind: KindReload, Path: w.path, At: time.Now()})
	}
}

func (w *PollingWatcher) emit(event Event) {
	select {
	case w.events <- event:
	default:
	}
}

// Events returns the channel of snapshot events.
func (w *PollingWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *PollingWatcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher. Safe to call multiple times.
func (w *PollingWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	return nil
}

// New returns an fsnotify-backed watcher when native notification is
// available, otherwise the polling fallback.
func New(path string, opts Options) (Watcher, error) {
	probe, err := fsnotify.NewWatcher()
	if err != nil {
		return NewPollingWatcher(path, opts), nil
	}
	_ = probe.Close()
	return NewFSWatcher(path, opts)
}
