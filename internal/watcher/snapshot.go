package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher watches the snapshot through fsnotify. The parent directory
// is watched rather than the file itself, so the write-then-rename
// pattern used for atomic snapshot updates is still observed.
type FSWatcher struct {
	path      string
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher creates an fsnotify-backed watcher for the snapshot at path.
func NewFSWatcher(path string, opts Options) (*FSWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	opts = opts.WithDefaults()
	return &FSWatcher{
		path:      abs,
		opts:      opts,
		debouncer: NewDebouncer(opts.Debounce),
		errors:    make(chan error, 4),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins watching the snapshot's parent directory.
func (w *FSWatcher) Start(ctx context.Context) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		_ = fs.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fs

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *FSWatcher) loop(ctx context.Context) {
	defer func() {
		_ = w.fs.Close()
		w.debouncer.Stop()
		close(w.errors)
		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			kind, relevant := classifyOp(ev.Op)
			if !relevant {
				continue
			}
			w.debouncer.Add(Event{Kind: kind, Path: w.path, At: time.Now()})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// classifyOp maps raw fsnotify operations to snapshot event kinds.
// Chmod is noise and is dropped.
func classifyOp(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		return KindRemoved, true
	case op.Has(fsnotify.Create) || op.Has(fsnotify.Write):
		return KindReload, true
	default:
		return 0, false
	}
}

// Events returns the channel of debounced snapshot events.
func (w *FSWatcher) Events() <-chan Event {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher. Safe to call multiple times.
func (w *FSWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	return nil
}
