// Package watcher observes the catalog snapshot file and reports when it
// changes, so the indexes can be rebuilt without restarting.
//
// The primary implementation uses fsnotify on the snapshot's parent
// directory, which survives the atomic write-then-rename pattern editors
// and exporters use. A polling fallback covers filesystems without
// native notification (network mounts, some containers).
package watcher

import (
	"context"
	"time"
)

// Kind classifies a snapshot event.
type Kind int

const (
	// KindReload indicates the snapshot was written or replaced and
	// should be reindexed.
	KindReload Kind = iota
	// KindRemoved indicates the snapshot was deleted.
	KindRemoved
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindReload:
		return "RELOAD"
	case KindRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is one debounced snapshot change.
type Event struct {
	Kind Kind
	Path string
	// At is when the change was detected.
	At time.Time
}

// Watcher observes the catalog snapshot.
type Watcher interface {
	// Start begins watching. The watcher runs until Stop is called or
	// the context is cancelled.
	Start(ctx context.Context) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of debounced snapshot events.
	// Closed when the watcher stops.
	Events() <-chan Event

	// Errors returns non-fatal watcher errors. The watcher keeps
	// running after sending one. Closed when the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// Debounce is the quiet period after the last raw file event before
	// a single coalesced event is emitted. Default: 500ms.
	Debounce time.Duration

	// PollInterval is the mod-time check interval for the polling
	// fallback. Default: 2s.
	PollInterval time.Duration
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:     500 * time.Millisecond,
		PollInterval: 2 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce == 0 {
		o.Debounce = defaults.Debounce
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}
