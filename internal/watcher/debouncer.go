package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid snapshot events so a burst of writes
// triggers one reindex, not one per write. Coalescing rules:
//   - RELOAD + RELOAD = RELOAD
//   - RELOAD + REMOVED = REMOVED (file is gone)
//   - REMOVED + RELOAD = RELOAD (file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending *Event
	timer   *time.Timer
	output  chan Event
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		output: make(chan Event, 4),
	}
}

// Add records an event and (re)starts the quiet window.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.pending == nil {
		copied := event
		d.pending = &copied
	} else {
		// The latest kind wins under every coalescing rule
		d.pending.Kind = event.Kind
		d.pending.At = event.At
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.pending == nil {
		return
	}

	event := *d.pending
	d.pending = nil

	// Non-blocking send; a full channel means a reindex is already due
	select {
	case d.output <- event:
	default:
	}
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan Event {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
