package watcher

import (
	"sync"
	"time"
)

// Debouncer collapses repeated Add calls for a key into one callback that
// fires delay after the last Add.
type Debouncer struct {
	delay time.Duration
	fire  func(string)

	mu      sync.Mutex
	pending map[string]*pendingTimer
	seq     uint64
}

type pendingTimer struct {
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a debouncer that calls fire with the key.
func NewDebouncer(delay time.Duration, fire func(string)) *Debouncer {
	return &Debouncer{delay: delay, fire: fire, pending: make(map[string]*pendingTimer)}
}

// Add arms or re-arms the timer for key.
func (d *Debouncer) Add(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.pending[key]; ok {
		existing.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending[key] = &pendingTimer{
		seq:   seq,
		timer: time.AfterFunc(d.delay, func() { d.expire(key, seq) }),
	}
}

func (d *Debouncer) expire(key string, seq uint64) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if !ok || entry.seq != seq {
		// superseded by a later Add or cancelled
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()
	d.fire(key)
}

// Cancel drops the pending timer for key, reporting whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(d.pending, key)
	return true
}

// CancelAll drops every pending timer and returns how many were dropped.
func (d *Debouncer) CancelAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.pending)
	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
	return n
}

// Pending reports how many keys are waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
