// Package events carries watcher notifications from the pipeline to any number
// of in-process listeners (notifications, the API, tests).
//
// Publish is synchronous: handlers run on the publishing goroutine in
// subscription order and should return quickly. A panicking handler is
// recovered and logged; the remaining handlers still run.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"filer/internal/logging"
)

// Type names an event kind.
type Type string

const (
	FileQueued    Type = "file_queued"
	FileOrganized Type = "file_organized"
	FileError     Type = "file_error"
	WatcherError  Type = "watcher_error"

	// All subscribes to every type.
	All Type = "*"
)

// Event is one published notification.
type Event struct {
	Type      Type
	WatchID   int64
	Path      string
	Filename  string
	Folder    string
	RecordID  int64
	RuleID    *int64
	Message   string
	Timestamp time.Time
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	typ     Type
	handler Handler
}

// Bus is a synchronous publish/subscribe hub. The zero value is not usable;
// call NewBus.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
	now    func() time.Time
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logging.NewComponentLogger(logger, "events"), now: time.Now}
}

// Subscribe registers fn for typ (or All) and returns a function that removes
// it. Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(typ Type, fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: typ, handler: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evt to matching subscribers. A zero Timestamp is filled in.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now()
	}
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.typ == All || sub.typ == evt.Type {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, evt)
	}
}

// Subscribers reports how many handlers are registered.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) deliver(sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(b.logger, "event handler panicked", "event_handler_panic",
				logging.String("event", string(evt.Type)),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "the handler is still subscribed; fix the subscriber"),
			)
		}
	}()
	sub.handler(evt)
}
