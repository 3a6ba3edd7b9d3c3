package watcher

import (
	"path/filepath"
	"sync"
)

// Subscription streams changed paths for one watched root.
type Subscription interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

// Source opens change-notification subscriptions.
type Source interface {
	Watch(root string, recursive bool) (Subscription, error)
}

// MemorySource is an in-process Source driven by Emit and Fail.
type MemorySource struct {
	mu       sync.Mutex
	subs     map[string]*memorySubscription
	watchErr error
	opened   int
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{subs: make(map[string]*memorySubscription)}
}

// Watch registers root. Only the newest subscription per root receives events.
func (m *MemorySource) Watch(root string, _ bool) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	sub := &memorySubscription{
		source: m,
		root:   filepath.Clean(root),
		events: make(chan string, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	m.subs[sub.root] = sub
	m.opened++
	return sub, nil
}

// FailWatch makes subsequent Watch calls return err; nil clears it.
func (m *MemorySource) FailWatch(err error) {
	m.mu.Lock()
	m.watchErr = err
	m.mu.Unlock()
}

// Emit delivers path to the subscription for root.
func (m *MemorySource) Emit(root, path string) bool {
	sub := m.lookup(root)
	if sub == nil {
		return false
	}
	select {
	case sub.events <- path:
		return true
	case <-sub.done:
		return false
	}
}

// Fail reports err on the subscription for root.
func (m *MemorySource) Fail(root string, err error) bool {
	sub := m.lookup(root)
	if sub == nil {
		return false
	}
	select {
	case sub.errs <- err:
		return true
	case <-sub.done:
		return false
	}
}

// Opened reports how many subscriptions have been created.
func (m *MemorySource) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Active reports whether root has an open subscription.
func (m *MemorySource) Active(root string) bool {
	return m.lookup(root) != nil
}

func (m *MemorySource) lookup(root string) *memorySubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[filepath.Clean(root)]
}

type memorySubscription struct {
	source *MemorySource
	root   string
	events chan string
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan string { return s.events }

func (s *memorySubscription) Errors() <-chan error { return s.errs }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.source.mu.Lock()
		if s.source.subs[s.root] == s {
			delete(s.source.subs, s.root)
		}
		s.source.mu.Unlock()
	})
	return nil
}
