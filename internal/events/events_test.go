package events_test

import (
	"sync"
	"testing"
	"time"

	"filer/internal/events"
	"filer/internal/logging"
)

func TestPublishRoutesByType(t *testing.T) {
	bus := events.NewBus(logging.NewNop())
	var queued, all []events.Type
	bus.Subscribe(events.FileQueued, func(e events.Event) { queued = append(queued, e.Type) })
	bus.Subscribe(events.All, func(e events.Event) { all = append(all, e.Type) })

	bus.Publish(events.Event{Type: events.FileQueued, Path: "/in/a.pdf"})
	bus.Publish(events.Event{Type: events.FileOrganized, Path: "/in/b.pdf"})

	if len(queued) != 1 || queued[0] != events.FileQueued {
		t.Fatalf("unexpected typed deliveries %v", queued)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard expected 2 events, got %v", all)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus(logging.NewNop())
	count := 0
	unsubscribe := bus.Subscribe(events.FileError, func(events.Event) { count++ })

	bus.Publish(events.Event{Type: events.FileError})
	unsubscribe()
	unsubscribe()
	bus.Publish(events.Event{Type: events.FileError})

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Subscribers())
	}
}

func TestPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := events.NewBus(logging.NewNop())
	delivered := false
	bus.Subscribe(events.All, func(events.Event) { panic("boom") })
	bus.Subscribe(events.WatcherError, func(events.Event) { delivered = true })

	bus.Publish(events.Event{Type: events.WatcherError})

	if !delivered {
		t.Fatal("second handler did not run")
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := events.NewBus(logging.NewNop())
	var got time.Time
	bus.Subscribe(events.All, func(e events.Event) { got = e.Timestamp })

	bus.Publish(events.Event{Type: events.FileQueued})

	if got.IsZero() {
		t.Fatal("expected timestamp to be filled")
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := events.NewBus(logging.NewNop())
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsubscribe := bus.Subscribe(events.All, func(events.Event) {})
			defer unsubscribe()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(events.Event{Type: events.FileOrganized})
		}()
	}
	wg.Wait()
	if bus.Subscribers() != 0 {
		t.Fatalf("expected all handlers removed, got %d", bus.Subscribers())
	}
}
