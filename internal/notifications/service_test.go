package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"filer/internal/config"
	"filer/internal/events"
	"filer/internal/logging"
	"filer/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

type ntfyRecorder struct {
	mu       sync.Mutex
	requests []captured
	status   int
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *ntfyRecorder) {
	t.Helper()
	rec := &ntfyRecorder{status: status}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		_ = r.Body.Close()
		rec.mu.Lock()
		rec.requests = append(rec.requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func (r *ntfyRecorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.requests...)
}

func ntfyConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Organized = true
	cfg.Notifications.Queued = true
	cfg.Notifications.Errors = true
	cfg.Notifications.MinIntervalSeconds = 0
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg, nil)
	if err := svc.Notify(context.Background(), events.Event{Type: events.FileError, Message: "boom"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          events.Event
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "organized",
			event:         events.Event{Type: events.FileOrganized, Filename: "invoice.pdf", Folder: "11.01"},
			expectTitle:   "Filer - Organized",
			expectMessage: "📁 invoice.pdf filed in 11.01",
			expectTags:    "filer,organized",
		},
		{
			name: "queued with suggestion",
			event: events.Event{
				Type:     events.FileQueued,
				Filename: "scan.png",
				Folder:   "21.01",
				Message:  "confidence low below medium",
			},
			expectTitle:   "Filer - Review Needed",
			expectMessage: "📥 scan.png needs review\nSuggested: 21.01\nReason: confidence low below medium",
			expectTags:    "filer,queued,review",
		},
		{
			name:          "queued without suggestion",
			event:         events.Event{Type: events.FileQueued, Filename: "notes.txt"},
			expectTitle:   "Filer - Review Needed",
			expectMessage: "📥 notes.txt needs review",
			expectTags:    "filer,queued,review",
		},
		{
			name:           "file error",
			event:          events.Event{Type: events.FileError, Filename: "report.pdf", Message: "permission denied"},
			expectTitle:    "Filer - Error",
			expectMessage:  "❌ Error with report.pdf: permission denied",
			expectTags:     "filer,error,alert",
			expectPriority: "high",
		},
		{
			name:           "watcher error",
			event:          events.Event{Type: events.WatcherError, Path: "/home/user/Downloads", Message: "inotify overflow"},
			expectTitle:    "Filer - Watcher Error",
			expectMessage:  "❌ Watching /home/user/Downloads failed: inotify overflow",
			expectTags:     "filer,watcher,error",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, rec := newNtfyServer(t, http.StatusOK)
			svc := notifications.NewService(ntfyConfig(server.URL), nil)
			if err := svc.Notify(context.Background(), tc.event); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			got := rec.all()
			if len(got) != 1 {
				t.Fatalf("expected one request, got %d", len(got))
			}
			if got[0].title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got[0].title)
			}
			if got[0].body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got[0].body)
			}
			if got[0].tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got[0].tags)
			}
			if got[0].priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got[0].priority)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server, rec := newNtfyServer(t, http.StatusOK)
	cfg := ntfyConfig(server.URL)
	cfg.Notifications.Queued = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(cfg, nil)
	for _, typ := range []events.Type{events.FileQueued, events.FileError, events.WatcherError, events.Type("unknown")} {
		if err := svc.Notify(context.Background(), events.Event{Type: typ, Filename: "x"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", typ, err)
		}
	}
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("suppressed events were sent: %+v", got)
	}
}

func TestNtfyServiceThrottles(t *testing.T) {
	server, rec := newNtfyServer(t, http.StatusOK)
	cfg := ntfyConfig(server.URL)
	cfg.Notifications.MinIntervalSeconds = 60

	svc := notifications.NewService(cfg, nil)
	for range 3 {
		if err := svc.Notify(context.Background(), events.Event{Type: events.FileOrganized, Filename: "a.pdf", Folder: "11.01"}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if got := rec.all(); len(got) != 1 {
		t.Fatalf("expected one delivery inside the interval, got %d", len(got))
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusTooManyRequests)
	svc := notifications.NewService(ntfyConfig(server.URL), nil)
	err := svc.Notify(context.Background(), events.Event{Type: events.FileError, Filename: "a.pdf", Message: "boom"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestAttachDeliversBusEvents(t *testing.T) {
	server, rec := newNtfyServer(t, http.StatusOK)
	bus := events.NewBus(logging.NewNop())
	svc := notifications.NewService(ntfyConfig(server.URL), nil)

	stop := notifications.Attach(bus, svc, logging.NewNop(), nil)
	bus.Publish(events.Event{Type: events.FileOrganized, Filename: "invoice.pdf", Folder: "11.01"})
	bus.Publish(events.Event{Type: events.FileQueued, Filename: "notes.txt"})
	stop()

	if got := rec.all(); len(got) != 2 {
		t.Fatalf("expected both events delivered before stop returned, got %d", len(got))
	}
	if bus.Subscribers() != 0 {
		t.Fatalf("stop should unsubscribe, %d subscribers left", bus.Subscribers())
	}

	// publishing after stop is harmless
	bus.Publish(events.Event{Type: events.FileOrganized, Filename: "late.pdf"})
	time.Sleep(20 * time.Millisecond)
	if got := rec.all(); len(got) != 2 {
		t.Fatalf("no delivery expected after stop, got %d", len(got))
	}
	stop()
}
