package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"filer/internal/config"
	"filer/internal/events"
	"filer/internal/logging"
	"filer/internal/metrics"
)

const userAgent = "Filer-Go/0.1.0"

// Service sends user-facing notifications for watcher events.
type Service interface {
	// Notify delivers evt if its type is enabled. Throttled and disabled
	// events return nil.
	Notify(ctx context.Context, evt events.Event) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config, m *metrics.Metrics) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		organized: cfg.Notifications.Organized,
		queued:    cfg.Notifications.Queued,
		errors:    cfg.Notifications.Errors,
		metrics:   m,
	}
	if interval := cfg.Notifications.MinIntervalSeconds; interval > 0 {
		svc.limiter = rate.NewLimiter(rate.Every(time.Duration(interval)*time.Second), 1)
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	organized bool
	queued    bool
	errors    bool
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
}

func (n *ntfyService) enabled(typ events.Type) bool {
	switch typ {
	case events.FileOrganized:
		return n.organized
	case events.FileQueued:
		return n.queued
	case events.FileError, events.WatcherError:
		return n.errors
	default:
		return false
	}
}

func (n *ntfyService) Notify(ctx context.Context, evt events.Event) error {
	if !n.enabled(evt.Type) {
		return nil
	}
	if n.limiter != nil && !n.limiter.Allow() {
		n.metrics.RecordNotification("throttled")
		return nil
	}
	err := n.send(ctx, format(evt))
	if err != nil {
		n.metrics.RecordNotification("failed")
		return err
	}
	n.metrics.RecordNotification("sent")
	return nil
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Filer - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"filer", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func format(evt events.Event) payload {
	name := strings.TrimSpace(evt.Filename)
	if name == "" {
		name = strings.TrimSpace(evt.Path)
	}
	switch evt.Type {
	case events.FileOrganized:
		return payload{
			title:   "Filer - Organized",
			message: fmt.Sprintf("📁 %s filed in %s", name, evt.Folder),
			tags:    []string{"filer", "organized"},
		}
	case events.FileQueued:
		message := fmt.Sprintf("📥 %s needs review", name)
		if evt.Folder != "" {
			message = fmt.Sprintf("%s\nSuggested: %s", message, evt.Folder)
		}
		if reason := strings.TrimSpace(evt.Message); reason != "" {
			message = fmt.Sprintf("%s\nReason: %s", message, reason)
		}
		return payload{
			title:   "Filer - Review Needed",
			message: message,
			tags:    []string{"filer", "queued", "review"},
		}
	case events.WatcherError:
		return payload{
			title:    "Filer - Watcher Error",
			message:  fmt.Sprintf("❌ Watching %s failed: %s", evt.Path, strings.TrimSpace(evt.Message)),
			tags:     []string{"filer", "watcher", "error"},
			priority: "high",
		}
	default:
		return payload{
			title:    "Filer - Error",
			message:  fmt.Sprintf("❌ Error with %s: %s", name, strings.TrimSpace(evt.Message)),
			tags:     []string{"filer", "error", "alert"},
			priority: "high",
		}
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Notify(context.Context, events.Event) error { return nil }
func (noopService) TestNotification(context.Context) error     { return nil }

// dispatcher forwards bus events to a Service on its own goroutine.
type dispatcher struct {
	svc     Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	queue   chan events.Event
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

const dispatchQueueSize = 64

// Attach subscribes a dispatcher to every event on bus. The returned stop
// function unsubscribes, drains queued events, and waits for delivery to end.
func Attach(bus *events.Bus, svc Service, logger *slog.Logger, m *metrics.Metrics) (stop func()) {
	d := &dispatcher{
		svc:     svc,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		metrics: m,
		queue:   make(chan events.Event, dispatchQueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	unsubscribe := bus.Subscribe(events.All, d.enqueue)
	return func() {
		unsubscribe()
		d.mu.Lock()
		if !d.closed {
			d.closed = true
			close(d.queue)
		}
		d.mu.Unlock()
		<-d.done
	}
}

func (d *dispatcher) enqueue(evt events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- evt:
	default:
		d.metrics.RecordNotification("dropped")
		logging.WarnWithContext(d.logger, "notification dropped", "notification_queue_full",
			logging.String("event", string(evt.Type)),
			logging.String(logging.FieldImpact, "one notification was not delivered"),
		)
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for evt := range d.queue {
		if err := d.svc.Notify(context.Background(), evt); err != nil {
			logging.WarnWithContext(d.logger, "notification delivery failed", "notification_failed",
				logging.String("event", string(evt.Type)),
				logging.Int64(logging.FieldWatchID, evt.WatchID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "notification not delivered"),
			)
		}
	}
}
