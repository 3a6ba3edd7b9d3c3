package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"filer/internal/logging"
	"filer/internal/metrics"
	"filer/internal/taxonomy"
	"filer/internal/testsupport"
	"filer/internal/watcher"
)

func newTestDaemon(t *testing.T, token string, withMetrics bool) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	cfg.Metrics.Enabled = withMetrics
	st := testsupport.MustOpenStore(t, cfg)
	opts := Options{Logger: logging.NewNop(), Source: watcher.NewMemorySource()}
	if withMetrics {
		opts.Metrics = metrics.New()
	}
	d, err := New(cfg, st, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestAPIServerHandleActivity(t *testing.T) {
	d := newTestDaemon(t, "", false)
	ctx := context.Background()
	st := d.services.Store
	folder, err := st.CreateWatchedFolder(ctx, taxonomy.WatchedFolderConfig{Path: t.TempDir(), Active: true})
	if err != nil {
		t.Fatalf("CreateWatchedFolder: %v", err)
	}
	for _, action := range []taxonomy.ActivityAction{taxonomy.ActionDetected, taxonomy.ActionQueued} {
		if _, err := st.AddActivity(ctx, taxonomy.WatchActivityEntry{
			FolderID: folder.ID,
			Filename: "invoice.pdf",
			Path:     "/inbox/invoice.pdf",
			Action:   action,
		}); err != nil {
			t.Fatalf("AddActivity: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/activity?limit=1", nil)
	w := httptest.NewRecorder()
	d.api.handleActivity(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp struct {
		Entries []ActivityEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Action != "queued" {
		t.Fatalf("expected newest entry only, got %+v", resp.Entries)
	}
}

func TestAPIServerRejectsBadQuery(t *testing.T) {
	d := newTestDaemon(t, "", false)
	for _, target := range []string{"/api/activity?folder=abc", "/api/activity?limit=-1", "/api/history?limit=x"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		if strings.HasPrefix(target, "/api/history") {
			d.api.handleHistory(w, req)
		} else {
			d.api.handleActivity(w, req)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	w := httptest.NewRecorder()
	d.api.handleStatus(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerServesStatusWithToken(t *testing.T) {
	d := newTestDaemon(t, "s3cret", true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	base := "http://" + d.api.addr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	metricsResp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	body, _ := io.ReadAll(metricsResp.Body)
	if metricsResp.StatusCode != http.StatusOK || !strings.Contains(string(body), "filer_active_watchers") {
		t.Fatalf("expected filer metrics, got %d: %.200s", metricsResp.StatusCode, body)
	}
}
