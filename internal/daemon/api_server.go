package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"filer/internal/config"
	"filer/internal/logging"
	"filer/internal/store"
	"filer/internal/taxonomy"
)

const defaultListLimit = 50

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	DatabasePath string          `json:"database_path"`
	LockFilePath string          `json:"lock_file_path"`
	Watchers     []WatcherStatus `json:"watchers"`
}

// WatcherStatus is one watched folder in StatusResponse.
type WatcherStatus struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Active    bool   `json:"active"`
	Running   bool   `json:"running"`
	CanRun    bool   `json:"can_run"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// ActivityEntry is one watch activity row.
type ActivityEntry struct {
	ID           int64     `json:"id"`
	FolderID     int64     `json:"folder_id"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	Action       string    `json:"action"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	TargetFolder string    `json:"target_folder,omitempty"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryEntry is one organized file record.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	OriginalPath string    `json:"original_path"`
	CurrentPath  string    `json:"current_path"`
	FolderNumber string    `json:"folder_number"`
	Status       string    `json:"status"`
	OrganizedAt  time.Time `json:"organized_at"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/activity", authMiddleware(token, srv.handleActivity))
	mux.HandleFunc("/api/history", authMiddleware(token, srv.handleHistory))
	if cfg.Metrics.Enabled && d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listener address, or "" before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Watchers:     make([]WatcherStatus, 0, len(status.Watchers)),
	}
	for _, w := range status.Watchers {
		payload.Watchers = append(payload.Watchers, WatcherStatus{
			ID:        w.ID,
			Path:      w.Path,
			Active:    w.Active,
			Running:   w.Running,
			CanRun:    w.CanRun,
			State:     string(w.State),
			LastError: w.LastError,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	var folderID int64
	if raw := strings.TrimSpace(query.Get("folder")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid folder id")
			return
		}
		folderID = id
	}
	limit, ok := s.parseLimit(w, query.Get("limit"))
	if !ok {
		return
	}
	entries, err := s.daemon.services.Store.ListActivity(r.Context(), folderID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]ActivityEntry, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, fromActivity(entry))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": payload})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, ok := s.parseLimit(w, query.Get("limit"))
	if !ok {
		return
	}
	filter := store.RecordFilter{Limit: limit}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		filter.Status = taxonomy.RecordStatus(raw)
	}
	records, err := s.daemon.services.Store.ListOrganizedFiles(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		payload = append(payload, HistoryEntry{
			ID:           record.ID,
			Filename:     record.Filename,
			OriginalPath: record.OriginalPath,
			CurrentPath:  record.CurrentPath,
			FolderNumber: record.FolderNumber,
			Status:       string(record.Status),
			OrganizedAt:  record.OrganizedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": payload})
}

func (s *apiServer) parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}

func fromActivity(entry taxonomy.WatchActivityEntry) ActivityEntry {
	return ActivityEntry{
		ID:           entry.ID,
		FolderID:     entry.FolderID,
		Filename:     entry.Filename,
		Path:         entry.Path,
		Action:       string(entry.Action),
		RuleID:       entry.RuleID,
		TargetFolder: entry.TargetFolder,
		Message:      entry.ErrorMessage,
		CreatedAt:    entry.CreatedAt,
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
