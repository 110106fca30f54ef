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
	"sync"
	"time"

	"transponster/internal/api"
	"transponster/internal/config"
	"transponster/internal/logging"
)

const maxRequestBody = 64 << 10

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.Handle("POST "+cfg.Paths.SlackEventsEndpoint, d.events)
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("GET /api/mappings", authMiddleware(token, srv.handleListMappings))
	mux.HandleFunc("GET /api/mappings/{id}", authMiddleware(token, srv.handleGetMapping))
	mux.HandleFunc("PUT /api/mappings/{id}", authMiddleware(token, srv.handlePutMapping))
	mux.HandleFunc("DELETE /api/mappings/{id}", authMiddleware(token, srv.handleDeleteMapping))
	srv.handler = mux
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.log(), "api server error", "api_serve_failed",
				logging.String(logging.FieldErrorHint, "restart the daemon"),
				logging.String(logging.FieldImpact, "slack events are no longer received"),
				logging.Error(err),
			)
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": s.daemon.running.Load()})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	startedAt := ""
	if !status.StartedAt.IsZero() {
		startedAt = api.FormatTime(status.StartedAt)
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		StartedAt:      startedAt,
		BotUser:        status.BotUser,
		MappingsDBPath: status.MappingsDBPath,
		MappingCount:   status.MappingCount,
		LockFilePath:   status.LockFilePath,
		DriveEnabled:   status.DriveEnabled,
		Workflow:       api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) handleListMappings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	list, err := s.daemon.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.daemon.store.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.MappingListResponse{Mappings: api.FromMappings(list), Total: total})
}

func (s *apiServer) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	m, err := s.daemon.store.Lookup(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		s.writeError(w, http.StatusNotFound, "mapping not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.MappingResponse{Mapping: api.FromMapping(*m)})
}

func (s *apiServer) handlePutMapping(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var req api.PutMappingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docID := strings.TrimSpace(req.DocumentID)
	if id == "" || docID == "" {
		s.writeError(w, http.StatusBadRequest, "file id and documentId are required")
		return
	}
	if err := s.daemon.store.Put(r.Context(), id, docID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	m, err := s.daemon.store.Lookup(r.Context(), id)
	if err != nil || m == nil {
		s.writeError(w, http.StatusInternalServerError, "mapping not readable after write")
		return
	}
	s.log().Info("mapping updated via api", logging.String(logging.FieldFileID, id), logging.String("document_id", docID))
	s.writeJSON(w, http.StatusOK, api.MappingResponse{Mapping: api.FromMapping(*m)})
}

func (s *apiServer) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	deleted, err := s.daemon.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if deleted {
		s.log().Info("mapping deleted via api", logging.String(logging.FieldFileID, id))
	}
	s.writeJSON(w, http.StatusOK, api.DeleteMappingResponse{Deleted: deleted})
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
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
