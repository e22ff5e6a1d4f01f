package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"siksha/internal/api"
	"siksha/internal/config"
	"siksha/internal/logging"
	"siksha/internal/runs"
	"siksha/internal/services"
	"siksha/internal/workflow"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	cfg    *config.Config
	logger *slog.Logger
	daemon *Daemon
	server *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{cfg: cfg, logger: logger, daemon: d}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc(api.PathGenerate, srv.handleGenerate(false))
	apiMux.HandleFunc(api.PathRegenerate, srv.handleGenerate(true))
	apiMux.HandleFunc(api.PathProgress, srv.handleProgress)
	apiMux.HandleFunc(api.PathStatus, srv.handleVideoStatus)
	apiMux.HandleFunc(api.PathCancel, srv.handleCancel)
	apiMux.HandleFunc(api.PathRuns, srv.handleRuns)
	apiMux.HandleFunc(api.PathDaemon, srv.handleStatus)

	root := http.NewServeMux()
	root.Handle("/api/", authMiddleware(cfg.Paths.APIToken, apiMux))
	prefix := strings.TrimRight(cfg.Paths.URLPrefix, "/")
	root.Handle(prefix+"/", http.StripPrefix(prefix, staticHandler(cfg.Paths.OutputDir)))

	srv.server = &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the daemon's HTTP handler: the JSON API under /api/ and
// the generated videos under the configured URL prefix.
func (d *Daemon) Handler() http.Handler {
	return newAPIServer(d.cfg, d, d.logger).server.Handler
}

// Serve listens on paths.api_bind until ctx is cancelled, then shuts the
// server down and cancels in-flight runs.
func (d *Daemon) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return d.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener.
func (d *Daemon) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := newAPIServer(d.cfg, d, d.logger)
	srv.log().Info("api server listening", logging.String("address", listener.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.server.Shutdown(shutdownCtx); err != nil {
			srv.log().Warn("api server shutdown incomplete", logging.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func (s *apiServer) handleGenerate(regenerate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		req, ok := s.decodeLesson(w, r)
		if !ok {
			return
		}
		sub, err := s.daemon.Submit(r.Context(), toWorkflowRequest(req), regenerate)
		switch {
		case errors.Is(err, runs.ErrRunInProgress):
			s.writeJSON(w, http.StatusConflict, api.ErrorResponse{
				Error:     "generation already in progress",
				Status:    "processing",
				Folder:    sub.Handle.Key,
				RequestID: sub.Handle.RequestID,
			})
			return
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, runs.ErrShuttingDown):
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			s.log().Error("lesson submission failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		message := "Video generation started"
		if regenerate {
			message = "Video regeneration started"
		}
		s.writeJSON(w, http.StatusOK, api.GenerateResponse{
			Status:    "processing",
			Message:   message,
			Folder:    sub.Handle.Key,
			RequestID: sub.Handle.RequestID,
			Removed:   sub.Removed,
		})
	}
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.lessonFolder(w, r)
	if !ok {
		return
	}
	status, err := s.daemon.Progress(r.Context(), folder)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProgress(status))
}

func (s *apiServer) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.lessonFolder(w, r)
	if !ok {
		return
	}
	final, err := s.daemon.orchestrator.Layout(folder).Final()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := api.VideoStatus{Status: "processing", Folder: folder}
	if final.Exists && final.Size > 0 {
		resp.Status = "completed"
		resp.VideoURL = videoURL(s.cfg, folder)
		resp.IsRecent = final.Recent(time.Now(), s.cfg.RecentWindow())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.lessonFolder(w, r)
	if !ok {
		return
	}
	if err := s.daemon.Cancel(folder); err != nil {
		if errors.Is(err, runs.ErrNoActiveRun) {
			s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: err.Error(), Folder: folder})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: true, Folder: folder})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	active, stored, err := s.daemon.Runs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunsResponse{Runs: api.MergeRuns(active, stored)})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		LockFilePath:    status.LockFilePath,
		OutputDir:       s.cfg.Paths.OutputDir,
		ProgressBackend: s.cfg.Progress.Backend,
		ActiveRuns:      status.ActiveRuns,
		Workflow:        api.FromStatusSummary(status.Workflow),
		Dependencies:    api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) decodeLesson(w http.ResponseWriter, r *http.Request) (api.LessonRequest, bool) {
	var req api.LessonRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	return req, true
}

// lessonFolder resolves the folder a lookup endpoint addresses: an explicit
// folder wins, otherwise it is derived from topic and interests.
func (s *apiServer) lessonFolder(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return "", false
	}
	req, ok := s.decodeLesson(w, r)
	if !ok {
		return "", false
	}
	if folder := strings.TrimSpace(req.Folder); folder != "" {
		if !validFolder(folder) {
			s.writeError(w, http.StatusBadRequest, "invalid folder name")
			return "", false
		}
		return folder, true
	}
	normalized, err := toWorkflowRequest(req).Normalize()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "topic or folder is required")
		return "", false
	}
	return normalized.Folder(), true
}

func validFolder(folder string) bool {
	return folder != "." && folder != ".." && filepath.Base(folder) == folder && !strings.ContainsAny(folder, `/\`)
}

func toWorkflowRequest(req api.LessonRequest) workflow.Request {
	return workflow.Request{Topic: req.Topic, Audience: req.Audience, Interests: req.Interests}
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
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
