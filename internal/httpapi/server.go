package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sentineld/sentineld/internal/accessguard"
	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/daemon"
	"github.com/sentineld/sentineld/internal/supervisor"
)

// onlyForInternalUsage documents the /hell/* routes: they act on the whole
// fleet and are meant for the host's own init system, not casual operator use.
const onlyForInternalUsage = "this endpoint is for internal use only"

// daemonList is the JSON envelope returned by the daemon listing endpoints.
type daemonList struct {
	Daemons   []daemonData `json:"daemons"`
	Count     int          `json:"count"`
	Timestamp time.Time    `json:"timestamp"`
}

// daemonData mirrors a daemon's observable state for the control API.
type daemonData struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	Running       bool    `json:"running"`
	PID           int     `json:"pid,omitempty"`
	MemoryMB      float64 `json:"memory_mb,omitempty"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	StartsCount   int     `json:"starts_count"`
	FailedStarts  int     `json:"failed_starts"`
}

// operationResult is the JSON envelope for start/stop/restart endpoints.
type operationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Server is the control API's HTTP front end: it serves the daemon
// list/start/stop/restart routes behind bearer-token auth, plus the
// unauthenticated invitation-creation and redemption routes.
type Server struct {
	httpServer *http.Server
	supervisor *supervisor.Supervisor
	guard      *accessguard.Guard
	adapter    *apperrors.HTTPAdapter
	logger     *slog.Logger
}

// New builds a control API server bound to addr.
func New(addr string, sup *supervisor.Supervisor, guard *accessguard.Guard) *Server {
	s := &Server{
		supervisor: sup,
		guard:      guard,
		adapter:    apperrors.NewHTTPAdapter(slog.Default()),
		logger:     slog.Default(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: chain(s.logger, s.adapter, mux),
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /invitations", s.handleCreateInvitation)
	mux.HandleFunc("POST /invitations/redeem", s.handleRedeemInvitation)

	mux.HandleFunc("GET /daemons", s.auth(s.handleListDaemons))
	mux.HandleFunc("GET /daemons/running", s.auth(s.handleListRunning))
	mux.HandleFunc("GET /daemons/stopped", s.auth(s.handleListStopped))
	mux.HandleFunc("GET /daemons/{name}", s.auth(s.handleGetDaemon))
	mux.HandleFunc("POST /daemons/{name}/start", s.auth(s.handleStartDaemon))
	mux.HandleFunc("POST /daemons/{name}/stop", s.auth(s.handleStopDaemon))
	mux.HandleFunc("POST /daemons/{name}/restart", s.auth(s.handleRestartDaemon))

	mux.HandleFunc("POST /hell/start", s.auth(s.handleStartAll))
	mux.HandleFunc("POST /hell/stop", s.auth(s.handleStopAll))
	mux.HandleFunc("POST /hell/restart", s.auth(s.handleRestartAll))
}

// Start binds the listener and serves until Stop is called.
func (s *Server) Start() error {
	slog.Info("control api listening", slog.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control api server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the control API.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// auth wraps a handler with bearer-token validation against the token store.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.guard.Authenticate(r.Context(), bearerToken(r)); err != nil {
			s.adapter.WriteError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.guard.CreateInvitation(r.Context(), r.RemoteAddr)
	if err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"code": inv.Code, "expires_at": inv.ExpiresAt})
}

func (s *Server) handleRedeemInvitation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.adapter.WriteError(w, r, apperrors.New(apperrors.CategoryValidation, "malformed request body").Build())
		return
	}
	tok, err := s.guard.RedeemInvitation(r.Context(), body.Code)
	if err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok.Value})
}

func (s *Server) handleListDaemons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDaemonList(s.supervisor.GetAllDaemons()))
}

func (s *Server) handleListRunning(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDaemonList(s.supervisor.GetRunningDaemons()))
}

func (s *Server) handleListStopped(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toDaemonList(s.supervisor.GetStoppedDaemons()))
}

func (s *Server) handleGetDaemon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	st, ok := s.supervisor.SearchByName(name)
	if !ok {
		s.adapter.WriteError(w, r, apperrors.DaemonNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, toDaemonData(st))
}

func (s *Server) handleStartDaemon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.supervisor.StartDaemon(r.Context(), name); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResult{Success: true, Message: fmt.Sprintf("daemon %q started", name)})
}

func (s *Server) handleStopDaemon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.supervisor.StopDaemon(r.Context(), name); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResult{Success: true, Message: fmt.Sprintf("daemon %q stopped", name)})
}

func (s *Server) handleRestartDaemon(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.supervisor.RestartDaemon(r.Context(), name); err != nil {
		s.adapter.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResult{Success: true, Message: fmt.Sprintf("daemon %q restarted", name)})
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	ok, msg := s.supervisor.Start(r.Context())
	writeJSON(w, http.StatusOK, operationResult{Success: ok, Message: msg})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	ok, msg := s.supervisor.Stop(r.Context())
	writeJSON(w, http.StatusOK, operationResult{Success: ok, Message: msg})
}

func (s *Server) handleRestartAll(w http.ResponseWriter, r *http.Request) {
	delay := 2 * time.Second
	if v := r.URL.Query().Get("delay_sec"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			delay = time.Duration(secs) * time.Second
		}
	}
	ok, msg := s.supervisor.Restart(r.Context(), delay)
	writeJSON(w, http.StatusOK, operationResult{Success: ok, Message: msg})
}

func toDaemonData(st daemon.State) daemonData {
	return daemonData{
		Name:         st.Name,
		Status:       string(st.Status),
		Running:      st.Running,
		PID:          st.PID,
		MemoryMB:     st.MemoryMB,
		CPUPercent:   st.CPUPercent,
		StartsCount:  st.StartsCount,
		FailedStarts: st.FailedStarts,
	}
}

func toDaemonList(states []daemon.State) daemonList {
	out := make([]daemonData, 0, len(states))
	for _, st := range states {
		out = append(out, toDaemonData(st))
	}
	return daemonList{Daemons: out, Count: len(out), Timestamp: time.Now()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
