// Package server exposes the engine over a small HTTP JSON API. It is a
// thin adapter: all evaluation, privilege, and history semantics live in
// the engine; the server only translates requests and responses.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "errors"

	"github.com/slopdrop/slopdrop/pkg/engine"
	"github.com/slopdrop/slopdrop/pkg/errors"
)

// Config holds the HTTP adapter settings.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string
	// AdminToken, when non-empty, grants admin privilege to requests
	// carrying it as a bearer token. An empty token disables admin access
	// over HTTP entirely.
	AdminToken string
}

// Server is the HTTP front end.
type Server struct {
	eng  *engine.Engine
	cfg  Config
	http *http.Server
}

// New creates a server around an engine.
func New(eng *engine.Engine, cfg Config) *Server {
	s := &Server{eng: eng, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/eval", s.handleEval)
	mux.HandleFunc("/api/more", s.handleMore)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/rollback", s.handleRollback)
	mux.HandleFunc("/api/health", s.handleHealth)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	log.Printf("listening on http://%s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type evalRequest struct {
	Code string `json:"code"`
	User string `json:"user,omitempty"`
}

type evalResponse struct {
	SessionID     string             `json:"session_id,omitempty"`
	Output        []string           `json:"output"`
	IsError       bool               `json:"is_error"`
	MoreAvailable bool               `json:"more_available"`
	Commit        *engine.CommitInfo `json:"commit_info,omitempty"`
}

type rollbackRequest struct {
	CommitID string `json:"commit_id"`
}

type genericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) caller(r *http.Request, user string) engine.CallerContext {
	if user == "" {
		user = "web"
	}
	return engine.CallerContext{
		Name:   user,
		Origin: "web",
		Admin:  s.isAdmin(r),
	}
}

// isAdmin checks the Authorization header against the configured token.
func (s *Server) isAdmin(r *http.Request) bool {
	if s.cfg.AdminToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.cfg.AdminToken
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req evalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := s.eng.Submit(r.Context(), req.Code, s.caller(r, req.User))
	if err != nil {
		log.Printf("eval failed: %v", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, resultToResponse(res))
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	res := s.eng.More(s.caller(r, r.URL.Query().Get("user")))
	writeJSON(w, http.StatusOK, resultToResponse(res))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	infos, err := s.eng.History(limit)
	if err != nil {
		log.Printf("history failed: %v", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if infos == nil {
		infos = []*engine.CommitInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CommitID == "" {
		writeError(w, http.StatusBadRequest, "commit_id is required")
		return
	}

	info, err := s.eng.Rollback(req.CommitID, s.caller(r, r.URL.Query().Get("user")))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, genericResponse{
			Success: true,
			Message: fmt.Sprintf("Rolled back to %s as commit %s", req.CommitID, info.ID[:8]),
		})
	case goerrors.Is(err, errors.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, genericResponse{Success: false, Message: err.Error()})
	case goerrors.Is(err, errors.ErrCommitNotFound):
		writeJSON(w, http.StatusNotFound, genericResponse{Success: false, Message: err.Error()})
	default:
		log.Printf("rollback failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, genericResponse{Success: false, Message: "rollback failed"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Health())
}

func resultToResponse(res *engine.Result) evalResponse {
	out := res.Output
	if out == nil {
		out = []string{}
	}
	return evalResponse{
		SessionID:     res.SessionID,
		Output:        out,
		IsError:       res.IsError,
		MoreAvailable: res.MoreAvailable,
		Commit:        res.Commit,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("cannot write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, genericResponse{Success: false, Message: msg})
}
