// Package server exposes ranking and the run log over a local HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/store"
	"github.com/dshills/issuescout/internal/triage"
)

// MaxBodyBytes limits request bodies.
const MaxBodyBytes = 4 << 20

// RunReader reads persisted runs.
type RunReader interface {
	Recent(ctx context.Context, repo string, limit int) ([]store.RunLog, error)
	Get(ctx context.Context, id string) (*store.RunLog, error)
}

// RepoRanker ranks the open issues of a live repository.
type RepoRanker interface {
	RankIssues(ctx context.Context, repoURL string) (*agent.TriageOutput, error)
}

// Server serves the API. Runs and Ranker are optional; their endpoints
// answer 503 when unset.
type Server struct {
	Profile string
	Weights triage.Weights
	TopK    int
	Runs    RunReader
	Ranker  RepoRanker
	Log     *log.Logger
	Now     func() time.Time
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/rank", s.handleRank)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/weights", s.handleWeights)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger().Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) logger() *log.Logger {
	if s.Log != nil {
		return s.Log
	}
	return log.Default()
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger().Debug("request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"profile": s.Profile,
		"weights": s.Weights,
	})
}

// RankRequest is the body of POST /api/v1/rank. Either Repo or Issues must
// be set; Issues are scored offline against Now (defaults to server time).
type RankRequest struct {
	Repo   string          `json:"repo,omitempty"`
	Issues []triage.Record `json:"issues,omitempty"`
	TopK   int             `json:"top_k,omitempty"`
	Now    *time.Time      `json:"now,omitempty"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch {
	case req.Repo != "" && len(req.Issues) > 0:
		writeError(w, http.StatusBadRequest, "set either repo or issues, not both")
	case req.Repo != "":
		s.rankRepo(w, r, req.Repo)
	default:
		s.rankRecords(w, r, req)
	}
}

func (s *Server) rankRecords(w http.ResponseWriter, r *http.Request, req RankRequest) {
	now := s.now()
	if req.Now != nil {
		now = *req.Now
	}
	k := req.TopK
	if k <= 0 {
		k = s.TopK
	}
	scorer, err := triage.NewScorer(s.Weights, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ranked, err := triage.Rank(r.Context(), scorer, req.Issues, k)
	if err != nil {
		if errors.Is(err, triage.ErrInvalidRecord) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ranked":  ranked,
		"summary": triage.Summarize(ranked),
	})
}

func (s *Server) rankRepo(w http.ResponseWriter, r *http.Request, repo string) {
	if s.Ranker == nil {
		writeError(w, http.StatusServiceUnavailable, "repository ranking is not configured")
		return
	}
	out, err := s.Ranker.RankIssues(r.Context(), repo)
	if err != nil {
		s.logger().Warn("rank failed", "repo", repo, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"ranked":   out.Ranked,
		"selected": out.Selected,
		"summary":  out.Summary,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log is not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	runs, err := s.Runs.Recent(r.Context(), r.URL.Query().Get("repo"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run log is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.Runs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found: "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "run": run})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
