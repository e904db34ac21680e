package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/logging"
	"github.com/dshills/issuescout/internal/store"
	"github.com/dshills/issuescout/internal/triage"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeRanker struct {
	out *agent.TriageOutput
	err error
}

func (f fakeRanker) RankIssues(context.Context, string) (*agent.TriageOutput, error) {
	return f.out, f.err
}

func setupTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return &Server{
		Profile: "default",
		Weights: triage.DefaultWeights(),
		TopK:    3,
		Runs:    st,
		Log:     logging.Discard(),
		Now:     func() time.Time { return now },
	}, st
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp map[string]any
	json.NewDecoder(rec.Body).Decode(&resp)
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec, resp := do(t, srv.Routes(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("status = %d, body = %v", rec.Code, resp)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestWeights(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec, resp := do(t, srv.Routes(), http.MethodGet, "/api/v1/weights", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp["profile"] != "default" {
		t.Errorf("profile = %v", resp["profile"])
	}
	if resp["weights"] == nil {
		t.Error("weights should be present")
	}
}

const rankBody = `{
	"issues": [
		{"id": "o/r#1", "number": 1, "title": "Old", "created_at": "2024-01-01T00:00:00Z", "updated_at": "2024-01-01T00:00:00Z"},
		{"id": "o/r#2", "number": 2, "title": "Fix typo", "body": "Steps to reproduce:\n1. a\n2. b",
		 "labels": ["good first issue"], "comments": 2,
		 "created_at": "2026-02-20T00:00:00Z", "updated_at": "2026-02-28T00:00:00Z"}
	],
	"top_k": 1
}`

func TestRankRecords(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec, resp := do(t, srv.Routes(), http.MethodPost, "/api/v1/rank", rankBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, resp)
	}
	ranked, ok := resp["ranked"].([]any)
	if !ok || len(ranked) != 1 {
		t.Fatalf("ranked = %v", resp["ranked"])
	}
	first := ranked[0].(map[string]any)
	if first["issue"].(map[string]any)["id"] != "o/r#2" {
		t.Errorf("top issue = %v", first["issue"])
	}
}

func TestRankErrors(t *testing.T) {
	srv, _ := setupTestServer(t)
	h := srv.Routes()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "not json", http.StatusBadRequest},
		{"unknown field", `{"bogus": 1}`, http.StatusBadRequest},
		{"both inputs", `{"repo": "o/r", "issues": [{"id": "x"}]}`, http.StatusBadRequest},
		{"invalid record", `{"issues": [{"id": "", "created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z"}]}`, http.StatusUnprocessableEntity},
		{"repo without ranker", `{"repo": "o/r"}`, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := do(t, h, http.MethodPost, "/api/v1/rank", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tc.want, resp)
			}
			if resp["success"] != false {
				t.Errorf("success = %v", resp["success"])
			}
		})
	}
}

func TestRankEmpty(t *testing.T) {
	srv, _ := setupTestServer(t)
	rec, resp := do(t, srv.Routes(), http.MethodPost, "/api/v1/rank", `{"issues": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ranked, ok := resp["ranked"].([]any); !ok || len(ranked) != 0 {
		t.Errorf("ranked = %v", resp["ranked"])
	}
}

func TestRankRepo(t *testing.T) {
	srv, _ := setupTestServer(t)
	srv.Ranker = fakeRanker{out: &agent.TriageOutput{Selected: 9}}
	rec, resp := do(t, srv.Routes(), http.MethodPost, "/api/v1/rank", `{"repo": "o/r"}`)
	if rec.Code != http.StatusOK || resp["selected"] != float64(9) {
		t.Fatalf("status = %d, body = %v", rec.Code, resp)
	}

	srv.Ranker = fakeRanker{err: errors.New("github down")}
	rec, _ = do(t, srv.Routes(), http.MethodPost, "/api/v1/rank", `{"repo": "o/r"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	srv, st := setupTestServer(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b"} {
		err := st.Save(ctx, store.RunLog{
			ID: id, Repo: "o/r", Status: store.StatusCompleted,
			StartedAt: now.Add(time.Duration(i) * time.Minute), FinishedAt: now.Add(time.Duration(i+1) * time.Minute),
			Payload: json.RawMessage(`{"run_id":"` + id + `"}`),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	h := srv.Routes()

	rec, resp := do(t, h, http.MethodGet, "/api/v1/runs?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	runs := resp["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["id"] != "b" {
		t.Errorf("runs = %v", runs)
	}

	rec, resp = do(t, h, http.MethodGet, "/api/v1/runs/a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	run := resp["run"].(map[string]any)
	if run["payload"].(map[string]any)["run_id"] != "a" {
		t.Errorf("payload = %v", run["payload"])
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/runs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/runs?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunHandlerDirect(t *testing.T) {
	srv, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/x", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "x")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	srv.handleGetRun(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRunsNotConfigured(t *testing.T) {
	srv := &Server{Log: logging.Discard()}
	rec, _ := do(t, srv.Routes(), http.MethodGet, "/api/v1/runs", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	srv := &Server{Log: logging.Discard()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
