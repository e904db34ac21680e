// Package github fetches repository metadata and open issues from the GitHub
// REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("github: not found")
	// ErrRateLimited is returned when the API rate limit is exhausted.
	ErrRateLimited = errors.New("github: rate limit exceeded")
)

// APIError is a non-2xx response from the GitHub API. It unwraps to
// ErrNotFound or ErrRateLimited where applicable.
type APIError struct {
	Status  int
	Message string
	Reset   time.Time
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// Client talks to the GitHub REST API. Requests are paced by Limiter.
type Client struct {
	BaseURL   string
	Token     string
	UserAgent string
	HTTP      *http.Client
	Limiter   *rate.Limiter
}

// NewClient returns a client for the public API. token may be empty, in
// which case the unauthenticated rate limit applies.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: "issuescout",
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Limiter:   rate.NewLimiter(rate.Limit(1), 5),
	}
}

// HasToken reports whether requests are authenticated.
func (c *Client) HasToken() bool { return c.Token != "" }

// Repo is repository metadata plus its language byte counts.
type Repo struct {
	Owner           string         `json:"owner"`
	Name            string         `json:"name"`
	FullName        string         `json:"full_name"`
	Description     string         `json:"description,omitempty"`
	DefaultBranch   string         `json:"default_branch"`
	HTMLURL         string         `json:"html_url"`
	CloneURL        string         `json:"clone_url"`
	Language        string         `json:"language,omitempty"`
	Languages       map[string]int `json:"languages,omitempty"`
	Stars           int            `json:"stargazers_count"`
	OpenIssuesCount int            `json:"open_issues_count"`
}

type apiRepo struct {
	FullName        string  `json:"full_name"`
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	DefaultBranch   string  `json:"default_branch"`
	HTMLURL         string  `json:"html_url"`
	CloneURL        string  `json:"clone_url"`
	Language        *string `json:"language"`
	Stars           int     `json:"stargazers_count"`
	OpenIssuesCount int     `json:"open_issues_count"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// GetRepo fetches repository metadata and languages. A failed languages
// request leaves Languages empty.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	var raw apiRepo
	if _, err := c.getJSON(ctx, repoPath(owner, repo), nil, &raw); err != nil {
		return nil, fmt.Errorf("github.GetRepo: %w", err)
	}

	r := &Repo{
		Owner:           raw.Owner.Login,
		Name:            raw.Name,
		FullName:        raw.FullName,
		DefaultBranch:   raw.DefaultBranch,
		HTMLURL:         raw.HTMLURL,
		CloneURL:        raw.CloneURL,
		Stars:           raw.Stars,
		OpenIssuesCount: raw.OpenIssuesCount,
	}
	if raw.Description != nil {
		r.Description = *raw.Description
	}
	if raw.Language != nil {
		r.Language = *raw.Language
	}
	if r.DefaultBranch == "" {
		r.DefaultBranch = "main"
	}
	if r.Owner == "" {
		r.Owner, r.Name = owner, repo
	}

	var langs map[string]int
	if _, err := c.getJSON(ctx, repoPath(owner, repo)+"/languages", nil, &langs); err == nil {
		r.Languages = langs
	} else if ctx.Err() != nil {
		return nil, fmt.Errorf("github.GetRepo: %w", ctx.Err())
	}
	return r, nil
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// getJSON performs a paced GET of path (or an absolute URL) and decodes the
// body into out. It returns the response headers.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = strings.TrimRight(c.BaseURL, "/") + path
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Header, nil
}

func apiError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var msg struct {
		Message string `json:"message"`
	}
	e := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		e.Message = msg.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		e.kind = ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		e.kind = ErrRateLimited
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			var secs int64
			if _, err := fmt.Sscan(reset, &secs); err == nil {
				e.Reset = time.Unix(secs, 0).UTC()
			}
		}
	}
	return e
}
