package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/dshills/issuescout/internal/triage"
)

// DefaultMaxIssues caps ListIssues when ListOptions.Max is unset.
const DefaultMaxIssues = 30

// BeginnerLabels are queried one by one when ListOptions.BeginnerOnly is set.
var BeginnerLabels = []string{
	"good first issue",
	"good-first-issue",
	"help wanted",
	"help-wanted",
	"beginner",
	"easy",
	"starter",
	"first-timers-only",
}

// ListOptions controls ListIssues.
type ListOptions struct {
	BeginnerOnly bool
	Max          int
	PerPage      int
}

// Issue is an open issue as returned by the API.
type Issue struct {
	Number      int              `json:"number"`
	Title       string           `json:"title"`
	Body        *string          `json:"body"`
	URL         string           `json:"url"`
	HTMLURL     string           `json:"html_url"`
	State       string           `json:"state"`
	Labels      []Label          `json:"labels"`
	Comments    int              `json:"comments"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	User        *User            `json:"user"`
	PullRequest *json.RawMessage `json:"pull_request,omitempty"`
}

type Label struct {
	Name string `json:"name"`
}

type User struct {
	Login string `json:"login"`
}

// IsPullRequest reports whether the item is a PR surfaced by the issues
// endpoint.
func (i Issue) IsPullRequest() bool { return i.PullRequest != nil }

// Record converts the issue into a scoring record identified as
// "owner/repo#number".
func (i Issue) Record(owner, repo string) triage.Record {
	r := triage.Record{
		ID:        fmt.Sprintf("%s/%s#%d", owner, repo, i.Number),
		Number:    i.Number,
		Title:     i.Title,
		Comments:  i.Comments,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
		URL:       i.HTMLURL,
	}
	if i.Body != nil {
		r.Body = *i.Body
	}
	for _, l := range i.Labels {
		r.Labels = append(r.Labels, l.Name)
	}
	return r
}

// ListIssues returns open issues sorted by most recently updated, skipping
// pull requests and duplicates, up to opts.Max.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	limit := opts.Max
	if limit <= 0 {
		limit = DefaultMaxIssues
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = min(limit, 100)
	}

	labels := []string{""}
	if opts.BeginnerOnly {
		labels = BeginnerLabels
	}

	seen := map[int]bool{}
	var out []Issue
	for _, label := range labels {
		if len(out) >= limit {
			break
		}
		q := url.Values{
			"state":     {"open"},
			"sort":      {"updated"},
			"direction": {"desc"},
			"per_page":  {strconv.Itoa(perPage)},
		}
		if label != "" {
			q.Set("labels", label)
		}

		next := repoPath(owner, repo) + "/issues"
		for next != "" && len(out) < limit {
			var page []Issue
			hdr, err := c.getJSON(ctx, next, q, &page)
			if err != nil {
				return nil, fmt.Errorf("github.ListIssues: %w", err)
			}
			for _, is := range page {
				if is.IsPullRequest() || seen[is.Number] {
					continue
				}
				seen[is.Number] = true
				out = append(out, is)
				if len(out) >= limit {
					break
				}
			}
			next = nextLink(hdr)
			q = nil // the next link carries its own query
		}
	}
	return out, nil
}

// Records converts issues to scoring records.
func Records(owner, repo string, issues []Issue) []triage.Record {
	out := make([]triage.Record, len(issues))
	for i, is := range issues {
		out[i] = is.Record(owner, repo)
	}
	return out
}

var linkNext = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextLink(h http.Header) string {
	if m := linkNext.FindStringSubmatch(h.Get("Link")); m != nil {
		return m[1]
	}
	return ""
}
