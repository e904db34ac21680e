// Package pipeline runs the full scouting flow: fetch and rank issues,
// locate the relevant code for the best one, then write the plan.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/gitrepo"
	"github.com/dshills/issuescout/internal/store"
	"github.com/dshills/issuescout/internal/triage"
)

// Stage names a pipeline phase.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageRank   Stage = "rank"
	StageTriage Stage = "triage"
	StageClone  Stage = "clone"
	StageLocate Stage = "locate"
	StagePlan   Stage = "plan"
	StageDone   Stage = "done"
)

// StageError reports which phase failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ErrNoIssues is returned by Run when the repository has no rankable issues.
var ErrNoIssues = errors.New("pipeline: no open issues to rank")

// Status is one progress update.
type Status struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Observer receives progress updates. It is called synchronously.
type Observer func(Status)

// IssueSource fetches repository metadata and issues.
type IssueSource interface {
	GetRepo(ctx context.Context, owner, repo string) (*github.Repo, error)
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
}

// Cloner produces a local checkout of a repository.
type Cloner interface {
	Clone(ctx context.Context, repoURL string) (string, error)
}

// RunStore persists run logs.
type RunStore interface {
	Save(ctx context.Context, r store.RunLog) error
}

// Pipeline wires the fetcher, scorer and agents together. Store, Observe
// and Log are optional.
type Pipeline struct {
	GitHub  IssueSource
	Cloner  Cloner
	Weights triage.Weights
	TopK    int
	List    github.ListOptions

	Triage  *agent.Triage
	Locator *agent.Locator
	Planner *agent.Planner

	Store   RunStore
	Observe Observer
	Log     *log.Logger

	// Now is the scoring reference time; defaults to time.Now.
	Now func() time.Time
}

// Report is the combined output of a full run.
type Report struct {
	RunID      string               `json:"run_id"`
	Repo       *github.Repo         `json:"repo"`
	Triage     *agent.TriageOutput  `json:"triage"`
	Locator    *agent.LocatorOutput `json:"locator,omitempty"`
	Planner    *agent.PlannerOutput `json:"planner,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Selected returns the issue picked by triage.
func (r *Report) Selected() (agent.RankedIssue, bool) {
	if r.Triage == nil {
		return agent.RankedIssue{}, false
	}
	return r.Triage.SelectedIssue()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *log.Logger {
	if p.Log != nil {
		return p.Log
	}
	return log.Default()
}

func (p *Pipeline) status(stage Stage, msg string, kv ...any) {
	p.logger().Info(msg, append([]any{"stage", stage}, kv...)...)
	if p.Observe != nil {
		p.Observe(Status{Stage: stage, Message: msg})
	}
}

// RankIssues fetches open issues for repoURL, scores them and runs triage.
func (p *Pipeline) RankIssues(ctx context.Context, repoURL string) (*agent.TriageOutput, error) {
	owner, name, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, &StageError{StageFetch, err}
	}

	p.status(StageFetch, "fetching repository", "repo", owner+"/"+name)
	repo, err := p.GitHub.GetRepo(ctx, owner, name)
	if err != nil {
		return nil, &StageError{StageFetch, err}
	}
	issues, err := p.GitHub.ListIssues(ctx, owner, name, p.List)
	if err != nil {
		return nil, &StageError{StageFetch, err}
	}

	p.status(StageRank, fmt.Sprintf("scoring %d issues", len(issues)))
	scorer, err := triage.NewScorer(p.Weights, p.now())
	if err != nil {
		return nil, &StageError{StageRank, err}
	}
	ranked, err := triage.Rank(ctx, scorer, github.Records(owner, name, issues), p.TopK)
	if err != nil {
		return nil, &StageError{StageRank, err}
	}

	p.status(StageTriage, "explaining ranking")
	t := p.Triage
	if t == nil {
		t = &agent.Triage{Log: p.Log}
	}
	out, err := t.Run(ctx, repo, ranked)
	if err != nil {
		return nil, &StageError{StageTriage, err}
	}
	return out, nil
}

// Locate clones repo and searches it for code related to issue.
func (p *Pipeline) Locate(ctx context.Context, repo *github.Repo, issue agent.RankedIssue) (*agent.LocatorOutput, error) {
	p.status(StageClone, "cloning repository", "repo", repo.Owner+"/"+repo.Name)
	url := repo.CloneURL
	if url == "" {
		url = github.CloneURL(repo.Owner, repo.Name)
	}
	dir, err := p.Cloner.Clone(ctx, url)
	if err != nil {
		return nil, &StageError{StageClone, err}
	}
	tree, err := gitrepo.FileTree(dir, gitrepo.DefaultMaxDepth)
	if err != nil {
		return nil, &StageError{StageClone, err}
	}

	p.status(StageLocate, "locating code", "issue", issue.Record.Number, "files", len(tree))
	l := p.Locator
	if l == nil {
		l = &agent.Locator{Log: p.Log}
	}
	out, err := l.Run(ctx, issue.Record, dir, tree)
	if err != nil {
		return nil, &StageError{StageLocate, err}
	}
	return out, nil
}

// Brief writes the briefing and PR draft. loc may be nil.
func (p *Pipeline) Brief(ctx context.Context, repo *github.Repo, issue agent.RankedIssue, loc *agent.LocatorOutput) (*agent.PlannerOutput, error) {
	p.status(StagePlan, "writing briefing", "issue", issue.Record.Number)
	pl := p.Planner
	if pl == nil {
		pl = &agent.Planner{Log: p.Log}
	}
	out, err := pl.Run(ctx, repo, issue, loc)
	if err != nil {
		return nil, &StageError{StagePlan, err}
	}
	return out, nil
}

// Run executes every phase and records the run in Store. A failed clone or
// search degrades to planning without code context.
func (p *Pipeline) Run(ctx context.Context, repoURL string) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	err := p.run(ctx, repoURL, rep)
	rep.FinishedAt = time.Now()
	p.save(rep, repoURL, err)
	if err != nil {
		return rep, err
	}
	p.status(StageDone, "run complete", "run_id", rep.RunID, "duration", rep.Duration().Round(time.Millisecond))
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, repoURL string, rep *Report) error {
	tr, err := p.RankIssues(ctx, repoURL)
	if err != nil {
		return err
	}
	rep.Triage, rep.Repo = tr, tr.Repo

	issue, ok := tr.SelectedIssue()
	if !ok {
		return ErrNoIssues
	}

	loc, err := p.Locate(ctx, rep.Repo, issue)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger().Warn("code location failed, planning without it", "err", err)
	}
	rep.Locator = loc

	rep.Planner, err = p.Brief(ctx, rep.Repo, issue, loc)
	return err
}

func (p *Pipeline) save(rep *Report, repoURL string, runErr error) {
	if p.Store == nil {
		return
	}
	rl := store.RunLog{
		ID:         rep.RunID,
		Repo:       repoURL,
		Status:     store.StatusCompleted,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if rep.Repo != nil && rep.Repo.Owner != "" {
		rl.Repo = rep.Repo.Owner + "/" + rep.Repo.Name
	} else if owner, name, err := github.ParseRepoURL(repoURL); err == nil {
		rl.Repo = owner + "/" + name
	}
	if runErr != nil {
		rl.Status, rl.Error = store.StatusFailed, runErr.Error()
	}
	if issue, ok := rep.Selected(); ok {
		rl.Selected, rl.BestScore = issue.Record.Number, issue.Breakdown.Total
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		p.logger().Warn("encoding run payload", "err", err)
	} else {
		rl.Payload = payload
	}

	// The run context may already be canceled; the log entry should still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Store.Save(ctx, rl); err != nil {
		p.logger().Warn("saving run log", "run_id", rl.ID, "err", err)
	}
}
