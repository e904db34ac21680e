// Package gitrepo keeps shallow clones of GitHub repositories in a local
// cache and lists their source files.
package gitrepo

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"

	"github.com/dshills/issuescout/internal/github"
)

// Cloner clones repositories into CacheDir/repos.
type Cloner struct {
	CacheDir string
	// Refresh pulls the latest commit into an existing checkout.
	Refresh bool
	Log     *log.Logger
}

// Dir returns the checkout directory for owner/repo.
func (c *Cloner) Dir(owner, repo string) string {
	sum := sha256.Sum256([]byte(owner + "/" + repo))
	name := fmt.Sprintf("%s_%s_%x", owner, repo, sum[:6])
	return filepath.Join(c.CacheDir, "repos", name)
}

// Clone makes a depth-1 single-branch clone of repoURL and returns its
// directory. An existing checkout is reused.
func (c *Cloner) Clone(ctx context.Context, repoURL string) (string, error) {
	owner, name, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return "", fmt.Errorf("gitrepo.Clone: %w", err)
	}
	dir := c.Dir(owner, name)

	if r, err := git.PlainOpen(dir); err == nil {
		if c.Refresh {
			c.pull(ctx, r, dir)
		}
		// Prune ages checkouts by directory mtime, so mark it as used.
		now := time.Now()
		if err := os.Chtimes(dir, now, now); err != nil {
			c.logger().Warn("touch checkout", "dir", dir, "err", err)
		}
		c.logger().Debug("reusing checkout", "repo", owner+"/"+name, "dir", dir)
		return dir, nil
	}

	// A directory that is not a repository is a failed earlier clone.
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("gitrepo.Clone: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", fmt.Errorf("gitrepo.Clone: %w", err)
	}

	c.logger().Info("cloning repository", "repo", owner+"/"+name)
	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          github.CloneURL(owner, name),
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("gitrepo.Clone %s/%s: %w", owner, name, err)
	}
	return dir, nil
}

func (c *Cloner) pull(ctx context.Context, r *git.Repository, dir string) {
	wt, err := r.Worktree()
	if err != nil {
		c.logger().Warn("open worktree", "dir", dir, "err", err)
		return
	}
	err = wt.PullContext(ctx, &git.PullOptions{Depth: 1, SingleBranch: true, Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		c.logger().Warn("pull failed, using existing checkout", "dir", dir, "err", err)
	}
}

// Prune removes checkouts not cloned or reused within maxAge and returns how
// many were removed.
func (c *Cloner) Prune(maxAge time.Duration, now time.Time) (int, error) {
	root := filepath.Join(c.CacheDir, "repos")
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("gitrepo.Prune: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return removed, fmt.Errorf("gitrepo.Prune: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (c *Cloner) logger() *log.Logger {
	if c.Log != nil {
		return c.Log
	}
	return log.Default()
}
