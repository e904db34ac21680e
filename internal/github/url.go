package github

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Owners (users and organizations) never contain dots; repository
	// names may.
	hostPattern = regexp.MustCompile(`github\.com[/:]([A-Za-z0-9_-]+)/([^/?#\s]+)`)
	barePattern = regexp.MustCompile(`^([A-Za-z0-9_-]+)/([A-Za-z0-9_.-]+)$`)
)

// ParseRepoURL extracts owner and repository name from an HTTPS or SSH
// GitHub URL, a URL pointing inside the repository, or a bare "owner/repo".
func ParseRepoURL(s string) (owner, repo string, err error) {
	s = strings.TrimRight(strings.TrimSpace(s), "/")

	m := hostPattern.FindStringSubmatch(s)
	if m == nil {
		m = barePattern.FindStringSubmatch(s)
	}
	if m == nil {
		if strings.Contains(s, "github.com") {
			return "", "", fmt.Errorf("github.ParseRepoURL: missing owner or repository in %q", s)
		}
		return "", "", fmt.Errorf("github.ParseRepoURL: invalid GitHub repository %q", s)
	}
	owner, repo = m[1], strings.TrimSuffix(m[2], ".git")
	if owner == "" || repo == "" || repo == "." || repo == ".." {
		return "", "", fmt.Errorf("github.ParseRepoURL: invalid GitHub repository %q", s)
	}
	return owner, repo, nil
}

// CloneURL returns the HTTPS clone URL for owner/repo.
func CloneURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
}
