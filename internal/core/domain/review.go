package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PullRequestRef identifies a pull request.
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

// String renders the ref as owner/repo#number.
func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParsePullRequestRef accepts "owner/repo#12", "owner/repo/12" or a
// https://github.com/owner/repo/pull/12 URL.
func ParsePullRequestRef(s string) (PullRequestRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return PullRequestRef{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 4 || parts[2] != "pull" {
			return PullRequestRef{}, fmt.Errorf("%w: not a pull request URL: %s", ErrInvalidInput, s)
		}
		return buildRef(parts[0], parts[1], parts[3])
	}

	if owner, rest, ok := strings.Cut(s, "/"); ok {
		if repo, num, ok := strings.Cut(rest, "#"); ok {
			return buildRef(owner, repo, num)
		}
		if repo, num, ok := strings.Cut(rest, "/"); ok {
			return buildRef(owner, repo, num)
		}
	}
	return PullRequestRef{}, fmt.Errorf("%w: expected owner/repo#number, got %q", ErrInvalidInput, s)
}

func buildRef(owner, repo, num string) (PullRequestRef, error) {
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 || owner == "" || repo == "" {
		return PullRequestRef{}, fmt.Errorf("%w: bad pull request reference %s/%s#%s", ErrInvalidInput, owner, repo, num)
	}
	return PullRequestRef{Owner: owner, Repo: repo, Number: n}, nil
}

// PullRequestFile is one changed file of a pull request.
type PullRequestFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// PullRequest is the review input fetched from GitHub.
type PullRequest struct {
	Ref        PullRequestRef
	Title      string
	Body       string
	Author     string
	State      string
	BaseBranch string
	HeadBranch string
	URL        string
	Files      []PullRequestFile
	Diff       string
}

// Review is an LLM-written pull-request review.
type Review struct {
	Ref       PullRequestRef
	Title     string
	Text      string
	Files     int
	Truncated bool
	Usage     Usage
}
