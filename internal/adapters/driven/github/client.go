package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.PullRequestSource = (*Client)(nil)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxFiles bounds the changed-file listing (GitHub caps it at 3000).
	MaxFiles = 3000
)

// Config holds configuration for the GitHub client.
type Config struct {
	// Token is a personal access or OAuth token. Public repositories
	// work without one at a much lower rate limit.
	Token string

	// BaseURL overrides the API endpoint (GitHub Enterprise or tests).
	BaseURL string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Client fetches pull requests through go-github.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
}

// NewClient creates a GitHub client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = cfg.Timeout
	}

	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: bad GitHub base URL: %v", domain.ErrInvalidInput, err)
		}
		client.BaseURL = base
	}

	return &Client{gh: client, rateLimiter: NewRateLimiter()}, nil
}

// GetPullRequest returns metadata, changed files and the unified diff.
func (c *Client) GetPullRequest(ctx context.Context, ref domain.PullRequestRef) (*domain.PullRequest, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	pr, resp, err := c.gh.PullRequests.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, c.wrapError(err, resp, "get pull request")
	}
	c.updateRateLimitFromResponse(resp)

	out := &domain.PullRequest{
		Ref:        ref,
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		Author:     pr.GetUser().GetLogin(),
		State:      pr.GetState(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadBranch: pr.GetHead().GetRef(),
		URL:        pr.GetHTMLURL(),
	}
	if pr.GetMerged() {
		out.State = "merged"
	}

	files, err := c.listFiles(ctx, ref)
	if err != nil {
		return nil, err
	}
	out.Files = files

	// The raw diff is optional: very large PRs return 406 and the review
	// falls back to per-file patches.
	diff, err := c.getDiff(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}
		logger.Warn("github: diff for %s unavailable, using file patches: %v", ref, err)
	} else {
		out.Diff = diff
	}

	logger.Debug("github: fetched %s (%d files, %d diff bytes)", ref, len(out.Files), len(out.Diff))
	return out, nil
}

func (c *Client) listFiles(ctx context.Context, ref domain.PullRequestRef) ([]domain.PullRequestFile, error) {
	var files []domain.PullRequestFile
	opts := &gh.ListOptions{PerPage: 100}

	for {
		select {
		case <-ctx.Done():
			return files, ctx.Err()
		default:
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		page, resp, err := c.gh.PullRequests.ListFiles(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			return nil, c.wrapError(err, resp, "list pull request files")
		}
		c.updateRateLimitFromResponse(resp)

		for _, f := range page {
			files = append(files, domain.PullRequestFile{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}

		if resp.NextPage == 0 || len(files) >= MaxFiles {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (c *Client) getDiff(ctx context.Context, ref domain.PullRequestRef) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	diff, resp, err := c.gh.PullRequests.GetRaw(ctx, ref.Owner, ref.Repo, ref.Number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", c.wrapError(err, resp, "get pull request diff")
	}
	c.updateRateLimitFromResponse(resp)
	return diff, nil
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to domain errors.
func (c *Client) wrapError(err error, resp *gh.Response, operation string) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		rlErr := c.rateLimiter.Exceeded(httpResp)
		if !rateLimitErr.Rate.Reset.IsZero() {
			rlErr.ResetAt = rateLimitErr.Rate.Reset.Time
		}
		return rlErr
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		rlErr := c.rateLimiter.Exceeded(httpResp)
		if abuseErr.RetryAfter != nil {
			rlErr.ResetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return rlErr
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return c.rateLimiter.Exceeded(ghErr.Response)
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// Close releases resources.
func (c *Client) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
