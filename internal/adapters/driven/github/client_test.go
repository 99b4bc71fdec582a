package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

var testRef = domain.PullRequestRef{Owner: "acme", Repo: "api", Number: 7}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := NewClient(context.Background(), Config{Token: "tok", BaseURL: server.URL})
	require.NoError(t, err)
	c.rateLimiter = newRateLimiter(rate.Inf)
	return c
}

func TestGetPullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if r.Header.Get("Accept") == "application/vnd.github.v3.diff" {
			_, _ = w.Write([]byte("diff --git a/main.go b/main.go\n+fmt.Println()\n"))
			return
		}
		w.Header().Set(HeaderRateRemaining, "4990")
		_, _ = w.Write([]byte(`{
			"number": 7, "title": "Add cache", "body": "Uses redis", "state": "open",
			"html_url": "https://github.com/acme/api/pull/7",
			"user": {"login": "dev"},
			"base": {"ref": "main"}, "head": {"ref": "feature/cache"}
		}`))
	})
	mux.HandleFunc("/repos/acme/api/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"filename": "main.go", "status": "modified", "additions": 1, "deletions": 0, "patch": "+fmt.Println()"},
			{"filename": "cache.go", "status": "added", "additions": 40, "deletions": 0}
		]`))
	})

	c := newTestClient(t, mux)
	pr, err := c.GetPullRequest(context.Background(), testRef)
	require.NoError(t, err)

	assert.Equal(t, testRef, pr.Ref)
	assert.Equal(t, "Add cache", pr.Title)
	assert.Equal(t, "Uses redis", pr.Body)
	assert.Equal(t, "dev", pr.Author)
	assert.Equal(t, "open", pr.State)
	assert.Equal(t, "main", pr.BaseBranch)
	assert.Equal(t, "feature/cache", pr.HeadBranch)
	assert.Equal(t, "https://github.com/acme/api/pull/7", pr.URL)
	require.Len(t, pr.Files, 2)
	assert.Equal(t, domain.PullRequestFile{Filename: "main.go", Status: "modified", Additions: 1, Patch: "+fmt.Println()"}, pr.Files[0])
	assert.Contains(t, pr.Diff, "diff --git a/main.go")
	assert.Equal(t, 4990, c.rateLimiter.Remaining())
}

func TestGetPullRequest_MergedState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/vnd.github.v3.diff" {
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"message": "diff too large"}`))
			return
		}
		_, _ = w.Write([]byte(`{"number": 7, "title": "Done", "state": "closed", "merged": true}`))
	})
	mux.HandleFunc("/repos/acme/api/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	pr, err := newTestClient(t, mux).GetPullRequest(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "merged", pr.State)
	assert.Empty(t, pr.Diff, "diff failure falls back to file patches")
}

func TestGetPullRequest_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: domain.ErrNotFound},
		{name: "unauthorised", status: http.StatusUnauthorized, want: domain.ErrGitHubUnavailable},
		{
			name:   "quota exhausted",
			status: http.StatusForbidden,
			header: map[string]string{
				HeaderRateRemaining: "0",
				HeaderRateLimit:     "5000",
				HeaderRateReset:     strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
			},
			want: domain.ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/api/pulls/7", func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message": "API rate limit exceeded"}`))
			})

			_, err := newTestClient(t, mux).GetPullRequest(context.Background(), testRef)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRateLimiter_Exceeded(t *testing.T) {
	r := NewRateLimiter()
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(HeaderRateRemaining, "0")
	resp.Header.Set(HeaderRateLimit, "5000")
	resp.Header.Set(HeaderRetryAfter, "120")

	rlErr := r.Exceeded(resp)
	assert.Equal(t, 0, rlErr.Remaining)
	assert.Equal(t, 5000, rlErr.Limit)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), rlErr.ResetAt, 5*time.Second)
	assert.ErrorIs(t, rlErr, domain.ErrRateLimited)
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	r := newRateLimiter(rate.Inf)
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(HeaderRateRemaining, "1")
	resp.Header.Set(HeaderRateReset, strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	r.UpdateFromResponse(resp)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestNewClient_BadBaseURL(t *testing.T) {
	_, err := NewClient(context.Background(), Config{BaseURL: "://bad"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
