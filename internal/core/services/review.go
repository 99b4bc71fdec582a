package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure ReviewService implements the interface.
var _ driving.ReviewService = (*ReviewService)(nil)

// DefaultMaxDiffChars bounds the diff sent to the model.
const DefaultMaxDiffChars = 60000

// ReviewService reviews pull requests with the chat provider, optionally
// grounded in the knowledge base.
type ReviewService struct {
	source       driven.PullRequestSource
	chat         driven.ChatProvider
	rag          ContextSource
	promptStore  driven.PromptStore
	maxDiffChars int
}

// NewReviewService creates a review service. rag may be nil.
func NewReviewService(source driven.PullRequestSource, chat driven.ChatProvider, rag ContextSource) *ReviewService {
	return &ReviewService{
		source:       source,
		chat:         chat,
		rag:          rag,
		maxDiffChars: DefaultMaxDiffChars,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ReviewService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// SetMaxDiffChars overrides the diff budget.
func (s *ReviewService) SetMaxDiffChars(n int) {
	if n > 0 {
		s.maxDiffChars = n
	}
}

// Review fetches the pull request and asks the model for a review.
func (s *ReviewService) Review(ctx context.Context, ref domain.PullRequestRef) (*domain.Review, error) {
	if s.source == nil {
		return nil, domain.ErrGitHubUnavailable
	}
	if s.chat == nil {
		return nil, domain.ErrLLMUnavailable
	}

	logger.Section("Pull Request Review")
	logger.Debug("Fetching %s", ref)

	pr, err := s.source.GetPullRequest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	diff, truncated := reviewDiff(pr, s.maxDiffChars)
	if truncated {
		logger.Warn("Diff of %s truncated to %d characters", ref, s.maxDiffChars)
	}

	ragContext := ""
	if s.rag != nil {
		ragContext = s.rag.ContextFor(ctx, strings.TrimSpace(pr.Title+"\n"+pr.Body))
	}

	resp, err := s.chat.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: driven.RoleSystem, Content: loadPrompt(s.promptStore, driven.PromptReviewSystem, defaultReviewSystemPrompt)},
			{Role: driven.RoleUser, Content: reviewPrompt(pr, diff, ragContext)},
		},
		Temperature: 0.2,
		MaxTokens:   3000,
	})
	if err != nil {
		return nil, fmt.Errorf("review completion: %w", err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, fmt.Errorf("review completion: %w", domain.ErrEmptyResponse)
	}

	return &domain.Review{
		Ref:       ref,
		Title:     pr.Title,
		Text:      resp.Message.Content,
		Files:     len(pr.Files),
		Truncated: truncated,
		Usage:     resp.Usage,
	}, nil
}

// reviewDiff returns the unified diff, assembled from file patches when the
// source provided none, cut to limit characters.
func reviewDiff(pr *domain.PullRequest, limit int) (string, bool) {
	diff := pr.Diff
	if strings.TrimSpace(diff) == "" {
		var b strings.Builder
		for _, f := range pr.Files {
			if f.Patch == "" {
				continue
			}
			fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n%s\n", f.Filename, f.Filename, f.Patch)
		}
		diff = b.String()
	}

	r := []rune(diff)
	if limit > 0 && len(r) > limit {
		return string(r[:limit]), true
	}
	return diff, false
}

func reviewPrompt(pr *domain.PullRequest, diff, ragContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pull request %s: %s\n", pr.Ref, pr.Title)
	if pr.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", pr.Author)
	}
	if pr.BaseBranch != "" || pr.HeadBranch != "" {
		fmt.Fprintf(&b, "Branches: %s <- %s\n", pr.BaseBranch, pr.HeadBranch)
	}
	if body := strings.TrimSpace(pr.Body); body != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", body)
	}
	if len(pr.Files) > 0 {
		b.WriteString("\nChanged files:\n")
		for _, f := range pr.Files {
			fmt.Fprintf(&b, "- %s (%s, +%d -%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
		}
	}
	if strings.TrimSpace(diff) != "" {
		fmt.Fprintf(&b, "\nDiff:\n```diff\n%s\n```\n", diff)
	}
	if strings.TrimSpace(ragContext) != "" {
		fmt.Fprintf(&b, "\nProject documentation that may be relevant:\n%s\n", ragContext)
	}
	return b.String()
}
