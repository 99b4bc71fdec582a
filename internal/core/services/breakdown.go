package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure BreakdownService implements the interface.
var _ driving.BreakdownService = (*BreakdownService)(nil)

// codeFence matches an opening ``` fence with an optional language tag, or a
// closing fence.
var codeFence = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// BreakdownService decomposes a feature request into subtasks with one model
// call and publishes them to the task manager.
type BreakdownService struct {
	chat        driven.ChatProvider
	tasks       driven.TaskManager
	projects    *ProjectResolver
	promptStore driven.PromptStore

	temperature float64
	maxTokens   int
}

// NewBreakdownService creates a breakdown service. tasks and projects may be
// nil, which only disables PublishBreakdown.
func NewBreakdownService(chat driven.ChatProvider, tasks driven.TaskManager, projects *ProjectResolver) *BreakdownService {
	return &BreakdownService{
		chat:        chat,
		tasks:       tasks,
		projects:    projects,
		temperature: 0.2,
		maxTokens:   2000,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *BreakdownService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// BreakdownTask asks the model for a strict-JSON subtask list.
func (s *BreakdownService) BreakdownTask(ctx context.Context, userMessage, ragContext string) (*domain.TaskBreakdown, error) {
	if s.chat == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, fmt.Errorf("%w: empty request", domain.ErrInvalidInput)
	}

	logger.Section("Task Breakdown")
	logger.Debug("Request: %q (context: %d chars)", userMessage, len(ragContext))

	user := userMessage
	if strings.TrimSpace(ragContext) != "" {
		user = fmt.Sprintf("%s\n\nProject context:\n%s", userMessage, ragContext)
	}

	resp, err := s.chat.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: driven.RoleSystem, Content: loadPrompt(s.promptStore, driven.PromptBreakdownSystem, defaultBreakdownSystemPrompt)},
			{Role: driven.RoleUser, Content: user},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("breakdown completion: %w", err)
	}

	breakdown, err := ParseBreakdown(resp.Message.Content)
	if err != nil {
		return nil, err
	}
	if breakdown.MainTask == "" {
		breakdown.MainTask = userMessage
	}
	if !breakdown.HasSequentialOrder() {
		logger.Warn("Breakdown orders are not 1..%d, sorting stably", len(breakdown.Subtasks))
	}
	breakdown.Subtasks = breakdown.SortedSubtasks()

	logger.Info("Breakdown produced %d subtasks", len(breakdown.Subtasks))
	return breakdown, nil
}

// ParseBreakdown parses a model response into a breakdown. Code fences are
// stripped first. Anything that does not parse into at least one titled
// subtask returns *domain.BreakdownParseError carrying the raw text.
func ParseBreakdown(raw string) (*domain.TaskBreakdown, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))

	var b domain.TaskBreakdown
	if err := json.Unmarshal([]byte(cleaned), &b); err != nil {
		return nil, &domain.BreakdownParseError{Raw: raw, Err: err}
	}
	if len(b.Subtasks) == 0 {
		return nil, &domain.BreakdownParseError{Raw: raw, Err: errors.New("no subtasks")}
	}
	for i, st := range b.Subtasks {
		if strings.TrimSpace(st.Title) == "" {
			return nil, &domain.BreakdownParseError{Raw: raw, Err: fmt.Errorf("subtask %d has no title", i+1)}
		}
	}
	return &b, nil
}

// PublishBreakdown creates one task per subtask, in order, in the named
// project. When the project cannot be resolved tasks go to the inbox.
// Failures for single subtasks are collected in the result.
func (s *BreakdownService) PublishBreakdown(
	ctx context.Context, breakdown *domain.TaskBreakdown, projectName string,
) (*domain.PublishResult, error) {
	if s.tasks == nil {
		return nil, domain.ErrTaskManagerUnavailable
	}
	if breakdown == nil || len(breakdown.Subtasks) == 0 {
		return nil, fmt.Errorf("%w: empty breakdown", domain.ErrInvalidInput)
	}

	projectID := breakdown.ProjectID
	if projectID == "" && projectName != "" && s.projects != nil {
		projectID = s.projects.GetOrCreateProjectID(ctx, projectName)
		if projectID == "" {
			logger.Warn("Project %q unavailable, publishing to inbox", projectName)
		}
	}
	breakdown.ProjectID = projectID

	result := &domain.PublishResult{ProjectID: projectID}
	for _, st := range breakdown.SortedSubtasks() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		create := domain.TaskCreate{
			Content:     st.Title,
			ProjectID:   projectID,
			Description: st.Description,
		}
		if st.Priority.IsValid() {
			create.Priority = st.Priority
		}

		task, err := s.tasks.CreateTask(ctx, create)
		if err != nil {
			logger.Warn("Create task %q failed: %v", st.Title, err)
			result.Failed = append(result.Failed, st.Title)
			continue
		}
		result.TaskIDs = append(result.TaskIDs, task.ID)
	}

	logger.Info("Published %d/%d subtasks", len(result.TaskIDs), len(breakdown.Subtasks))
	return result, nil
}
