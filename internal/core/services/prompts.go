package services

import (
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Fallback prompts used when no PromptStore is configured.
// The file-based PromptStore ships the same text as its embedded defaults.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const (
	defaultRAGWrapperPrompt = `Answer the question using the numbered sources below.

Rules:
1. Prioritise the supplied sources over anything else you know.
2. Cite every source you rely on by its number, e.g. [1] or [2][3].
3. Only if the sources do not contain the answer, say so explicitly, then use available tools or general knowledge.

Sources:
%s

Question: %s`

	defaultBreakdownSystemPrompt = `You are a project planner. Break the user's request into concrete, independently completable subtasks.

Respond with a single JSON object and nothing else: no markdown, no code fences, no text before or after it.

Schema:
{"mainTask": string, "subtasks": [{"title": string, "description": string, "priority": 1|2|3|4, "order": integer}]}

Requirements:
- At least 2 subtasks.
- "order" values are unique, ascending and start at 1.
- "priority" is 1 (low) to 4 (urgent).
- Titles are short imperative sentences; details go in "description".`

	defaultExecutorSystemPrompt = `You are an autonomous software engineer working inside the project at %s.
You complete one task at a time using the provided tools.

Working method:
1. Locate the relevant files. Prefer paths mentioned in the supplied context; list directories only when you have no better lead.
2. Read a file before modifying it.
3. When writing, always send the complete new file content, never a diff or fragment.
4. After writing, read the file again to verify the change.
5. When the task is finished, reply with a short plain-text summary of what you changed and do not call any more tools.`

	defaultExecutorTaskPrompt = `Task: %s

Details:
%s

Relevant context from the knowledge base:
%s`

	defaultReviewSystemPrompt = `You are a senior engineer reviewing a pull request.
Review the diff for correctness, security, error handling and readability.
Structure the review as: Summary, Issues (file:line, severity, explanation), Suggestions.
Be specific and concise. Do not restate the diff.`
)

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil {
		logger.Warn("Failed to load prompt %q, using default: %v", name, err)
		return fallback
	}
	if strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}
