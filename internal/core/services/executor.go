package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Executor implements the interface.
var _ driving.ExecutorService = (*Executor)(nil)

// ContextSource supplies retrieval context for a query. It never fails;
// "" means nothing relevant was found.
type ContextSource interface {
	ContextFor(ctx context.Context, query string) string
}

// ExecutorConfig bounds the execution loop.
type ExecutorConfig struct {
	MaxTaskIterations int
	MaxToolRounds     int
	ToolTimeout       time.Duration
	CompletionTimeout time.Duration
	UseRAG            bool
	CloseOnToolCap    bool
	Temperature       float64
	MaxTokens         int
}

// DefaultExecutorConfig returns the default caps.
func DefaultExecutorConfig() ExecutorConfig {
	d := domain.DefaultExecutorSettings()
	return ExecutorConfig{
		MaxTaskIterations: d.MaxTaskIterations,
		MaxToolRounds:     d.MaxToolRounds,
		ToolTimeout:       d.ToolTimeout,
		CompletionTimeout: d.CompletionTimeout,
		UseRAG:            d.UseRAG,
		CloseOnToolCap:    d.CloseOnToolCap,
		Temperature:       0.2,
		MaxTokens:         4000,
	}
}

// ExecutorConfigFromSettings maps persisted settings onto an ExecutorConfig.
func ExecutorConfigFromSettings(s domain.AppSettings) ExecutorConfig {
	cfg := DefaultExecutorConfig()
	e := s.Executor
	if e.MaxTaskIterations > 0 {
		cfg.MaxTaskIterations = e.MaxTaskIterations
	}
	if e.MaxToolRounds > 0 {
		cfg.MaxToolRounds = e.MaxToolRounds
	}
	if e.ToolTimeout > 0 {
		cfg.ToolTimeout = e.ToolTimeout
	}
	if e.CompletionTimeout > 0 {
		cfg.CompletionTimeout = e.CompletionTimeout
	}
	cfg.UseRAG = e.UseRAG
	cfg.CloseOnToolCap = e.CloseOnToolCap
	return cfg
}

// Executor drives a model through tool calls until every task of a project
// is done. Both loops are capped: MaxTaskIterations task fetches per run
// and MaxToolRounds tool rounds per task.
type Executor struct {
	chat        driven.ChatProvider
	tasks       driven.TaskManager
	files       driven.ProjectTools
	rag         ContextSource
	runs        driven.RunStore
	promptStore driven.PromptStore
	cfg         ExecutorConfig
	now         func() time.Time
}

// NewExecutor creates an executor. files, rag and runs are optional.
func NewExecutor(
	chat driven.ChatProvider,
	tasks driven.TaskManager,
	files driven.ProjectTools,
	rag ContextSource,
	cfg ExecutorConfig,
) *Executor {
	def := DefaultExecutorConfig()
	if cfg.MaxTaskIterations <= 0 {
		cfg.MaxTaskIterations = def.MaxTaskIterations
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = def.MaxToolRounds
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = def.ToolTimeout
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = def.CompletionTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return &Executor{
		chat:  chat,
		tasks: tasks,
		files: files,
		rag:   rag,
		cfg:   cfg,
		now:   time.Now,
	}
}

// SetRunStore enables run recording.
func (e *Executor) SetRunStore(store driven.RunStore) {
	e.runs = store
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (e *Executor) SetPromptStore(store driven.PromptStore) {
	e.promptStore = store
}

// History returns recent runs, newest first.
func (e *Executor) History(ctx context.Context, limit int) ([]*domain.ExecutionReport, error) {
	if e.runs == nil {
		return []*domain.ExecutionReport{}, nil
	}
	return e.runs.ListRuns(ctx, limit)
}

// Run processes the incomplete tasks of projectID one at a time.
//
// Each iteration re-fetches the task list, selects the first incomplete
// task not yet failed in this run, runs the tool loop on it and closes it.
// The run ends DONE when no incomplete task remains, and ABORTED when the
// iteration cap is reached, ctx is cancelled, the task list cannot be
// fetched, or only failed tasks remain. A task is marked closed only after
// the task manager confirmed it.
func (e *Executor) Run(ctx context.Context, projectID string, onProgress domain.ProgressFunc) (*domain.ExecutionReport, error) {
	if e.chat == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if e.tasks == nil {
		return nil, domain.ErrTaskManagerUnavailable
	}
	if !e.chat.SupportsTools() {
		return nil, fmt.Errorf("%s: %w", e.chat.ModelName(), domain.ErrToolsUnsupported)
	}

	r := &run{
		Executor:   e,
		toolset:    NewToolset(e.files, e.tasks, projectID),
		onProgress: onProgress,
		skip:       make(map[string]bool),
		report: &domain.ExecutionReport{
			RunID:     uuid.New().String(),
			ProjectID: projectID,
			State:     domain.StateFetchTasks,
			StartedAt: e.now(),
		},
	}

	logger.Section("Execution Run")
	logger.Debug("Run %s on project %q with %d tools", r.report.RunID, projectID, r.toolset.Len())
	r.save(ctx)

	r.loop(ctx)

	r.report.FinishedAt = e.now()
	r.emit(domain.ProgressFinished, "", r.report.Summary())
	r.save(context.WithoutCancel(ctx))

	logger.Info("Run %s finished: %s", r.report.RunID, r.report.Summary())
	return r.report, nil
}

// run is the state of one Executor.Run call.
type run struct {
	*Executor
	report     *domain.ExecutionReport
	toolset    *Toolset
	onProgress domain.ProgressFunc

	// skip holds tasks that failed or could not be closed in this run.
	skip map[string]bool
}

func (r *run) loop(ctx context.Context) {
	for {
		if err := ctx.Err(); err != nil {
			r.abort("run cancelled: " + err.Error())
			return
		}
		if r.report.Iterations >= r.cfg.MaxTaskIterations {
			capErr := &domain.CapacityError{Resource: "task iterations", Limit: r.cfg.MaxTaskIterations}
			logger.Capacity(capErr.Resource, capErr.Limit)
			r.emit(domain.ProgressCapacity, "", capErr.Error())
			r.abort(capErr.Error())
			return
		}
		r.report.Iterations++

		r.setState(domain.StateFetchTasks)
		tasks, err := r.tasks.ListTasks(ctx, r.report.ProjectID, domain.TaskFilter{})
		if err != nil {
			if domain.IsTransient(err) {
				r.abort("fetch tasks (transient, retry later): " + err.Error())
				return
			}
			logger.Error("fetch tasks: %v", err)
			r.abort("fetch tasks: " + err.Error())
			return
		}

		open := incomplete(tasks)
		r.emit(domain.ProgressTasksFetched, "", fmt.Sprintf("%d open tasks", len(open)))
		if len(open) == 0 {
			r.setState(domain.StateDone)
			return
		}

		r.setState(domain.StateSelectTask)
		task, ok := r.selectTask(open)
		if !ok {
			r.abort(fmt.Sprintf("%d open tasks remain but all failed in this run", len(open)))
			return
		}
		r.emit(domain.ProgressTaskSelected, task.ID, task.Content)

		outcome := r.processTask(ctx, task)
		r.finishTask(ctx, &outcome)
		r.report.Outcomes = append(r.report.Outcomes, outcome)
		r.save(ctx)
	}
}

func (r *run) selectTask(open []domain.Task) (domain.Task, bool) {
	for _, t := range open {
		if !r.skip[t.ID] {
			return t, true
		}
	}
	return domain.Task{}, false
}

// processTask runs the inner tool loop for one task. Model failures are
// recorded in the outcome; tool failures are fed back to the model.
func (r *run) processTask(ctx context.Context, task domain.Task) domain.TaskOutcome {
	outcome := domain.TaskOutcome{TaskID: task.ID, Content: task.Content}

	r.setState(domain.StateBuildContext)
	ragContext := ""
	if r.cfg.UseRAG && r.rag != nil {
		ragContext = r.rag.ContextFor(ctx, strings.TrimSpace(task.Content+"\n"+task.Description))
	}
	r.emit(domain.ProgressContext, task.ID, fmt.Sprintf("%d chars of retrieved context", len(ragContext)))

	messages := r.initialMessages(task, ragContext)
	specs := r.toolset.Specs()

	for {
		if err := ctx.Err(); err != nil {
			outcome.Error = "cancelled: " + err.Error()
			return outcome
		}

		r.setState(domain.StateModelTurn)
		resp, err := r.complete(ctx, messages, specs)
		if err != nil {
			outcome.Error = err.Error()
			logger.Error("task %s: model call failed: %v", task.ID, err)
			r.emit(domain.ProgressModelError, task.ID, err.Error())
			return outcome
		}

		if !resp.HasToolCalls() {
			r.setState(domain.StateFinalize)
			outcome.Result = strings.TrimSpace(resp.Message.Content)
			r.emit(domain.ProgressResult, task.ID, snippet(outcome.Result, 200))
			return outcome
		}

		if outcome.ToolRounds >= r.cfg.MaxToolRounds {
			outcome.HitToolCap = true
			outcome.Result = strings.TrimSpace(resp.Message.Content)
			if outcome.Result != "" {
				r.emit(domain.ProgressResult, task.ID, snippet(outcome.Result, 200))
			}
			capErr := &domain.CapacityError{Resource: "tool rounds", Limit: r.cfg.MaxToolRounds}
			logger.Capacity(capErr.Resource, capErr.Limit)
			r.report.Notices = append(r.report.Notices, fmt.Sprintf("task %s: %s", task.ID, capErr.Error()))
			r.emit(domain.ProgressCapacity, task.ID, capErr.Error())
			return outcome
		}
		outcome.ToolRounds++

		r.setState(domain.StateExecuteTools)
		messages = append(messages, driven.ChatMessage{
			Role:      driven.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		})
		for _, call := range resp.Message.ToolCalls {
			outcome.ToolCalls++
			r.emit(domain.ProgressToolCall, task.ID, fmt.Sprintf("%s(%s)", call.Name, snippet(call.Arguments, 80)))

			content, err := r.executeTool(ctx, call)
			if err != nil {
				r.emit(domain.ProgressToolError, task.ID, err.Error())
				content = ToolErrorResult(err)
			}
			messages = append(messages, driven.ChatMessage{
				Role:       driven.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
}

// finishTask closes the task unless processing failed. Tasks that are not
// closed are skipped for the rest of the run.
func (r *run) finishTask(ctx context.Context, outcome *domain.TaskOutcome) {
	switch {
	case outcome.Error != "":
		r.skip[outcome.TaskID] = true
		r.report.Notices = append(r.report.Notices, fmt.Sprintf("task %s not completed: %s", outcome.TaskID, outcome.Error))
		return
	case outcome.HitToolCap && !r.cfg.CloseOnToolCap:
		r.skip[outcome.TaskID] = true
		return
	case ctx.Err() != nil:
		r.skip[outcome.TaskID] = true
		return
	}

	r.setState(domain.StateCloseTask)
	if err := r.tasks.CloseTask(ctx, outcome.TaskID); err != nil {
		r.skip[outcome.TaskID] = true
		outcome.Error = "close task: " + err.Error()
		logger.Error("close task %s: %v", outcome.TaskID, err)
		r.emit(domain.ProgressCloseFailed, outcome.TaskID, err.Error())
		return
	}
	outcome.Closed = true
	r.emit(domain.ProgressTaskClosed, outcome.TaskID, outcome.Content)
}

func (r *run) initialMessages(task domain.Task, ragContext string) []driven.ChatMessage {
	system := fmt.Sprintf(loadPrompt(r.promptStore, driven.PromptExecutorSystem, defaultExecutorSystemPrompt), r.projectRoot())

	description := task.Description
	if strings.TrimSpace(description) == "" {
		description = "(none)"
	}
	if strings.TrimSpace(ragContext) == "" {
		ragContext = "(none)"
	}
	user := fmt.Sprintf(loadPrompt(r.promptStore, driven.PromptExecutorTask, defaultExecutorTaskPrompt),
		task.Content, description, ragContext)

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}
}

func (r *run) complete(ctx context.Context, messages []driven.ChatMessage, specs []driven.ToolSpec) (*driven.CompletionResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CompletionTimeout)
	defer cancel()

	resp, err := r.chat.Complete(cctx, driven.CompletionRequest{
		Messages:    messages,
		Tools:       specs,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("model call timed out after %s: %w", r.cfg.CompletionTimeout, err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, domain.ErrEmptyResponse
	}
	return resp, nil
}

// executeTool runs one call synchronously under ToolTimeout.
func (r *run) executeTool(ctx context.Context, call driven.ToolCall) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, r.cfg.ToolTimeout)
	defer cancel()

	defer logger.Timed("tool " + call.Name)()
	out, err := r.toolset.Execute(tctx, call)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return "", &domain.ToolError{
			Tool:   call.Name,
			Reason: fmt.Sprintf("timed out after %s", r.cfg.ToolTimeout),
			Err:    err,
		}
	}
	return out, err
}

func (r *run) projectRoot() string {
	if r.files == nil {
		return "(no project directory)"
	}
	return r.files.Root()
}

func (r *run) setState(s domain.ExecutionState) {
	r.report.State = s
}

func (r *run) abort(notice string) {
	r.report.State = domain.StateAborted
	r.report.Notices = append(r.report.Notices, notice)
	logger.Warn("Run aborted: %s", notice)
}

func (r *run) emit(kind domain.ProgressKind, taskID, message string) {
	ev := domain.ProgressEvent{
		Kind:    kind,
		State:   r.report.State,
		TaskID:  taskID,
		Message: message,
		Time:    r.now(),
	}
	logger.Debug("[%s] %s %s", kind, taskID, message)
	if r.onProgress != nil {
		r.onProgress(ev)
	}
	if r.runs != nil {
		if err := r.runs.AppendEvent(context.Background(), r.report.RunID, ev); err != nil {
			logger.Warn("Record progress event: %v", err)
		}
	}
}

func (r *run) save(ctx context.Context) {
	if r.runs == nil {
		return
	}
	if err := r.runs.SaveRun(ctx, r.report); err != nil {
		logger.Warn("Record run %s: %v", r.report.RunID, err)
	}
}

// incomplete returns the open tasks in project order. Ties keep the order
// the task manager returned them in.
func incomplete(tasks []domain.Task) []domain.Task {
	open := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsCompleted {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Order < open[j].Order
	})
	return open
}

// snippet shortens s to n runes on one line.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
