package domain

import (
	"fmt"
	"time"
)

// ExecutionState is a state of the tool-calling execution loop.
type ExecutionState string

// Execution states.
const (
	StateFetchTasks   ExecutionState = "FETCH_TASKS"
	StateSelectTask   ExecutionState = "SELECT_TASK"
	StateBuildContext ExecutionState = "BUILD_CONTEXT"
	StateModelTurn    ExecutionState = "MODEL_TURN"
	StateExecuteTools ExecutionState = "EXECUTE_TOOLS"
	StateFinalize     ExecutionState = "FINALIZE"
	StateCloseTask    ExecutionState = "CLOSE_TASK"

	// StateDone means no incomplete tasks remain.
	StateDone ExecutionState = "DONE"

	// StateAborted means a cap, cancellation or persistent failure ended the run early.
	StateAborted ExecutionState = "ABORTED"
)

// IsTerminal returns true for DONE and ABORTED.
func (s ExecutionState) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// String returns the string representation.
func (s ExecutionState) String() string {
	return string(s)
}

// ProgressKind classifies a progress event.
type ProgressKind string

// Progress event kinds.
const (
	ProgressTasksFetched ProgressKind = "tasks_fetched"
	ProgressTaskSelected ProgressKind = "task_selected"
	ProgressContext      ProgressKind = "context"
	ProgressToolCall     ProgressKind = "tool_call"
	ProgressToolError    ProgressKind = "tool_error"
	ProgressResult       ProgressKind = "result"
	ProgressTaskClosed   ProgressKind = "task_closed"
	ProgressCloseFailed  ProgressKind = "close_failed"
	ProgressModelError   ProgressKind = "model_error"
	ProgressCapacity     ProgressKind = "capacity"
	ProgressFinished     ProgressKind = "finished"
)

// ProgressEvent is an observational side-channel message from the loop.
type ProgressEvent struct {
	Kind    ProgressKind
	State   ExecutionState
	TaskID  string
	Message string
	Time    time.Time
}

// ProgressFunc receives progress events. It has no bearing on control flow.
type ProgressFunc func(ProgressEvent)

// TaskOutcome records how one task was processed.
type TaskOutcome struct {
	TaskID  string
	Content string

	// Result is the model's final plain answer, empty if none was produced.
	Result string

	// ToolRounds is the number of model turns that requested tools.
	ToolRounds int

	// ToolCalls is the total number of tool invocations.
	ToolCalls int

	// HitToolCap is set when the inner loop reached its round cap.
	HitToolCap bool

	// Closed is set only after the task manager confirmed completion.
	Closed bool

	// Error describes a model or close failure, if any.
	Error string
}

// ExecutionReport is the result of one execution-loop run.
type ExecutionReport struct {
	RunID      string
	ProjectID  string
	State      ExecutionState
	Iterations int
	Outcomes   []TaskOutcome

	// Notices are user-visible capacity and failure messages.
	Notices []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// CompletedCount returns the number of tasks confirmed closed.
func (r *ExecutionReport) CompletedCount() int {
	n := 0
	for i := range r.Outcomes {
		if r.Outcomes[i].Closed {
			n++
		}
	}
	return n
}

// CompletedIDs returns the IDs of tasks confirmed closed, in processing order.
func (r *ExecutionReport) CompletedIDs() []string {
	var ids []string
	for i := range r.Outcomes {
		if r.Outcomes[i].Closed {
			ids = append(ids, r.Outcomes[i].TaskID)
		}
	}
	return ids
}

// Summary renders a one-line description of the run.
func (r *ExecutionReport) Summary() string {
	switch r.State {
	case StateDone:
		return fmt.Sprintf("all tasks processed: %d completed in %d iterations", r.CompletedCount(), r.Iterations)
	case StateAborted:
		return fmt.Sprintf("run aborted after %d iterations: %d completed", r.Iterations, r.CompletedCount())
	default:
		return fmt.Sprintf("run in state %s: %d completed", r.State, r.CompletedCount())
	}
}
