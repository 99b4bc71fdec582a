package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Tool names offered to the model.
const (
	ToolListFiles     = "list_files"
	ToolReadFile      = "read_file"
	ToolWriteFile     = "write_file"
	ToolSearchInFiles = "search_in_files"
	ToolGetFileInfo   = "get_file_info"
	ToolListTasks     = "list_project_tasks"
	ToolCreateTask    = "create_task"
)

// toolFunc runs a tool with decoded arguments and returns a JSON-encodable result.
type toolFunc func(ctx context.Context, args toolArgs) (any, error)

type tool struct {
	spec driven.ToolSpec
	run  toolFunc
}

// Toolset is the set of tools one execution run offers to the model.
type Toolset struct {
	tools map[string]tool
	order []string
}

// NewToolset builds the project file tools and, when tasks is non-nil, task
// manager tools scoped to projectID. Either collaborator may be nil.
func NewToolset(files driven.ProjectTools, tasks driven.TaskManager, projectID string) *Toolset {
	ts := &Toolset{tools: make(map[string]tool)}

	if files != nil {
		ts.add(ToolListFiles, "List files and directories at a path relative to the project root.",
			schema(map[string]any{"path": str("Directory path, '.' for the project root")}),
			func(ctx context.Context, a toolArgs) (any, error) {
				return files.List(ctx, a.optional("path"))
			})
		ts.add(ToolReadFile, "Read the full content of a file.",
			schema(map[string]any{"path": str("File path relative to the project root")}, "path"),
			func(ctx context.Context, a toolArgs) (any, error) {
				path, err := a.required("path")
				if err != nil {
					return nil, err
				}
				content, err := files.Read(ctx, path)
				if err != nil {
					return nil, err
				}
				return map[string]any{"path": path, "content": content}, nil
			})
		ts.add(ToolWriteFile, "Replace a file with the given complete content. Creates the file if needed.",
			schema(map[string]any{
				"path":    str("File path relative to the project root"),
				"content": str("The complete new file content"),
			}, "path", "content"),
			func(ctx context.Context, a toolArgs) (any, error) {
				path, err := a.required("path")
				if err != nil {
					return nil, err
				}
				content, ok := a["content"].(string)
				if !ok {
					return nil, errors.New("missing string argument \"content\"")
				}
				if err := files.Write(ctx, path, content); err != nil {
					return nil, err
				}
				return map[string]any{"path": path, "written": len(content)}, nil
			})
		ts.add(ToolSearchInFiles, "Search file contents for a text, optionally limited to files matching a glob.",
			schema(map[string]any{
				"query":   str("Text to look for"),
				"pattern": str("Optional file name glob, e.g. *.go"),
			}, "query"),
			func(ctx context.Context, a toolArgs) (any, error) {
				query, err := a.required("query")
				if err != nil {
					return nil, err
				}
				return files.SearchInFiles(ctx, query, a.optional("pattern"))
			})
		ts.add(ToolGetFileInfo, "Get size, type and modification time of a path.",
			schema(map[string]any{"path": str("Path relative to the project root")}, "path"),
			func(ctx context.Context, a toolArgs) (any, error) {
				path, err := a.required("path")
				if err != nil {
					return nil, err
				}
				return files.GetInfo(ctx, path)
			})
	}

	if tasks != nil {
		ts.add(ToolListTasks, "List the open tasks of the current project.",
			schema(map[string]any{}),
			func(ctx context.Context, _ toolArgs) (any, error) {
				return tasks.ListTasks(ctx, projectID, domain.TaskFilter{})
			})
		ts.add(ToolCreateTask, "Create a follow-up task in the current project.",
			schema(map[string]any{
				"content":     str("Task title"),
				"description": str("Optional details"),
				"priority":    map[string]any{"type": "integer", "minimum": 1, "maximum": 4},
			}, "content"),
			func(ctx context.Context, a toolArgs) (any, error) {
				content, err := a.required("content")
				if err != nil {
					return nil, err
				}
				create := domain.TaskCreate{
					Content:     content,
					ProjectID:   projectID,
					Description: a.optional("description"),
				}
				if p, ok := a["priority"].(float64); ok && domain.Priority(p).IsValid() {
					create.Priority = domain.Priority(p)
				}
				return tasks.CreateTask(ctx, create)
			})
	}

	return ts
}

// Specs returns the tool specs in registration order.
func (t *Toolset) Specs() []driven.ToolSpec {
	specs := make([]driven.ToolSpec, 0, len(t.order))
	for _, name := range t.order {
		specs = append(specs, t.tools[name].spec)
	}
	return specs
}

// Len returns the number of tools.
func (t *Toolset) Len() int {
	return len(t.order)
}

// Execute runs one tool call and returns its JSON result. Unknown tools,
// malformed arguments and tool failures return *domain.ToolError.
func (t *Toolset) Execute(ctx context.Context, call driven.ToolCall) (string, error) {
	tl, ok := t.tools[call.Name]
	if !ok {
		return "", &domain.ToolError{Tool: call.Name, Reason: "unknown tool", Err: domain.ErrNotFound}
	}

	args := toolArgs{}
	if raw := strings.TrimSpace(call.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return "", &domain.ToolError{Tool: call.Name, Reason: "arguments are not a JSON object: " + err.Error(), Err: domain.ErrInvalidInput}
		}
	}

	result, err := tl.run(ctx, args)
	if err != nil {
		return "", &domain.ToolError{Tool: call.Name, Reason: err.Error(), Err: err}
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", &domain.ToolError{Tool: call.Name, Reason: "encode result", Err: err}
	}
	return string(out), nil
}

// ToolErrorResult renders err as the {"error": reason} payload fed back to the model.
func ToolErrorResult(err error) string {
	reason := err.Error()
	var te *domain.ToolError
	if errors.As(err, &te) && te.Reason != "" {
		reason = te.Reason
	}
	out, _ := json.Marshal(map[string]string{"error": reason})
	return string(out)
}

func (t *Toolset) add(name, description string, params map[string]any, run toolFunc) {
	t.tools[name] = tool{
		spec: driven.ToolSpec{Name: name, Description: description, Parameters: params},
		run:  run,
	}
	t.order = append(t.order, name)
}

type toolArgs map[string]any

func (a toolArgs) optional(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a toolArgs) required(key string) (string, error) {
	s, ok := a[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("missing string argument %q", key)
	}
	return s, nil
}

func schema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
