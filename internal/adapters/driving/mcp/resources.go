package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for taskrag resources.
	uriScheme = "taskrag://"

	// historyLimit bounds the runs listed by the runs resource.
	historyLimit = 20

	// lookupLimit bounds the runs searched for a single run ID.
	lookupLimit = 500
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Executor == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent task execution runs, newest first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}",
		Name:        "run",
		Description: "Outcome of a single task execution run",
		MIMEType:    "application/json",
	}, s.handleRunResource)
}

type runSummary struct {
	RunID      string    `json:"run_id"`
	ProjectID  string    `json:"project_id"`
	State      string    `json:"state"`
	Iterations int       `json:"iterations"`
	Completed  int       `json:"completed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type runDetail struct {
	runSummary
	Outcomes []domain.TaskOutcome `json:"outcomes"`
	Notices  []string             `json:"notices,omitempty"`
}

func summarise(r *domain.ExecutionReport) runSummary {
	return runSummary{
		RunID:      r.RunID,
		ProjectID:  r.ProjectID,
		State:      string(r.State),
		Iterations: r.Iterations,
		Completed:  r.CompletedCount(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// handleRunsResource lists recent runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	reports, err := s.ports.Executor.History(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	summaries := make([]runSummary, len(reports))
	for i, r := range reports {
		summaries[i] = summarise(r)
	}
	return jsonResource(req.Params.URI, summaries)
}

// handleRunResource returns the outcomes of one run.
func (s *Server) handleRunResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runID := extractRunID(req.Params.URI)
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	reports, err := s.ports.Executor.History(ctx, lookupLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	for _, r := range reports {
		if r.RunID == runID {
			return jsonResource(req.Params.URI, runDetail{
				runSummary: summarise(r),
				Outcomes:   r.Outcomes,
				Notices:    r.Notices,
			})
		}
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRunID extracts the run ID from a URI like taskrag://runs/{runId}.
func extractRunID(uri string) string {
	const prefix = uriScheme + "runs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
