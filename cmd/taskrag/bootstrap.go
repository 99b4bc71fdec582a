package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/taskrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/github"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/mcpclient"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/projectfs"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/storage/jsonfile"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/taskrag/internal/adapters/driven/todoist"
	"github.com/custodia-labs/taskrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/taskrag/internal/connectors/filesystem"
	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/services"
	"github.com/custodia-labs/taskrag/internal/logger"
	"github.com/custodia-labs/taskrag/internal/normalisers"
	"github.com/custodia-labs/taskrag/internal/postprocessors/chunker"
)

// knowledgeSource tags chunks ingested from the knowledge base directory.
const knowledgeSource = "knowledge_base"

// bootstrap wires adapters and services from settings. Optional parts that
// cannot be built are left nil and reported as warnings.
func bootstrap(ctx context.Context, settings *domain.AppSettings) (*cli.Services, error) {
	paths, err := resolvePaths(settings.Paths)
	if err != nil {
		return nil, err
	}

	svc := &cli.Services{}
	var closers []func()
	svc.Close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		logger.Warn("%s", msg)
		svc.Warnings = append(svc.Warnings, msg)
	}

	aiResult := ai.Initialise(settings)
	closers = append(closers, aiResult.Close)
	svc.Warnings = append(svc.Warnings, aiResult.Warnings...)
	svc.Embedding = aiResult.EmbeddingService
	svc.Chat = aiResult.ChatProvider

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return nil, fmt.Errorf("creating prompt store: %w", err)
	}

	// Retrieval
	index := services.NewEmbeddingIndex(jsonfile.NewIndexStore(paths.IndexFile))
	chunks := chunker.New(
		chunker.WithChunkSize(settings.RAG.ChunkSize),
		chunker.WithOverlap(settings.RAG.ChunkOverlap),
	)
	pipeline := services.NewEmbeddingPipeline(svc.Embedding, index, chunks)

	reranker, err := services.NewReranker(services.RerankConfig{
		EmbeddingWeight: settings.RAG.EmbeddingWeight,
		LexicalWeight:   settings.RAG.LexicalWeight,
	})
	if err != nil {
		return nil, err
	}

	rag := services.NewRAGService(pipeline, reranker, svc.Chat, services.RAGConfigFromSettings(*settings))
	rag.SetPromptStore(prompts)
	if svc.Embedding != nil || svc.Chat != nil {
		svc.RAG = rag
	}

	// Ingestion
	if svc.Embedding != nil {
		var connector driven.Connector
		if paths.KnowledgeBase != "" {
			connector = filesystem.New(knowledgeSource, paths.KnowledgeBase)
		}
		svc.Ingest = services.NewIngestService(pipeline, connector, normalisers.NewDefaultRegistry(), knowledgeSource)
	}

	// Task manager
	var tasks *todoist.Client
	if settings.Todoist.IsConfigured() {
		tasks, err = todoist.NewClient(todoist.Config{
			Token:   settings.Todoist.Token,
			BaseURL: settings.Todoist.BaseURL,
		})
		if err != nil {
			warn("todoist disabled: %v", err)
			tasks = nil
		} else {
			closers = append(closers, func() { tasks.Close() })
		}
	}

	var projects *services.ProjectResolver
	if tasks != nil {
		projects = services.NewProjectResolver(tasks, jsonfile.NewProjectMappingStore(paths.ProjectMapFile))
		svc.Projects = projects
	}

	if svc.Chat != nil {
		var taskManager driven.TaskManager
		if tasks != nil {
			taskManager = tasks
		}
		breakdown := services.NewBreakdownService(svc.Chat, taskManager, projects)
		breakdown.SetPromptStore(prompts)
		svc.Breakdown = breakdown
	}

	// Executor
	if svc.Chat != nil && tasks != nil {
		var files driven.ProjectTools
		if paths.ProjectRoot != "" {
			tools, err := projectfs.New(projectfs.Config{Root: paths.ProjectRoot})
			if err != nil {
				warn("project tools disabled: %v", err)
			} else {
				files = tools
			}
		}

		var ragSource services.ContextSource
		if pipeline.Available() {
			ragSource = rag
		}
		executor := services.NewExecutor(svc.Chat, tasks, files, ragSource, services.ExecutorConfigFromSettings(*settings))
		executor.SetPromptStore(prompts)

		runs, err := sqlite.NewStore(paths.DataDir)
		if err != nil {
			warn("run history disabled: %v", err)
		} else {
			executor.SetRunStore(runs)
			closers = append(closers, func() { runs.Close() })
		}
		svc.Executor = executor
	}

	// Review
	if svc.Chat != nil {
		source, closeSource, err := pullRequestSource(ctx, settings.GitHub)
		if err != nil {
			warn("review disabled: %v", err)
		} else {
			closers = append(closers, closeSource)
			review := services.NewReviewService(source, svc.Chat, rag)
			review.SetPromptStore(prompts)
			svc.Review = review
		}
	}

	return svc, nil
}

// pullRequestSource picks the GitHub MCP server when configured and the
// REST API otherwise.
func pullRequestSource(ctx context.Context, gh domain.GitHubSettings) (driven.PullRequestSource, func(), error) {
	if gh.UsesMCP() {
		client, err := mcpclient.NewClient(mcpclient.Config{
			Command: gh.MCPCommand,
			URL:     gh.MCPURL,
			Token:   gh.Token,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	}

	client, err := github.NewClient(ctx, github.Config{Token: gh.Token})
	if err != nil {
		return nil, nil, err
	}
	return client, func() { client.Close() }, nil
}

// resolvePaths fills unset paths with defaults under ~/.taskrag.
func resolvePaths(p domain.PathSettings) (domain.PathSettings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return p, fmt.Errorf("getting home directory: %w", err)
	}
	base := filepath.Join(home, ".taskrag")

	if p.IndexFile == "" {
		p.IndexFile = filepath.Join(base, "index.json")
	}
	if p.ProjectMapFile == "" {
		p.ProjectMapFile = filepath.Join(base, "projects.json")
	}
	if p.DataDir == "" {
		p.DataDir = filepath.Join(base, "data")
	}
	return p, nil
}
