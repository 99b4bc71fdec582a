// Package openai provides an embedding service adapter for the OpenAI API
// and OpenAI-compatible servers such as LM Studio.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "text-embedding-3-small"
	DefaultTimeout     = 60 * time.Second
	DefaultBatchSize   = 64
	DefaultConcurrency = 2
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key. Required unless AllowNoAPIKey is set.
	APIKey string

	// AllowNoAPIKey permits keyless local servers (LM Studio).
	AllowNoAPIKey bool

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// BatchSize is the number of inputs sent per request (default: 64).
	BatchSize int

	// Concurrency bounds parallel batch requests (default: 2).
	Concurrency int
}

// EmbeddingService generates embeddings using an OpenAI-compatible API.
type EmbeddingService struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	batchSize   int
	concurrency int
}

// embeddingRequest is the OpenAI API request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// modelsResponse is the /models response format.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" && !cfg.AllowNoAPIKey {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text, model string) ([]float32, error) {
	embeddings, err := s.embed(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch splits texts into requests of at most BatchSize inputs and
// sends them concurrently. The result is in the same order as texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			batch, err := s.embed(gctx, texts[start:end], model)
			if err != nil {
				return &domain.EmbeddingError{Index: start, Err: err}
			}
			copy(embeddings[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if model == "" {
		model = s.model
	}

	jsonBody, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/embeddings",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	var embedResp embeddingResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embedResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", embedResp.Error.Message)
	}

	// Convert float64 to float32 and order by index
	embeddings := make([][]float32, len(texts))
	for _, data := range embedResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", data.Index)
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		embeddings[data.Index] = embedding
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("openai: %w: no embedding for input %d", domain.ErrEmptyResponse, i)
		}
	}

	return embeddings, nil
}

// ListModels returns the server's models whose ID mentions "embed".
// Servers that expose no such model get their whole list returned.
func (s *EmbeddingService) ListModels(ctx context.Context) ([]string, error) {
	resp, err := s.get(ctx, "/models")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var all, embed []string
	for _, m := range models.Data {
		all = append(all, m.ID)
		if strings.Contains(strings.ToLower(m.ID), "embed") {
			embed = append(embed, m.ID)
		}
	}
	if len(embed) > 0 {
		return embed, nil
	}
	return all, nil
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	resp, err := s.get(ctx, "/models")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

func (s *EmbeddingService) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

func (s *EmbeddingService) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to create request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("openai: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
