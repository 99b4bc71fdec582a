package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

// embeddingServer answers each input with [len(input)] and returns the data
// array in reverse so callers must order by index.
func embeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, in := range req.Input {
			if strings.Contains(in, "fail") {
				http.Error(w, `{"error":{"message":"bad input"}}`, http.StatusBadRequest)
				return
			}
		}
		type item struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float64{float64(len(req.Input[i]))}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer bad" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"text-embedding-3-small"},{"id":"text-embedding-3-large"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)

	svc, err := NewEmbeddingService(Config{AllowNoAPIKey: true, BaseURL: "http://localhost:1234/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1234/v1", svc.baseURL)
	assert.Equal(t, DefaultModel, svc.ModelName())
}

func TestEmbeddingService_Embed(t *testing.T) {
	srv := embeddingServer(t, nil)
	svc, err := NewEmbeddingService(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	vec, err := svc.Embed(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, vec)
}

func TestEmbeddingService_EmbedBatchSplitsAndOrders(t *testing.T) {
	var requests atomic.Int32
	srv := embeddingServer(t, &requests)
	svc, err := NewEmbeddingService(Config{APIKey: "key", BaseURL: srv.URL, BatchSize: 2})
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := svc.EmbedBatch(context.Background(), texts, "")
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, text := range texts {
		assert.Equal(t, []float32{float32(len(text))}, vectors[i])
	}
	assert.Equal(t, int32(3), requests.Load())
}

func TestEmbeddingService_EmbedBatchEmpty(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "key"})
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbeddingService_EmbedBatchFailure(t *testing.T) {
	srv := embeddingServer(t, nil)
	svc, err := NewEmbeddingService(Config{APIKey: "key", BaseURL: srv.URL, BatchSize: 2, Concurrency: 1})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b", "c", "fail"}, "")
	var embErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.Equal(t, 2, embErr.Index)
	assert.ErrorContains(t, err, "status 400")
}

func TestEmbeddingService_ListModels(t *testing.T) {
	srv := embeddingServer(t, nil)
	svc, err := NewEmbeddingService(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"text-embedding-3-small", "text-embedding-3-large"}, models)
}

func TestEmbeddingService_Ping(t *testing.T) {
	srv := embeddingServer(t, nil)

	ok, err := NewEmbeddingService(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, ok.Ping(context.Background()))

	bad, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.ErrorContains(t, bad.Ping(context.Background()), "status 401")
}
