package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// mockConnector implements driven.Connector for testing.
type mockConnector struct {
	docs        []domain.RawDocument
	errs        []error
	validateErr error
	changes     chan domain.RawDocumentChange

	mu    sync.Mutex
	syncs int
}

func (c *mockConnector) Type() string { return "mock" }

func (c *mockConnector) Validate(context.Context) error { return c.validateErr }

func (c *mockConnector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	c.mu.Lock()
	c.syncs++
	c.mu.Unlock()

	docs := make(chan domain.RawDocument)
	errs := make(chan error, len(c.errs))
	go func() {
		defer close(docs)
		defer close(errs)
		for _, err := range c.errs {
			errs <- err
		}
		for _, d := range c.docs {
			select {
			case docs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, errs
}

func (c *mockConnector) Watch(context.Context) (<-chan domain.RawDocumentChange, error) {
	if c.changes == nil {
		return nil, errors.New("watch unsupported")
	}
	return c.changes, nil
}

func (c *mockConnector) Close() error { return nil }

func (c *mockConnector) syncCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncs
}

// textRegistry implements driven.NormaliserRegistry for text/plain only.
type textRegistry struct{}

func (textRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw.MIMEType != "text/plain" {
		return nil, domain.ErrUnsupportedType
	}
	return &domain.Document{URI: raw.URI, Title: raw.URI, Content: string(raw.Content)}, nil
}

func (textRegistry) Register(driven.Normaliser) {}

func (textRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

func textDoc(uri, content string) domain.RawDocument {
	return domain.RawDocument{URI: uri, MIMEType: "text/plain", Content: []byte(content)}
}

func newTestIngest(connector driven.Connector, embedder *mockEmbeddingService) *IngestService {
	var svc driven.EmbeddingService
	if embedder != nil {
		svc = embedder
	}
	pipeline := NewEmbeddingPipeline(svc, NewEmbeddingIndex(memory.NewIndexStore()), nil)
	return NewIngestService(pipeline, connector, textRegistry{}, "docs")
}

func TestIngestService_IngestText(t *testing.T) {
	svc := newTestIngest(nil, newMockEmbedder())

	n, err := svc.IngestText(context.Background(), "a short note", map[string]string{domain.MetaTitle: "Note"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestService_IngestSource(t *testing.T) {
	connector := &mockConnector{
		docs: []domain.RawDocument{
			textDoc("a.txt", "alpha document"),
			{URI: "b.bin", MIMEType: "application/octet-stream", Content: []byte{0, 1}},
			textDoc("c.txt", "gamma document"),
		},
		errs: []error{errors.New("permission denied: secret.txt")},
	}
	svc := newTestIngest(connector, newMockEmbedder())
	ctx := context.Background()

	stats, err := svc.IngestSource(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []string{"permission denied: secret.txt"}, stats.Errors)

	data := svc.pipeline.Index().LoadIndex(ctx)
	require.NotNil(t, data)
	assert.Equal(t, "docs", data.Chunks[0].Meta(domain.MetaSource))
	assert.Equal(t, "a.txt", data.Chunks[0].Meta(domain.MetaFile))

	// Without rebuild a second pass appends; with rebuild it replaces.
	_, err = svc.IngestSource(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, svc.pipeline.Index().Count(ctx))

	_, err = svc.IngestSource(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.pipeline.Index().Count(ctx))
}

func TestIngestService_IngestSourceEmbeddingFailure(t *testing.T) {
	embedder := newMockEmbedder()
	embedder.batchErr = errors.New("model not loaded")
	connector := &mockConnector{docs: []domain.RawDocument{textDoc("a.txt", "alpha")}}
	svc := newTestIngest(connector, embedder)

	stats, err := svc.IngestSource(context.Background(), false)
	var embErr *domain.EmbeddingError
	require.True(t, errors.As(err, &embErr))
	assert.ErrorContains(t, err, "a.txt")
	assert.Equal(t, 0, stats.Files)
	assert.Equal(t, 0, svc.pipeline.Index().Count(context.Background()))
}

func TestIngestService_IngestSourcePreconditions(t *testing.T) {
	ctx := context.Background()

	_, err := newTestIngest(nil, newMockEmbedder()).IngestSource(ctx, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = newTestIngest(&mockConnector{}, nil).IngestSource(ctx, false)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	_, err = newTestIngest(&mockConnector{validateErr: errors.New("no such dir")}, newMockEmbedder()).IngestSource(ctx, false)
	assert.ErrorContains(t, err, "no such dir")
}

func TestIngestService_Watch(t *testing.T) {
	connector := &mockConnector{
		docs:    []domain.RawDocument{textDoc("a.txt", "alpha")},
		changes: make(chan domain.RawDocumentChange),
	}
	svc := newTestIngest(connector, newMockEmbedder())
	svc.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan domain.RawDocumentChange, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(c domain.RawDocumentChange, err error) {
			assert.NoError(t, err)
			seen <- c
		})
	}()

	// Two quick changes collapse into one rebuild.
	connector.changes <- domain.RawDocumentChange{Type: domain.ChangeUpdated, Document: textDoc("a.txt", "")}
	connector.changes <- domain.RawDocumentChange{Type: domain.ChangeCreated, Document: textDoc("b.txt", "")}

	for i := 0; i < 2; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatal("change callback not called")
		}
	}
	assert.Equal(t, 1, connector.syncCount())
	assert.Equal(t, 1, svc.pipeline.Index().Count(context.Background()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestIngestService_WatchUnsupported(t *testing.T) {
	err := newTestIngest(&mockConnector{}, newMockEmbedder()).Watch(context.Background(), nil)
	assert.ErrorContains(t, err, "watch unsupported")
}
