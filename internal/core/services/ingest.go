package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/core/ports/driving"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultWatchDebounce is how long Watch waits for changes to settle before
// rebuilding.
const DefaultWatchDebounce = 750 * time.Millisecond

// IngestService feeds knowledge-base files through the embedding pipeline.
type IngestService struct {
	pipeline    *EmbeddingPipeline
	connector   driven.Connector
	normalisers driven.NormaliserRegistry
	source      string
	debounce    time.Duration
}

// NewIngestService creates an ingest service. connector and normalisers may
// be nil, which only disables IngestSource and Watch.
func NewIngestService(
	pipeline *EmbeddingPipeline, connector driven.Connector, normalisers driven.NormaliserRegistry, source string,
) *IngestService {
	return &IngestService{
		pipeline:    pipeline,
		connector:   connector,
		normalisers: normalisers,
		source:      source,
		debounce:    DefaultWatchDebounce,
	}
}

// IngestText chunks, embeds and stores a single text.
func (s *IngestService) IngestText(ctx context.Context, text string, metadata map[string]string) (int, error) {
	chunks, err := s.pipeline.ProcessText(ctx, text, metadata)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IngestSource ingests every file of the connector. An embedding failure
// stops the pass: the failing file stores nothing and the error is returned
// along with the stats so far.
func (s *IngestService) IngestSource(ctx context.Context, rebuild bool) (*domain.IngestStats, error) {
	if s.connector == nil || s.normalisers == nil {
		return nil, fmt.Errorf("%w: no knowledge base configured", domain.ErrInvalidInput)
	}
	if !s.pipeline.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if err := s.connector.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate %s source: %w", s.connector.Type(), err)
	}

	logger.Section("Knowledge Base Ingestion")
	if rebuild {
		logger.Info("Clearing index before rebuild")
		if err := s.pipeline.Index().Clear(ctx); err != nil {
			return nil, err
		}
	}

	syncCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	docs, errs := s.connector.FullSync(syncCtx)

	stats := &domain.IngestStats{}
	for docs != nil || errs != nil {
		select {
		case raw, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			if err := s.ingestFile(ctx, &raw, stats); err != nil {
				return stats, err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("Read error: %v", err)
			stats.Errors = append(stats.Errors, err.Error())
		case <-ctx.Done():
			return stats, ctx.Err()
		}
	}

	logger.Info("Ingested %d files (%d chunks, %d skipped, %d errors)",
		stats.Files, stats.Chunks, stats.Skipped, len(stats.Errors))
	return stats, nil
}

func (s *IngestService) ingestFile(ctx context.Context, raw *domain.RawDocument, stats *domain.IngestStats) error {
	doc, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			logger.Debug("Skipping %s (%s)", raw.URI, raw.MIMEType)
			stats.Skipped++
			return nil
		}
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", raw.URI, err))
		return nil
	}
	if doc.Source == "" {
		doc.Source = s.source
	}

	chunks, err := s.pipeline.ProcessText(ctx, doc.Content, doc.ChunkMetadata())
	if err != nil {
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) {
			return fmt.Errorf("ingest %s: %w", raw.URI, err)
		}
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", raw.URI, err))
		return nil
	}

	stats.Files++
	stats.Chunks += len(chunks)
	logger.Debug("Ingested %s: %d chunks", raw.URI, len(chunks))
	return nil
}

// Watch rebuilds the index after file changes settle, until ctx is
// cancelled. Chunks are only ever removed by a rebuild, so every change
// triggers a full pass. onChange is called for each change with the error
// of the rebuild it triggered.
func (s *IngestService) Watch(ctx context.Context, onChange func(domain.RawDocumentChange, error)) error {
	if s.connector == nil {
		return fmt.Errorf("%w: no knowledge base configured", domain.ErrInvalidInput)
	}

	changes, err := s.connector.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s source: %w", s.connector.Type(), err)
	}

	var pending []domain.RawDocumentChange
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("Change: %s %s", change.Type, change.Document.URI)
			pending = append(pending, change)
			timer = time.After(s.debounce)
		case <-timer:
			timer = nil
			_, err := s.IngestSource(ctx, true)
			if err != nil {
				logger.Error("rebuild after change: %v", err)
			}
			if onChange != nil {
				for _, c := range pending {
					onChange(c, err)
				}
			}
			pending = pending[:0]
		}
	}
}
