package normalisers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/normalisers/html"
	"github.com/custodia-labs/taskrag/internal/normalisers/markdown"
	"github.com/custodia-labs/taskrag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw files to the highest priority normaliser that
// supports their MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with the built-in plain text,
// markdown and HTML normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	return r
}

// Register adds a normaliser. Normalisers are kept sorted by descending
// priority; equal priorities keep registration order.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, normaliser)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise runs the best matching normaliser for the file's MIME type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedType, raw.MIMEType, raw.URI)
	}
	return n.Normalise(ctx, raw)
}

// SupportedMIMETypes returns every MIME type some normaliser accepts, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types
}

func (r *Registry) lookup(mimeType string) driven.Normaliser {
	// Parameters such as "; charset=utf-8" don't affect selection.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if t == mimeType {
				return n
			}
		}
	}
	return nil
}
