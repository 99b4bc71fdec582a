package plaintext

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text and source files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-shellscript",
		"text/x-sql",
		"text/x-rst",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/javascript-jsx",
		"text/typescript",
		"text/typescript-jsx",
		"text/css",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a raw file to a document. Content that is not valid
// UTF-8 is rejected as unsupported so binary files mislabelled as text are
// skipped rather than embedded.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, domain.ErrUnsupportedType
	}

	content := strings.TrimPrefix(string(raw.Content), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	return &domain.Document{
		URI:     raw.URI,
		Title:   extractTitle(raw.URI),
		Content: strings.TrimSpace(content),
	}, nil
}

// extractTitle extracts a human-readable title from a URI.
func extractTitle(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
