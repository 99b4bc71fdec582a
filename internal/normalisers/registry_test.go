package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
)

type stubNormaliser struct {
	name     string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	return &domain.Document{URI: raw.URI, Title: s.name}, nil
}

func TestRegistry_PicksHighestPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "low", types: []string{"text/plain"}, priority: 5})
	r.Register(&stubNormaliser{name: "high", types: []string{"text/plain"}, priority: 90})
	r.Register(&stubNormaliser{name: "mid", types: []string{"text/plain"}, priority: 50})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "a.txt", MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "high", doc.Title)
}

func TestRegistry_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "first", types: []string{"text/plain"}, priority: 10})
	r.Register(&stubNormaliser{name: "second", types: []string{"text/plain"}, priority: 10})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "a.txt", MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Title)
}

func TestRegistry_MIMEParametersIgnored(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubNormaliser{name: "md", types: []string{"text/markdown"}, priority: 50})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "a.md", MIMEType: "Text/Markdown; charset=utf-8"})
	require.NoError(t, err)
	assert.Equal(t, "md", doc.Title)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "a.pdf", MIMEType: "application/pdf"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewDefaultRegistry()

	types := r.SupportedMIMETypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/html")
	assert.IsIncreasing(t, types)

	tests := []struct {
		mime    string
		content string
		want    string
	}{
		{mime: "text/markdown", content: "# Title\n**bold**", want: "Title\nbold"},
		{mime: "text/html", content: "<p>Hello</p>", want: "Hello"},
		{mime: "text/plain", content: "  plain  ", want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "f", MIMEType: tt.mime, Content: []byte(tt.content)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Content)
		})
	}
}
