package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, mimeTypes)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "notes/document.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a **test**."),
	}

	doc, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "notes/document.md", doc.URI)
	assert.Equal(t, "Hello World", doc.Title)
	assert.Equal(t, "Hello World\n\nThis is a test.", doc.Content)
}

func TestNormalise_NilDocument(t *testing.T) {
	doc, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, doc)
}

func TestNormalise_TitleExtraction(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		content string
		want    string
	}{
		{name: "first h1", uri: "a.md", content: "intro\n# Title Here\n# Second", want: "Title Here"},
		{name: "h2 is not a title", uri: "my_notes.md", content: "## Sub\ntext", want: "my notes"},
		{name: "heading inside code fence ignored", uri: "x.md", content: "```\n# comment\n```\n# Real", want: "Real"},
		{name: "front matter wins", uri: "x.md", content: "---\ntitle: Redis Guide\ntags: [cache]\n---\n# Heading\nbody", want: "Redis Guide"},
		{name: "front matter without title", uri: "x.md", content: "---\ndate: 2024-01-01\n---\n# Heading\n", want: "Heading"},
		{name: "file name fallback", uri: "guides/setup-guide.md", content: "plain", want: "setup guide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := New().Normalise(context.Background(), &domain.RawDocument{URI: tt.uri, Content: []byte(tt.content)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Title)
		})
	}
}

func TestNormalise_FrontMatterRemoved(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "x.md",
		Content: []byte("---\r\ntitle: T\r\n---\r\nBody text\r\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Body text", doc.Content)
}

func TestNormalise_MalformedFrontMatterKept(t *testing.T) {
	doc, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "x.md",
		Content: []byte("---\ntitle: [unclosed\n---\nBody"),
	})
	require.NoError(t, err)
	assert.Equal(t, "x", doc.Title)
	assert.Contains(t, doc.Content, "Body")
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "headings", input: "# H1\n## H2\n###### H6", want: "H1\nH2\nH6"},
		{name: "bold and italic", input: "**bold** and *italic* and __under__", want: "bold and italic and under"},
		{name: "snake case kept", input: "call get_or_create_project now", want: "call get_or_create_project now"},
		{name: "links keep text", input: "see [the docs](https://example.com)", want: "see the docs"},
		{name: "images keep alt", input: "![diagram](img.png)", want: "diagram"},
		{name: "inline code kept", input: "run `make test`", want: "run make test"},
		{name: "code block content kept", input: "```go\nfunc main() {}\n```", want: "func main() {}"},
		{name: "lists", input: "- one\n* two\n+ three\n1. four", want: "one\ntwo\nthree\nfour"},
		{name: "blockquote", input: "> quoted", want: "quoted"},
		{name: "horizontal rule", input: "above\n\n---\n\nbelow", want: "above\n\nbelow"},
		{name: "table rule", input: "| a | b |\n|---|---|\n| 1 | 2 |", want: "| a | b |\n\n| 1 | 2 |"},
		{name: "html tags", input: "line<br/>next <b>bold</b>", want: "linenext bold"},
		{name: "cyrillic", input: "# Кэш\n**Redis** настройка", want: "Кэш\nRedis настройка"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdown(tt.input))
		})
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}
