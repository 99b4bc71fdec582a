package markdown

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// frontMatter is the subset of YAML front matter the normaliser reads.
type frontMatter struct {
	Title string `yaml:"title"`
}

// Normalise converts a markdown document to plain text. The title comes
// from front matter, then the first H1, then the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	body := bytes.ReplaceAll(raw.Content, []byte("\r\n"), []byte("\n"))
	meta, body := splitFrontMatter(raw.URI, body)
	rawContent := string(body)

	title := meta.Title
	if title == "" {
		title = extractMarkdownTitle(rawContent, raw.URI)
	}

	return &domain.Document{
		URI:     raw.URI,
		Title:   title,
		Content: stripMarkdown(rawContent),
	}, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
// Malformed front matter is left in the body.
func splitFrontMatter(uri string, content []byte) (frontMatter, []byte) {
	var meta frontMatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return meta, content
	}
	rest := content[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return meta, content
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		logger.Debug("markdown: ignoring front matter of %s: %v", uri, err)
		return frontMatter{}, content
	}
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return meta, body
}

// extractMarkdownTitle extracts a title from the first H1 or falls back to filename.
func extractMarkdownTitle(content, uri string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

var (
	fenceLine     = regexp.MustCompile("(?m)^\\s*```.*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	starEmphasis  = regexp.MustCompile(`\*{1,2}([^*\n]+)\*{1,2}`)
	underEmphasis = regexp.MustCompile(`(^|\W)_{1,2}([^_\n]+)_{1,2}(\W|$)`)
	blockquote    = regexp.MustCompile(`(?m)^>\s?`)
	hr            = regexp.MustCompile(`(?m)^\s*(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
	listMarkers   = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	numberedList  = regexp.MustCompile(`(?m)^(\s*)\d+\.\s+`)
	tableRule     = regexp.MustCompile(`(?m)^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
	htmlTags      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes markdown syntax. Code block contents are kept
// because they are often the most useful part of project notes.
func stripMarkdown(content string) string {
	content = fenceLine.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "$1")
	content = numberedList.ReplaceAllString(content, "$1")
	content = starEmphasis.ReplaceAllString(content, "$1")
	content = underEmphasis.ReplaceAllString(content, "$1$2$3")
	content = blockquote.ReplaceAllString(content, "")
	content = tableRule.ReplaceAllString(content, "")
	content = htmlTags.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
