package html

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to plain text. The title comes from
// <title>, then the first <h1>, then the file name.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	text, title, h1 := extract(raw.Content)
	if title == "" {
		title = h1
	}
	if title == "" {
		title = titleFromURI(raw.URI)
	}

	return &domain.Document{
		URI:     raw.URI,
		Title:   title,
		Content: text,
	}, nil
}

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Template: true,
}

// block elements start a new line.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Dt: true, atom.Dd: true,
}

// extract walks the token stream once, returning the body text, the
// <title> text and the first <h1> text.
func extract(content []byte) (text, title, h1 string) {
	z := html.NewTokenizer(bytes.NewReader(content))

	var body, titleBuf, h1Buf strings.Builder
	skipDepth := 0
	inTitle, inH1, h1Done := false, false, false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidy(body.String()), collapse(titleBuf.String()), collapse(h1Buf.String())

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = true
			case skipped[tok.DataAtom] && tok.Type == html.StartTagToken:
				skipDepth++
			case tok.DataAtom == atom.H1 && !h1Done:
				inH1 = true
			}
			if block[tok.DataAtom] {
				body.WriteByte('\n')
			}

		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = false
			case skipped[tok.DataAtom] && skipDepth > 0:
				skipDepth--
			case tok.DataAtom == atom.H1 && inH1:
				inH1, h1Done = false, true
			}
			if block[tok.DataAtom] {
				body.WriteByte('\n')
			}

		case html.TextToken:
			t := string(z.Text())
			if inTitle {
				titleBuf.WriteString(t)
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if inH1 {
				h1Buf.WriteString(t)
			}
			body.WriteString(t)
		}
	}
}

// tidy collapses runs of spaces and drops blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapse(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleFromURI(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
