// Package chunker splits text into bounded, overlapping segments that end on
// word or line boundaries.
package chunker

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/taskrag/internal/logger"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// iterationSlack is added to the expected window count to form the hard
// iteration cap.
const iterationSlack = 100

// Processor splits text into chunks with a fixed configuration.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Chunk splits a single text.
func (p *Processor) Chunk(text string) []string {
	return ChunkText(text, p.chunkSize, p.overlap)
}

// ChunkAll splits every text and concatenates the results in input order.
func (p *Processor) ChunkAll(texts []string) []string {
	var out []string
	for _, t := range texts {
		out = append(out, p.Chunk(t)...)
	}
	return out
}

// ChunkTexts splits every text with the default size and overlap.
func ChunkTexts(texts []string) []string {
	return New().ChunkAll(texts)
}

// ChunkText splits text into windows of at most chunkSize characters.
//
// Text no longer than chunkSize is returned unchanged as the only chunk.
// Otherwise each window is shortened to its last whitespace when that lies
// past the window midpoint, and the next window starts chunkOverlap
// characters before the previous end. The cursor advances by at least one
// character per iteration and the loop is capped at
// len/(chunkSize-chunkOverlap)+100 iterations. Returned chunks are trimmed
// and never blank.
func ChunkText(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	if n <= chunkSize {
		return []string{text}
	}

	maxIterations := n/(chunkSize-chunkOverlap) + iterationSlack
	chunks := make([]string, 0, n/(chunkSize-chunkOverlap)+1)

	start := 0
	for iteration := 0; start < n; iteration++ {
		if iteration >= maxIterations {
			logger.Capacity("chunk iterations", maxIterations)
			break
		}

		end := start + chunkSize
		if end > n {
			end = n
		}
		if end < n {
			if bp := lastBreak(runes[start:end]); bp > chunkSize/2 {
				end = start + bp + 1
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// lastBreak returns the index of the last whitespace rune in window, or -1.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}
