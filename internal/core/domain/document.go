package domain

// Document is a normalised knowledge-base document ready for chunking.
type Document struct {
	// URI is the originating file path.
	URI string

	// Title is extracted from the content (first heading, <title>) or
	// falls back to the file name.
	Title string

	// Content is the plain text that is chunked and embedded.
	Content string

	// Source names the knowledge base the document belongs to.
	Source string
}

// ChunkMetadata returns the metadata attached to every chunk of the document.
// Empty values are omitted.
func (d Document) ChunkMetadata() map[string]string {
	meta := make(map[string]string, 3)
	if d.Title != "" {
		meta[MetaTitle] = d.Title
	}
	if d.URI != "" {
		meta[MetaFile] = d.URI
	}
	if d.Source != "" {
		meta[MetaSource] = d.Source
	}
	return meta
}

// IngestStats summarises one ingestion pass over a knowledge base.
type IngestStats struct {
	Files   int
	Skipped int
	Chunks  int
	Errors  []string
}
