package domain

import "time"

// RawDocument is a knowledge-base file as read from disk, before
// normalisation into plain text.
type RawDocument struct {
	// URI is the file path relative to the knowledge-base root.
	URI string

	// MIMEType is the detected content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// ModifiedAt is the file modification time.
	ModifiedAt time.Time
}

// ChangeType represents the type of file change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns a short label for logs.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RawDocumentChange is a change event from the knowledge-base watcher.
type RawDocumentChange struct {
	Type     ChangeType
	Document RawDocument
}
