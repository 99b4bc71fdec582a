// Package filesystem reads a knowledge-base directory for ingestion and
// watches it for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

const (
	// ConnectorType identifies the filesystem connector.
	ConnectorType = "filesystem"

	// MaxFileSize is the largest file read during ingestion.
	MaxFileSize = 10 * 1024 * 1024
)

// fallbackMIMETypes covers extensions the mime package leaves unknown or
// maps inconsistently across platforms.
var fallbackMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".tsx":      "text/typescript-jsx",
	".jsx":      "text/javascript-jsx",
	".js":       "text/javascript",
	".json":     "application/json",
	".html":     "text/html",
	".htm":      "text/html",
	".css":      "text/css",
	".xml":      "application/xml",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".bash":     "text/x-shellscript",
	".sql":      "text/x-sql",
	".csv":      "text/csv",
	".rst":      "text/x-rst",
}

// Connector walks one directory tree.
type Connector struct {
	source   string
	rootPath string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a connector for rootPath. source names the knowledge base.
func New(source, rootPath string) *Connector {
	return &Connector{source: source, rootPath: rootPath}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return ConnectorType
}

// Source returns the knowledge-base name.
func (c *Connector) Source() string {
	return c.source
}

// Validate checks the root path exists and is a directory.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.checkRoot()
}

func (c *Connector) checkRoot() error {
	info, err := os.Stat(c.rootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("root path %s does not exist", c.rootPath)
		}
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path %s is not a directory", c.rootPath)
	}
	return nil
}

// FullSync streams every visible regular file under the root. Both channels
// are closed when the walk ends.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.checkRoot(); err != nil {
			errs <- err
			return
		}

		err := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				logger.Debug("filesystem: skipping %s: %v", path, err)
				return nil
			}
			rel := c.rel(path)
			if rel != "." && isHidden(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			doc, err := c.read(path)
			if err != nil {
				logger.Debug("filesystem: skipping %s: %v", rel, err)
				return nil
			}
			select {
			case docs <- *doc:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("walk %s: %w", c.rootPath, err)
		}
	}()

	return docs, errs
}

// Watch streams file changes until ctx is cancelled or the connector is
// closed. New subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("connector is closed")
	}
	if err := c.checkRoot(); err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := c.addTree(watcher, c.rootPath); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	c.watcher = watcher

	changes := make(chan domain.RawDocumentChange, 16)
	go c.watchLoop(ctx, watcher, changes)
	return changes, nil
}

func (c *Connector) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- domain.RawDocumentChange) {
	defer close(changes)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			change, ok := c.toChange(watcher, event)
			if !ok {
				continue
			}
			select {
			case changes <- change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem: watch error: %v", err)
		}
	}
}

// toChange maps an fsnotify event onto a change. Directory creations are
// added to the watch list and not reported.
func (c *Connector) toChange(watcher *fsnotify.Watcher, event fsnotify.Event) (domain.RawDocumentChange, bool) {
	rel := c.rel(event.Name)
	if isHidden(rel) {
		return domain.RawDocumentChange{}, false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return domain.RawDocumentChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{URI: rel, MIMEType: detectMIMEType(rel)},
		}, true

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return domain.RawDocumentChange{}, false
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				if err := c.addTree(watcher, event.Name); err != nil {
					logger.Warn("filesystem: %v", err)
				}
			}
			return domain.RawDocumentChange{}, false
		}

		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		doc, err := c.read(event.Name)
		if err != nil {
			doc = &domain.RawDocument{URI: rel, MIMEType: detectMIMEType(rel)}
		}
		return domain.RawDocumentChange{Type: changeType, Document: *doc}, true
	}

	return domain.RawDocumentChange{}, false
}

// addTree watches dir and every visible subdirectory.
func (c *Connector) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel := c.rel(path); rel != "." && isHidden(rel) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops any active watch. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

func (c *Connector) read(path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file too large (%d bytes)", info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rel := c.rel(path)
	return &domain.RawDocument{
		URI:        rel,
		MIMEType:   detectMIMEType(rel),
		Content:    content,
		ModifiedAt: info.ModTime(),
	}, nil
}

func (c *Connector) rel(path string) string {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// detectMIMEType maps a file name to a MIME type without parameters.
// Files without an extension are treated as plain text.
func detectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if mt, ok := fallbackMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
