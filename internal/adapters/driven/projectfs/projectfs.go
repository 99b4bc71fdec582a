// Package projectfs implements driven.ProjectTools on the local filesystem,
// confined to a single project root.
package projectfs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/taskrag/internal/core/domain"
	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
	"github.com/custodia-labs/taskrag/internal/logger"
)

// Ensure Tools implements the interface.
var _ driven.ProjectTools = (*Tools)(nil)

const (
	// DefaultMaxReadBytes caps a single read.
	DefaultMaxReadBytes = 256 * 1024

	// DefaultMaxMatches caps search results.
	DefaultMaxMatches = 200

	// DefaultMaxEntries caps a directory listing.
	DefaultMaxEntries = 500
)

// skipDirs are never descended into by search.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".idea":        true,
}

// Config holds configuration for the project tools.
type Config struct {
	// Root is the project directory (required, must exist).
	Root string

	// MaxReadBytes caps Read (default: 256 KiB).
	MaxReadBytes int64

	// MaxMatches caps SearchInFiles (default: 200).
	MaxMatches int

	// ReadOnly rejects Write when set.
	ReadOnly bool
}

// Tools is a sandboxed view of one project directory.
type Tools struct {
	root     string
	maxRead  int64
	maxMatch int
	readOnly bool
}

// New creates project tools rooted at cfg.Root.
func New(cfg Config) (*Tools, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("%w: project root is required", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	// Resolve symlinks once so containment checks compare real paths.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: project root %s is not a directory", domain.ErrInvalidInput, cfg.Root)
	}

	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = DefaultMaxReadBytes
	}
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultMaxMatches
	}

	return &Tools{
		root:     real,
		maxRead:  cfg.MaxReadBytes,
		maxMatch: cfg.MaxMatches,
		readOnly: cfg.ReadOnly,
	}, nil
}

// Root returns the absolute sandbox root.
func (t *Tools) Root() string {
	return t.root
}

// List returns the entries of a directory ("" or "." for the root).
func (t *Tools) List(ctx context.Context, path string) ([]domain.FileEntry, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, t.wrap("list", path, err)
	}

	out := make([]domain.FileEntry, 0, len(entries))
	for _, e := range entries {
		if len(out) >= DefaultMaxEntries {
			break
		}
		entry := domain.FileEntry{Path: t.rel(filepath.Join(abs, e.Name())), IsDir: e.IsDir()}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		out = append(out, entry)
	}
	return out, ctx.Err()
}

// Read returns the content of a file. Files larger than the read cap
// are truncated with a marker line.
func (t *Tools) Read(ctx context.Context, path string) (string, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return "", err
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", t.wrap("read", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", t.wrap("read", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	buf := make([]byte, min(info.Size(), t.maxRead))
	n, err := f.ReadAt(buf, 0)
	if err != nil && n < len(buf) {
		return "", t.wrap("read", path, err)
	}

	content := string(buf[:n])
	if info.Size() > t.maxRead {
		content += fmt.Sprintf("\n... [truncated, %d of %d bytes shown]", n, info.Size())
	}
	return content, ctx.Err()
}

// Write replaces the content of a file, creating parent directories.
func (t *Tools) Write(ctx context.Context, path, content string) error {
	if t.readOnly {
		return fmt.Errorf("%w: project tools are read-only", domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := t.resolve(path)
	if err != nil {
		return err
	}
	if abs == t.root {
		return fmt.Errorf("%w: cannot write to the project root", domain.ErrInvalidInput)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return t.wrap("write", path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return t.wrap("write", path, err)
	}
	logger.Debug("projectfs: wrote %s (%d bytes)", t.rel(abs), len(content))
	return nil
}

// SearchInFiles finds lines containing query (case-insensitive) in files
// whose base name matches the glob pattern. An empty pattern matches all
// files. Results are capped and ordered by path then line.
func (t *Tools) SearchInFiles(ctx context.Context, query, pattern string) ([]domain.FileMatch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrInvalidInput)
	}
	if pattern != "" {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", domain.ErrInvalidInput, pattern, err)
		}
	}
	needle := strings.ToLower(query)

	var matches []domain.FileMatch
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != t.root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, d.Name()); !ok {
				return nil
			}
		}

		found, err := searchFile(path, needle, t.maxMatch-len(matches))
		if err != nil {
			return nil
		}
		rel := t.rel(path)
		for _, m := range found {
			m.Path = rel
			matches = append(matches, m)
		}
		if len(matches) >= t.maxMatch {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	return matches, nil
}

// GetInfo describes a file or directory. Lines is counted for files.
func (t *Tools) GetInfo(ctx context.Context, path string) (*domain.FileInfo, error) {
	abs, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, t.wrap("stat", path, err)
	}

	out := &domain.FileInfo{
		Path:       t.rel(abs),
		IsDir:      info.IsDir(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
	if !info.IsDir() {
		out.Lines, _ = countLines(abs)
	}
	return out, ctx.Err()
}

// resolve maps a project-relative path to an absolute path inside the root.
// Absolute paths are accepted only when they already point inside the root.
// Symlinks are followed for the longest existing prefix, so a link that
// points outside the root is rejected too.
func (t *Tools) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(t.root, path)
	}
	if !t.contains(abs) {
		return "", fmt.Errorf("%w: %s", domain.ErrSandboxViolation, path)
	}

	real, err := evalExisting(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if !t.contains(real) {
		return "", fmt.Errorf("%w: %s", domain.ErrSandboxViolation, path)
	}
	return abs, nil
}

func (t *Tools) contains(abs string) bool {
	rel, err := filepath.Rel(t.root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (t *Tools) rel(abs string) string {
	rel, err := filepath.Rel(t.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (t *Tools) wrap(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

// maxLinkHops bounds dangling-link chains followed by evalExisting.
const maxLinkHops = 40

// evalExisting resolves symlinks in the longest existing prefix of abs and
// re-appends the missing tail, so paths about to be created can be checked.
// A dangling link is replaced by its target, since writing through it
// creates the target.
func evalExisting(abs string) (string, error) {
	var tail []string
	cur := abs
	hops := 0
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{real}, tail...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("too many links: %s", abs)
			}
			target, err := os.Readlink(cur)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			cur = filepath.Clean(target)
			continue
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

func searchFile(path, needle string, limit int) ([]domain.FileMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []domain.FileMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() && len(out) < limit {
		line++
		text := scanner.Text()
		if strings.Contains(strings.ToLower(text), needle) {
			out = append(out, domain.FileMatch{Line: line, Text: strings.TrimSpace(text)})
		}
	}
	return out, scanner.Err()
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}
