package file

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/taskrag/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

//go:embed defaults/*.txt
var defaultFS embed.FS

// defaultPrompts contains embedded default prompts keyed by name.
// These are used when user files don't exist and as the initial content for new files.
var defaultPrompts = loadDefaults()

func loadDefaults() map[string]string {
	prompts := make(map[string]string)
	for _, name := range PromptNames() {
		data, err := defaultFS.ReadFile("defaults/" + name + ".txt")
		if err != nil {
			panic(fmt.Sprintf("missing embedded prompt %q: %v", name, err))
		}
		prompts[name] = strings.TrimSpace(string(data))
	}
	return prompts
}

// PromptNames lists every prompt the application loads.
func PromptNames() []string {
	return []string{
		driven.PromptRAGWrapper,
		driven.PromptBreakdownSystem,
		driven.PromptExecutorSystem,
		driven.PromptExecutorTask,
		driven.PromptReviewSystem,
	}
}

// Default returns the embedded default for name.
func Default(name string) (string, bool) {
	prompt, ok := defaultPrompts[name]
	return prompt, ok
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.taskrag/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".taskrag", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# taskrag Prompts

This directory contains customisable prompts used by taskrag.

## Files

- ` + "`rag_wrapper.txt`" + ` - Wraps a question with numbered retrieved sources
- ` + "`breakdown_system.txt`" + ` - Task breakdown instructions and JSON contract
- ` + "`executor_system.txt`" + ` - System prompt of the task execution loop
- ` + "`executor_task.txt`" + ` - Per-task prompt of the execution loop
- ` + "`review_system.txt`" + ` - Pull-request review instructions

## Customisation

Edit any file to customise model behaviour. Changes take effect on the next
command. Delete a file to restore its default.

## Format Placeholders

Some prompts use Go fmt placeholders (` + "`%s`" + `). Keep them in place:
- rag_wrapper: sources, then question
- executor_system: project root
- executor_task: task, details, then context
`
	return os.WriteFile(path, []byte(content), 0600)
}
