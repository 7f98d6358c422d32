// Package workspace manages the mikopo runtime directory structure.
// All runtime state (worker pid files, worker logs, decision records)
// is consolidated under a single workspace root, making mikopo portable.
//
// Default workspace: ~/.mikopo/workspace (configurable via config or MIKOPO_WORKSPACE env var).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Default workspace location relative to user home directory.
const defaultRelativePath = ".mikopo/workspace"

// Workspace manages all mikopo runtime directories and derived paths.
type Workspace struct {
	Root string

	mu      sync.Mutex
	created map[string]bool // tracks which directories have been ensured
}

// New creates a Workspace rooted at the given path.
// It resolves ~ to the user's home directory and creates the root directory
// with appropriate permissions if it does not exist.
func New(root string) (*Workspace, error) {
	resolved, err := resolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %q: %w", root, err)
	}

	w := &Workspace{
		Root:    resolved,
		created: make(map[string]bool),
	}

	if err := w.ensureDir(resolved, 0750); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}

	return w, nil
}

// Default creates a Workspace at ~/.mikopo/workspace.
func Default() (*Workspace, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	return New(filepath.Join(home, defaultRelativePath))
}

// --- Top-level directory accessors ---

// PidsDir returns <root>/pids/. Stores supervisor pid files.
func (w *Workspace) PidsDir() string {
	return w.dir("pids")
}

// LogsDir returns <root>/logs/. Worker and application log files.
func (w *Workspace) LogsDir() string {
	return w.dir("logs")
}

// DecisionsDir returns <root>/decisions/. Assessment decision records.
func (w *Workspace) DecisionsDir() string {
	return w.dir("decisions")
}

// --- Derived paths ---

// ConfigPath returns <root>/config.json.
func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.Root, "config.json")
}

// PidFile returns <root>/pids/<worker>.pid.
func (w *Workspace) PidFile(worker string) string {
	return filepath.Join(w.PidsDir(), sanitizeName(worker)+".pid")
}

// WorkerLogPath returns <root>/logs/<worker>.log.
func (w *Workspace) WorkerLogPath(worker string) string {
	return filepath.Join(w.LogsDir(), sanitizeName(worker)+".log")
}

// DecisionPath returns <root>/decisions/<assessmentID>.json.
func (w *Workspace) DecisionPath(assessmentID string) string {
	return filepath.Join(w.DecisionsDir(), sanitizeName(assessmentID)+".json")
}

// --- Cleanup ---

// CleanPids removes all pid files. Used after a full fleet stop.
func (w *Workspace) CleanPids() error {
	dir := filepath.Join(w.Root, "pids")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading pids dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("removing pid entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// EnsureAll creates all standard workspace directories.
// Call this during first startup.
func (w *Workspace) EnsureAll() error {
	dirs := []string{
		w.PidsDir(),
		w.LogsDir(),
		w.DecisionsDir(),
	}
	for _, d := range dirs {
		if err := w.ensureDir(d, 0750); err != nil {
			return err
		}
	}
	return nil
}

// --- Internal helpers ---

// dir returns an absolute path under the workspace root and ensures the directory exists.
func (w *Workspace) dir(name string) string {
	p := filepath.Join(w.Root, name)
	_ = w.ensureDir(p, 0750)
	return p
}

// ensureDir creates a directory if it doesn't already exist.
// Uses a cache to avoid redundant stat/mkdir calls.
func (w *Workspace) ensureDir(path string, perm os.FileMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.created[path] {
		return nil
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	w.created[path] = true
	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// sanitizeName replaces path separator characters to prevent directory traversal.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		name = "_"
	}
	return name
}
