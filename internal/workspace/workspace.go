package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autonomy-edge/compilerd/internal/logfields"
)

// Prefix is the recognizable directory name prefix for all workspaces.
// The janitor relies on it to identify leaked directories.
const Prefix = "compilerd-"

// Manager creates and removes isolated workspace directories.
type Manager struct {
	baseDir string
}

// NewManager creates a workspace manager rooted at baseDir.
// An empty baseDir falls back to the system temp directory.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the directory workspaces are created under.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Workspace is one isolated, ephemeral directory scoped to a single
// orchestration call. It is owned exclusively by the orchestrator that
// acquired it and must be released exactly once, via defer.
type Workspace struct {
	path string
}

// Acquire creates a new uniquely named workspace directory.
func (m *Manager) Acquire() (*Workspace, error) {
	dir := filepath.Join(m.baseDir, Prefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Created workspace", logfields.Workspace(dir))
	return &Workspace{path: dir}, nil
}

// Path returns the workspace directory path.
func (w *Workspace) Path() string {
	return w.path
}

// Release removes the workspace directory and all contents.
// Safe to call more than once; callers defer it immediately after Acquire so
// cleanup holds on every exit path.
func (w *Workspace) Release() {
	if w.path == "" {
		return
	}
	if err := os.RemoveAll(w.path); err != nil {
		slog.Error("Failed to clean up workspace", logfields.Workspace(w.path), logfields.Error(err))
		return
	}
	slog.Debug("Cleaned up workspace", logfields.Workspace(w.path))
	w.path = ""
}

// WriteFile materializes content into the workspace under name.
// Names are stage-mandated constants, never caller-supplied, so path
// traversal cannot occur.
func (w *Workspace) WriteFile(name, content string) error {
	path := filepath.Join(w.path, name)
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadFixed reads one specific output file. A missing file is the expected
// outcome when the tool failed and produced nothing, so absence is reported
// via ok=false rather than an error.
func (w *Workspace) ReadFixed(name string) (content string, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(w.path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), true, nil
}

// ReadMatching reads every regular file in the workspace whose extension is
// in exts (e.g. ".c", ".h") and whose name is not in exclude. Used for tools
// whose output file set depends on the content of the compiled program.
func (w *Workspace) ReadMatching(exclude map[string]bool, exts []string) (map[string]string, error) {
	entries, err := os.ReadDir(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if exclude[name] {
			continue
		}
		if !hasExtension(name, exts) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(w.path, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files[name] = string(data)
	}
	return files, nil
}

func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Stale lists workspace directories under the base older than maxAge.
// A normal request never leaks its workspace; stale entries only appear
// after a crash or an operator-killed tool invocation.
func (m *Manager) Stale(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace base: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, filepath.Join(m.baseDir, entry.Name()))
		}
	}
	return stale, nil
}

// Sweep removes stale workspace directories and reports how many were removed.
func (m *Manager) Sweep(maxAge time.Duration) (int, error) {
	stale, err := m.Stale(maxAge)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove stale workspace", logfields.Workspace(dir), logfields.Error(err))
			continue
		}
		slog.Info("Removed stale workspace", logfields.Workspace(dir))
		removed++
	}
	return removed, nil
}
