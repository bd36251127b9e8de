// Package workspace manages the on-disk working area holding the kernel
// source checkout. The workspace is persistent so incremental fast-forward
// syncs survive across runs; a stale checkout is removed by the sync stage
// itself when --fresh is given.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// Manager handles the persistent workspace directory.
type Manager struct {
	workDir string
}

// NewManager creates a workspace manager rooted at baseDir/subdirName.
func NewManager(baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = "."
	}
	if subdirName == "" {
		subdirName = "src"
	}
	return &Manager{
		workDir: filepath.Join(baseDir, subdirName),
	}
}

// Create ensures the workspace directory exists. Idempotent.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.workDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Info("Using persistent workspace", logfields.Path(m.workDir))
	return nil
}

// GetPath returns the path to the workspace directory.
func (m *Manager) GetPath() string {
	return m.workDir
}
