package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetPath(t *testing.T) {
	base := t.TempDir()
	m := NewManager(base, "src")
	require.NoError(t, m.Create())

	path := m.GetPath()
	assert.Equal(t, filepath.Join(base, "src"), path)
	require.DirExists(t, path)
}

func TestCreateIsIdempotent(t *testing.T) {
	m := NewManager(t.TempDir(), "src")
	require.NoError(t, m.Create())

	// Contents survive a second Create.
	marker := filepath.Join(m.GetPath(), "marker")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))
	require.NoError(t, m.Create())
	assert.FileExists(t, marker)
}

func TestDefaults(t *testing.T) {
	m := NewManager("", "")
	assert.Equal(t, filepath.Join(".", "src"), m.GetPath())
}
