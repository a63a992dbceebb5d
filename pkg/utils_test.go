package pkg

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "multiagent_debugger")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\n"), 0o644))

	found, err := FindProjectRoot(nested, "setup.py", "pyproject.toml")
	require.NoError(t, err)

	expected, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestFindProjectRootMissing(t *testing.T) {
	_, err := FindProjectRoot(t.TempDir(), "pkgbuild-marker-that-does-not-exist")
	assert.ErrorContains(t, err, "Project root not found")
}

func TestPrintTask(t *testing.T) {
	out := &bytes.Buffer{}
	PrintTask(out, "Building package...")
	PrintSubtask(out, "Build complete.")
	PrintError(out, "failed")

	assert.Contains(t, out.String(), "==>")
	assert.Contains(t, out.String(), "Building package...\n")
	assert.Contains(t, out.String(), "Build complete.\n")
	assert.Contains(t, out.String(), "failed\n")
}
