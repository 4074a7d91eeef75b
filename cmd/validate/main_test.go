package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetPaths(t *testing.T) {
	t.Helper()
	catalogPath, scenesPath, registryPath, promptsDir = "", "", "", ""
	t.Cleanup(func() {
		catalogPath, scenesPath, registryPath, promptsDir = "", "", "", ""
	})
}

func TestValidateEmbeddedContent(t *testing.T) {
	resetPaths(t)
	assert.NoError(t, runValidate(nil, nil))
}

func TestValidateReportsUnquotedColon(t *testing.T) {
	resetPaths(t)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	bad := `skills:
  - id: matter_spc_02
    name: Reshape
    principle: matter
    damage: none
    delivery: melee
    mechanic: Slowly reshapes small objects by touch: keys, tools, locks.
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))
	catalogPath = path

	err := runValidate(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill catalog")
}
