package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDaemonTree(t *testing.T, base, name string) {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')"), 0o644))
}

func TestValidateOnceAcceptsWellFormedConfig(t *testing.T) {
	base := t.TempDir()
	writeDaemonTree(t, base, "echo")

	configPath := filepath.Join(base, "fleet.yaml")
	doc := "daemons-path: " + base + "\n" +
		"daemons:\n" +
		"  echo:\n" +
		"    requirements: \"-\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	assert.NoError(t, validateOnce(configPath))
}

func TestValidateOnceRejectsEmptyFleet(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "fleet.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("daemons-path: "+base+"\ndaemons: {}\n"), 0o644))

	assert.Error(t, validateOnce(configPath))
}

func TestValidateOnceRejectsMissingFile(t *testing.T) {
	assert.Error(t, validateOnce(filepath.Join(t.TempDir(), "missing.yaml")))
}
