package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDaemonTree(t *testing.T, base, name, target, requirements string) {
	t.Helper()
	dir := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, target), []byte("print('hi')"), 0o644))
	if requirements != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, requirements), []byte("requests==2.0\n"), 0o644))
	}
}

func TestLoadNormalizesDefaultsAndRequirements(t *testing.T) {
	base := t.TempDir()
	writeDaemonTree(t, base, "echo", "main.py", "requirements.txt")
	writeDaemonTree(t, base, "silent", "main.py", "")

	configPath := filepath.Join(base, "daemons.yaml")
	doc := "daemons-path: " + base + "\n" +
		"default-args: \"--quiet\"\n" +
		"default-auto-restart: true\n" +
		"daemons:\n" +
		"  echo:\n" +
		"    requirements: default\n" +
		"  silent:\n" +
		"    requirements: \"-\"\n" +
		"    auto-restart: false\n"
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	_, daemons, err := Load(configPath)
	require.NoError(t, err)
	require.Len(t, daemons, 2)

	byName := map[string]DaemonConfig{}
	for _, d := range daemons {
		byName[d.Name] = d
	}

	echo := byName["echo"]
	require.NotNil(t, echo.RequirementsPath)
	require.True(t, echo.KeepRunning) // inherits default-auto-restart
	require.Equal(t, []string{"--quiet"}, echo.MainFileArguments)

	silent := byName["silent"]
	require.Nil(t, silent.RequirementsPath)
	require.False(t, silent.KeepRunning)
}

func TestNormalizeSkipsMissingTarget(t *testing.T) {
	base := t.TempDir()
	// "ghost" directory never created.
	configPath := filepath.Join(base, "daemons.yaml")
	doc := "daemons-path: " + base + "\n" +
		"daemons:\n" +
		"  ghost:\n" +
		"    target: main.py\n"
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	_, daemons, err := Load(configPath)
	require.NoError(t, err)
	require.Empty(t, daemons)
}

func TestNormalizeAllowsMissingTreeWhenSourceURLSet(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "daemons.yaml")
	doc := "daemons-path: " + base + "\n" +
		"daemons:\n" +
		"  cloned:\n" +
		"    source-url: https://example.invalid/cloned.git\n"
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	_, daemons, err := Load(configPath)
	require.NoError(t, err)
	require.Len(t, daemons, 1)
	require.Equal(t, "https://example.invalid/cloned.git", daemons[0].SourceURL)
}

func TestTokenizeArguments(t *testing.T) {
	require.Equal(t, []string{"--a", "b", "--c=d"}, tokenizeArguments("  --a   b --c=d "))
	require.Nil(t, tokenizeArguments(""))
}

func TestValidateRejectsEmptyFleetAndDuplicates(t *testing.T) {
	require.Error(t, Validate(nil))
	require.Error(t, Validate([]DaemonConfig{{Name: "a"}, {Name: "a"}}))
	require.NoError(t, Validate([]DaemonConfig{{Name: "a"}, {Name: "b"}}))
}
