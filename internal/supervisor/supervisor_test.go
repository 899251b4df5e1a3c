package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFleetConfig(t *testing.T, root string, daemons map[string]string) string {
	t.Helper()
	doc := "daemons-path: " + root + "\ndaemons:\n"
	for name, script := range daemons {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(script), 0o755))
		doc += "  " + name + ":\n    requirements: \"-\"\n"
	}
	path := filepath.Join(root, "daemons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func newShellSupervisor(configPath string) *Supervisor {
	s := New(configPath)
	s.Interpreter = "/bin/sh"
	return s
}

func TestStartReportsSuccessWhenAtLeastOneDaemonStarts(t *testing.T) {
	root := t.TempDir()
	configPath := writeFleetConfig(t, root, map[string]string{"alpha": "#!/bin/sh\nsleep 2\n"})

	s := newShellSupervisor(configPath)
	ok, msg := s.Start(context.Background())
	require.True(t, ok, msg)

	states := s.GetAllDaemons()
	require.Len(t, states, 1)
	require.Equal(t, "alpha", states[0].Name)
	require.True(t, states[0].Running)

	ok, _ = s.Stop(context.Background())
	require.True(t, ok)
}

func TestStartDaemonStopDaemonRoundTrip(t *testing.T) {
	root := t.TempDir()
	configPath := writeFleetConfig(t, root, map[string]string{"alpha": "#!/bin/sh\nsleep 2\n"})

	s := newShellSupervisor(configPath)
	ok, msg := s.Start(context.Background())
	require.True(t, ok, msg)
	defer s.Stop(context.Background())

	require.NoError(t, s.StopDaemon(context.Background(), "alpha"))
	state, found := s.SearchByName("alpha")
	require.True(t, found)
	require.False(t, state.Running)

	require.NoError(t, s.StartDaemon(context.Background(), "alpha"))
	state, found = s.SearchByName("alpha")
	require.True(t, found)
	require.True(t, state.Running)
}

func TestStartDaemonUnknownNameFails(t *testing.T) {
	root := t.TempDir()
	configPath := writeFleetConfig(t, root, map[string]string{"alpha": "#!/bin/sh\nsleep 1\n"})
	s := newShellSupervisor(configPath)
	_, _ = s.Start(context.Background())
	defer s.Stop(context.Background())

	err := s.StartDaemon(context.Background(), "ghost")
	require.Error(t, err)
}

func TestSearchByPIDAndFile(t *testing.T) {
	root := t.TempDir()
	configPath := writeFleetConfig(t, root, map[string]string{"alpha": "#!/bin/sh\nsleep 2\n"})
	s := newShellSupervisor(configPath)
	_, _ = s.Start(context.Background())
	defer s.Stop(context.Background())

	byName, found := s.SearchByName("alpha")
	require.True(t, found)

	byPID, found := s.SearchByPID(byName.PID)
	require.True(t, found)
	require.Equal(t, "alpha", byPID.Name)

	byFile, found := s.SearchByFile(filepath.Join(root, "alpha", "main.py"))
	require.True(t, found)
	require.Equal(t, "alpha", byFile.Name)
}

func TestWatcherRestartsDeadKeepRunningDaemon(t *testing.T) {
	root := t.TempDir()
	configPath := writeFleetConfigWithAutoRestart(t, root, "flaky", "#!/bin/sh\nsleep 0.1\n")

	s := newShellSupervisor(configPath)
	ok, _ := s.Start(context.Background())
	require.True(t, ok)
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool {
		st, found := s.SearchByName("flaky")
		return found && st.StartsCount >= 2
	}, 5*time.Second, 20*time.Millisecond, "watcher should keep restarting a keep_running daemon that exits")

	st, _ := s.SearchByName("flaky")
	require.Equal(t, 0, st.FailedStarts)
}

func writeFleetConfigWithAutoRestart(t *testing.T, root, name, script string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(script), 0o755))
	doc := "daemons-path: " + root + "\ndefault-auto-restart: true\ndaemons:\n  " + name + ":\n    requirements: \"-\"\n"
	path := filepath.Join(root, "daemons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}
