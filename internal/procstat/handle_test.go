package procstat

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleIsRunningTracksChildProcess(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "sleep 0.3")
	require.NoError(t, cmd.Start())
	h := NewHandle(cmd.Process.Pid)

	require.True(t, h.IsRunning())
	require.NoError(t, cmd.Wait())

	// allow the OS a moment to reclaim the pid table entry
	time.Sleep(20 * time.Millisecond)
	require.False(t, h.IsRunning())
}

func TestHandleZeroPIDNeverRunning(t *testing.T) {
	h := NewHandle(0)
	require.False(t, h.IsRunning())
}

func TestHandleTerminateNonexistentIsNotAnError(t *testing.T) {
	h := NewHandle(int(os.Getpid()) + 987654)
	require.NoError(t, h.Terminate())
}
