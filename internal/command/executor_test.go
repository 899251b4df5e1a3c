package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecuteBlockingCapturesOutput(t *testing.T) {
	e := NewExecutor()
	spec := New("/bin/sh", "-c", "echo hello; echo world")

	code, output, err := e.ExecuteBlocking(context.Background(), spec, false, 0)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "hello\nworld", output)
	require.Len(t, e.History(), 1)
}

func TestExecuteBlockingNonZeroExit(t *testing.T) {
	e := NewExecutor()
	spec := New("/bin/sh", "-c", "exit 3")

	code, _, err := e.ExecuteBlocking(context.Background(), spec, false, 0)
	require.NoError(t, err)
	require.Equal(t, 3, code)
}

func TestExecuteBlockingTimeout(t *testing.T) {
	e := NewExecutor()
	spec := New("/bin/sh", "-c", "sleep 5")

	_, _, err := e.ExecuteBlocking(context.Background(), spec, false, 20*time.Millisecond)
	require.Error(t, err)
}

func TestSpawnDetached(t *testing.T) {
	e := NewExecutor()
	cmd, err := e.SpawnDetached(New("/bin/sh", "-c", "exit 0"))
	require.NoError(t, err)
	require.NotNil(t, cmd.Process)
}

func TestSpecVerify(t *testing.T) {
	require.True(t, New("/bin/sh").Verify())
	require.False(t, New("/no/such/binary-xyz").Verify())
}
