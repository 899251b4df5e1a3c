package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBootstrapMintsRedeemableToken(t *testing.T) {
	base := t.TempDir()
	writeDaemonTree(t, base, "echo")

	configPath := filepath.Join(base, "fleet.yaml")
	doc := "daemons-path: " + base + "\n" +
		"daemons:\n" +
		"  echo:\n" +
		"    requirements: \"-\"\n" +
		"access:\n" +
		"  sqlite-path: " + filepath.Join(base, "sentineld.db") + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(doc), 0o644))

	cli := &CLI{Config: configPath}
	cmd := &TokenBootstrapCmd{}
	assert.NoError(t, cmd.Run(&Global{}, cli))
}
