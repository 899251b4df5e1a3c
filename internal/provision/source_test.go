package provision

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/retry"
)

func TestIsRemoteURL(t *testing.T) {
	require.True(t, isRemoteURL("https://example.com/repo.git"))
	require.True(t, isRemoteURL("http://example.com/repo.git"))
	require.True(t, isRemoteURL("git@example.com:org/repo.git"))
	require.False(t, isRemoteURL("/local/path/archive.zip"))
	require.False(t, isRemoteURL("archive.zip"))
}

func initLocalRepo(t *testing.T, path string, files map[string]string) *git.Repository {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
	repo, err := git.PlainInit(path, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(path, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)
	return repo
}

func TestCloneThenReconcilePullsNewCommits(t *testing.T) {
	root := t.TempDir()
	sourcePath := filepath.Join(root, "source")
	destPath := filepath.Join(root, "dest")
	initLocalRepo(t, sourcePath, map[string]string{"main.py": "print('v1')\n"})

	p := NewSourceProvisioner()
	require.NoError(t, p.clone("demo", sourcePath, destPath, nil))
	require.FileExists(t, filepath.Join(destPath, "main.py"))

	// advance the source repository and reconcile the clone.
	sourceRepo, err := git.PlainOpen(sourcePath)
	require.NoError(t, err)
	wt, err := sourceRepo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sourcePath, "main.py"), []byte("print('v2')\n"), 0o644))
	_, err = wt.Add("main.py")
	require.NoError(t, err)
	_, err = wt.Commit("v2", &git.CommitOptions{Author: &object.Signature{Name: "test", Email: "test@example.com"}})
	require.NoError(t, err)

	require.NoError(t, p.reconcile("demo", sourcePath, destPath, nil))
	content, err := os.ReadFile(filepath.Join(destPath, "main.py"))
	require.NoError(t, err)
	require.Equal(t, "print('v2')\n", string(content))
}

func TestReconcileResetsDirtyWorktree(t *testing.T) {
	root := t.TempDir()
	sourcePath := filepath.Join(root, "source")
	destPath := filepath.Join(root, "dest")
	initLocalRepo(t, sourcePath, map[string]string{"main.py": "print('v1')\n"})

	p := NewSourceProvisioner()
	require.NoError(t, p.clone("demo", sourcePath, destPath, nil))

	// dirty the clone's tracked file without committing.
	require.NoError(t, os.WriteFile(filepath.Join(destPath, "main.py"), []byte("tampered\n"), 0o644))

	require.NoError(t, p.reconcile("demo", sourcePath, destPath, nil))
	content, err := os.ReadFile(filepath.Join(destPath, "main.py"))
	require.NoError(t, err)
	require.Equal(t, "print('v1')\n", string(content))
}

func TestQueryStatusReportsUntrackedFiles(t *testing.T) {
	root := t.TempDir()
	sourcePath := filepath.Join(root, "source")
	destPath := filepath.Join(root, "dest")
	initLocalRepo(t, sourcePath, map[string]string{"main.py": "print('v1')\n"})

	p := NewSourceProvisioner()
	require.NoError(t, p.clone("demo", sourcePath, destPath, nil))
	require.NoError(t, os.WriteFile(filepath.Join(destPath, "scratch.tmp"), []byte("x"), 0o644))

	status := QueryStatus(destPath)
	require.True(t, status.Exists)
	require.True(t, status.GitInitialized)
	require.True(t, status.Dirty)
	require.Contains(t, status.UntrackedFiles, "scratch.tmp")
}

func TestQueryStatusMissingDirectory(t *testing.T) {
	status := QueryStatus(filepath.Join(t.TempDir(), "absent"))
	require.False(t, status.Exists)
	require.False(t, status.GitInitialized)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestProvisionFromArchiveExtractsFiles(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "bundle.zip")
	writeZip(t, archivePath, map[string]string{"app/main.py": "print('hi')\n"})

	p := NewSourceProvisioner()
	require.NoError(t, p.Provision("demo", archivePath, root, "app", nil))
	require.FileExists(t, filepath.Join(root, "app", "main.py"))
}

func TestProvisionFromArchiveSkipsWhenTargetExists(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bundle"), 0o755))
	archivePath := filepath.Join(root, "bundle.zip")
	writeZip(t, archivePath, map[string]string{"app/main.py": "print('hi')\n"})

	p := NewSourceProvisioner()
	require.NoError(t, p.Provision("demo", archivePath, root, "app", nil))
	require.NoFileExists(t, filepath.Join(root, "app", "main.py"))
}

func TestProvisionFromMissingArchiveFails(t *testing.T) {
	root := t.TempDir()
	p := NewSourceProvisioner()
	err := p.Provision("demo", filepath.Join(root, "nope.zip"), root, "app", nil)
	require.Error(t, err)
}

func TestProvisionFailsFastOnUnresolvableAuth(t *testing.T) {
	root := t.TempDir()

	p := NewSourceProvisioner()
	err := p.Provision("demo", "https://example.com/private/repo.git", root, "repo",
		&config.AuthConfig{Type: config.AuthTypeToken}) // token type with no token set
	require.Error(t, err)
	require.NoDirExists(t, filepath.Join(root, "repo"))
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	p := NewSourceProvisioner()
	p.Retry = retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, 10*time.Millisecond, 3)

	attempts := 0
	err := p.withRetry("demo", "clone", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	p := NewSourceProvisioner()
	p.Retry = retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, 10*time.Millisecond, 2)

	attempts := 0
	err := p.withRetry("demo", "reconcile", func() error {
		attempts++
		return errors.New("still failing")
	})
	require.Error(t, err)
	require.Equal(t, "still failing", err.Error())
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
}
