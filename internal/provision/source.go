// Package provision materializes and reconciles a daemon's working tree
// from a remote repository or a local archive, and optionally prepares a
// private runtime environment with its declared dependencies.
package provision

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/auth"
	"github.com/sentineld/sentineld/internal/config"
	"github.com/sentineld/sentineld/internal/logfields"
	"github.com/sentineld/sentineld/internal/retry"
)

// Status reports a working tree's reconciliation state, as returned by
// QueryStatus.
type Status struct {
	Exists         bool     `json:"repository_exists"`
	GitInitialized bool     `json:"git_initialized"`
	Dirty          bool     `json:"repo_dirty"`
	UntrackedFiles []string `json:"untracked_files"`
}

// SourceProvisioner materializes target_name under parent_folder from a
// git remote URL or a local archive, and reconciles an existing tree back
// to a clean, up-to-date state. One instance may be shared across daemons;
// it carries no per-daemon state.
type SourceProvisioner struct {
	// CleanUntracked removes untracked files during reconciliation instead
	// of merely reporting them.
	CleanUntracked bool

	// Retry governs backoff between attempts at a transient clone/fetch/
	// pull failure (network blip, remote momentarily unreachable).
	Retry retry.Policy
}

// NewSourceProvisioner returns a provisioner that reports untracked files
// without deleting them, matching the default reconciliation policy, and
// retries a transient sync failure per retry.DefaultPolicy.
func NewSourceProvisioner() *SourceProvisioner {
	return &SourceProvisioner{Retry: retry.DefaultPolicy()}
}

// withRetry runs op, retrying up to p.Retry.MaxRetries times with the
// configured backoff when op fails. The caller's error already carries
// apperrors context, so withRetry only adds the retry/backoff loop around
// it rather than rewrapping the error.
func (p *SourceProvisioner) withRetry(daemonName, operation string, op func() error) error {
	var err error
	for attempt := 0; attempt <= p.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.Retry.Delay(attempt)
			slog.Warn("retrying source sync operation", logfields.Daemon(daemonName),
				slog.String("operation", operation), slog.Int("attempt", attempt), slog.Duration("delay", delay))
			time.Sleep(delay)
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}

func isRemoteURL(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "git@")
}

// Provision materializes a daemon's working tree from source. When source
// is a remote URL it clones targetName under parentFolder on first run and
// reconciles (fetch, conditional hard reset, pull) on subsequent runs, so
// the tree always ends up at parentFolder/targetName — the daemon's
// configured project folder. When source names a local .zip archive it
// extracts the archive's entries into parentFolder itself (so an archive
// whose top-level folder is targetName yields the project folder), and
// skips extraction if parentFolder/<archive-stem> already exists;
// targetName is not used for archives.
// authCfg is nil for an anonymous clone/fetch; when set it is resolved via
// internal/auth into the transport.AuthMethod passed to go-git.
func (p *SourceProvisioner) Provision(daemonName, source, parentFolder, targetName string, authCfg *config.AuthConfig) error {
	if isRemoteURL(source) {
		return p.syncRepo(daemonName, targetName, source, parentFolder, authCfg)
	}
	return p.extractArchive(daemonName, source, parentFolder)
}

func (p *SourceProvisioner) syncRepo(daemonName, targetName, url, parentFolder string, authCfg *config.AuthConfig) error {
	localPath := filepath.Join(parentFolder, targetName)
	gitDir := filepath.Join(localPath, ".git")

	method, err := auth.CreateAuth(authCfg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "resolve source authentication").
			WithContext("daemon", daemonName).Build()
	}

	if _, err := os.Stat(gitDir); err != nil {
		return p.withRetry(daemonName, "clone", func() error { return p.clone(daemonName, url, localPath, method) })
	}
	return p.withRetry(daemonName, "reconcile", func() error { return p.reconcile(daemonName, url, localPath, method) })
}

func (p *SourceProvisioner) clone(daemonName, url, localPath string, auth transport.AuthMethod) error {
	slog.Info("cloning source repository", logfields.Daemon(daemonName), logfields.SourceURL(url), logfields.Path(localPath))
	_, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: url, Auth: auth})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "clone source repository").
			WithContext("daemon", daemonName).WithContext("source_url", url).Build()
	}
	return nil
}

func (p *SourceProvisioner) reconcile(daemonName, url, localPath string, authMethod transport.AuthMethod) error {
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "open existing repository").
			WithContext("daemon", daemonName).WithContext("path", localPath).Build()
	}

	slog.Info("reconciling source repository", logfields.Daemon(daemonName), logfields.Path(localPath))

	if err := repo.Fetch(&git.FetchOptions{RemoteName: "origin", Auth: authMethod}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "fetch origin").
			WithContext("daemon", daemonName).WithContext("source_url", url).Build()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "open worktree").Build()
	}

	if p.CleanUntracked {
		if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
			slog.Warn("clean untracked files failed", logfields.Daemon(daemonName), logfields.Error(err))
		}
	}

	st, err := wt.Status()
	dirty := err == nil && !st.IsClean()
	if dirty {
		slog.Warn("working tree dirty, resetting to HEAD", logfields.Daemon(daemonName))
		if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
			return apperrors.Wrap(err, apperrors.CategoryProvisioning, "hard reset dirty worktree").Build()
		}
	}

	err = wt.Pull(&git.PullOptions{RemoteName: "origin", Auth: authMethod})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if strings.Contains(strings.ToLower(err.Error()), "non-fast-forward") {
			if rerr := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); rerr != nil {
				return apperrors.Wrap(rerr, apperrors.CategoryProvisioning, "hard reset diverged branch").Build()
			}
			return nil
		}
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "pull origin").
			WithContext("daemon", daemonName).WithContext("source_url", url).Build()
	}

	if head, err := repo.Head(); err == nil {
		slog.Info("source repository reconciled", logfields.Daemon(daemonName), slog.String("commit", head.Hash().String()[:8]))
	}
	return nil
}

func (p *SourceProvisioner) extractArchive(daemonName, archivePath, parentFolder string) error {
	stem := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	localPath := filepath.Join(parentFolder, stem)
	if _, err := os.Stat(localPath); err == nil {
		slog.Debug("archive target already extracted, skipping", logfields.Daemon(daemonName), logfields.Path(localPath))
		return nil
	}

	info, err := os.Stat(archivePath)
	if err != nil || info.IsDir() {
		return apperrors.New(apperrors.CategoryProvisioning, fmt.Sprintf("source archive %q does not exist", archivePath)).
			WithContext("daemon", daemonName).Build()
	}

	if err := os.MkdirAll(parentFolder, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "create parent folder").Build()
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "open archive").
			WithContext("daemon", daemonName).WithContext("path", archivePath).Build()
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractZipEntry(f, parentFolder); err != nil {
			return apperrors.Wrap(err, apperrors.CategoryProvisioning, "extract archive entry").
				WithContext("daemon", daemonName).WithContext("entry", f.Name).Build()
		}
	}
	slog.Info("archive extracted", logfields.Daemon(daemonName), logfields.Path(archivePath))
	return nil
}

func extractZipEntry(f *zip.File, destRoot string) error {
	destPath := filepath.Join(destRoot, f.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destRoot)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path in archive: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Reconcile re-validates an existing, already-provisioned tree without
// re-cloning: fetch, conditional hard reset, pull. It is a thin wrapper
// over reconcile for callers (e.g. a future "resync" control operation)
// that only ever expect a tree to already exist.
func (p *SourceProvisioner) Reconcile(daemonName, url, localPath string, authCfg *config.AuthConfig) error {
	method, err := auth.CreateAuth(authCfg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryProvisioning, "resolve source authentication").
			WithContext("daemon", daemonName).Build()
	}
	return p.withRetry(daemonName, "reconcile", func() error { return p.reconcile(daemonName, url, localPath, method) })
}

// QueryStatus reports the reconciliation state of a target directory.
func QueryStatus(localPath string) Status {
	info, statErr := os.Stat(localPath)
	exists := statErr == nil && info.IsDir()
	gitDir := filepath.Join(localPath, ".git")
	gitInfo, gitErr := os.Stat(gitDir)
	gitInitialized := gitErr == nil && gitInfo.IsDir()

	status := Status{Exists: exists, GitInitialized: gitInitialized}
	if !gitInitialized {
		return status
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return status
	}
	wt, err := repo.Worktree()
	if err != nil {
		return status
	}
	st, err := wt.Status()
	if err != nil {
		return status
	}
	status.Dirty = !st.IsClean()
	for path := range st {
		if st.IsUntracked(path) {
			status.UntrackedFiles = append(status.UntrackedFiles, path)
		}
	}
	return status
}
