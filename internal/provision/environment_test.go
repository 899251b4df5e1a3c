package provision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentineld/sentineld/internal/command"
	"github.com/stretchr/testify/require"
)

func fakeEnvironmentProvisioner() *EnvironmentProvisioner {
	p := NewEnvironmentProvisioner(command.NewExecutor())
	p.EnvCreateCommand = func(envPath string) command.Spec {
		return command.New("/bin/mkdir", "-p", envPath)
	}
	p.DependencyInstallCommand = func(envPath, requirementsPath string) command.Spec {
		return command.New("/bin/sh", "-c", "cat "+requirementsPath+" > /dev/null")
	}
	return p
}

func TestCreateEnvCreatesDirectory(t *testing.T) {
	projectFolder := t.TempDir()
	p := fakeEnvironmentProvisioner()

	ok, err := p.CreateEnv(context.Background(), "demo", projectFolder)
	require.NoError(t, err)
	require.True(t, ok)
	require.DirExists(t, filepath.Join(projectFolder, venvRelativePath))
}

func TestCreateEnvSkipsWhenAlreadyExists(t *testing.T) {
	projectFolder := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectFolder, venvRelativePath), 0o755))
	p := fakeEnvironmentProvisioner()
	p.EnvCreateCommand = func(envPath string) command.Spec {
		t.Fatal("env create command should not run when env already exists")
		return command.Spec{}
	}

	ok, err := p.CreateEnv(context.Background(), "demo", projectFolder)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInstallRequirementsMissingPathReturnsNilNoError(t *testing.T) {
	p := fakeEnvironmentProvisioner()
	lines, err := p.InstallRequirements(context.Background(), "demo", t.TempDir(), "", false)
	require.NoError(t, err)
	require.Nil(t, lines)
}

func TestInstallRequirementsMissingFileReturnsNilNoError(t *testing.T) {
	p := fakeEnvironmentProvisioner()
	lines, err := p.InstallRequirements(context.Background(), "demo", t.TempDir(), "/no/such/requirements.txt", false)
	require.NoError(t, err)
	require.Nil(t, lines)
}

func TestInstallRequirementsReadsRecordedLines(t *testing.T) {
	projectFolder := t.TempDir()
	reqPath := filepath.Join(projectFolder, "requirements.txt")
	require.NoError(t, os.WriteFile(reqPath, []byte("flask==2.0\n\nrequests==2.31\n"), 0o644))

	p := fakeEnvironmentProvisioner()
	lines, err := p.InstallRequirements(context.Background(), "demo", projectFolder, reqPath, true)
	require.NoError(t, err)
	require.Equal(t, []string{"flask==2.0", "requests==2.31"}, lines)
	require.DirExists(t, filepath.Join(projectFolder, venvRelativePath))
}

func TestInstallRequirementsWithoutCreateEnvSkipsEnvCreation(t *testing.T) {
	projectFolder := t.TempDir()
	reqPath := filepath.Join(projectFolder, "requirements.txt")
	require.NoError(t, os.WriteFile(reqPath, []byte("flask==2.0\n"), 0o644))

	p := fakeEnvironmentProvisioner()
	p.EnvCreateCommand = func(envPath string) command.Spec {
		t.Fatal("env create command should not run when create_env is false")
		return command.Spec{}
	}

	lines, err := p.InstallRequirements(context.Background(), "demo", projectFolder, reqPath, false)
	require.NoError(t, err)
	require.Equal(t, []string{"flask==2.0"}, lines)
	require.NoDirExists(t, filepath.Join(projectFolder, venvRelativePath))
}
