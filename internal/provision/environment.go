package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/logfields"

	"log/slog"
)

// venvRelativePath is the fixed directory name for a daemon's private
// runtime environment, created under its project folder.
const venvRelativePath = "env"

// EnvironmentProvisioner creates a private per-daemon runtime environment
// and installs its declared dependencies into it. It is stateless and safe
// to share across daemons; per-daemon provisioning state (env_created,
// installed_requirements) is tracked by the caller.
type EnvironmentProvisioner struct {
	executor *command.Executor
	// EnvCreateCommand builds the argv used to create a new environment,
	// given its target directory. Defaults to the Python venv module.
	EnvCreateCommand func(envPath string) command.Spec
	// DependencyInstallCommand builds the argv used to install a
	// requirements file, given the environment path (may be empty when no
	// env was created) and the requirements file path.
	DependencyInstallCommand func(envPath, requirementsPath string) command.Spec
}

// NewEnvironmentProvisioner returns a provisioner using python3's venv and
// pip modules, the runtime this supervisor's daemon fleet targets.
func NewEnvironmentProvisioner(executor *command.Executor) *EnvironmentProvisioner {
	return &EnvironmentProvisioner{
		executor: executor,
		EnvCreateCommand: func(envPath string) command.Spec {
			return command.New("python3", "-m", "venv", envPath)
		},
		DependencyInstallCommand: func(envPath, requirementsPath string) command.Spec {
			pip := "pip3"
			if envPath != "" {
				pip = filepath.Join(envPath, "bin", "pip3")
			}
			return command.New(pip, "install", "-r", requirementsPath)
		},
	}
}

// CreateEnv creates a private runtime environment under projectFolder/env.
// If the directory already exists, it is left untouched and CreateEnv
// returns true with no command executed (CreateEnv logs this as a warning,
// not an error: a daemon restarted after a clean env creation must not
// fail just because the env survived the restart).
func (p *EnvironmentProvisioner) CreateEnv(ctx context.Context, daemonName, projectFolder string) (bool, error) {
	envPath := filepath.Join(projectFolder, venvRelativePath)
	if info, err := os.Stat(envPath); err == nil && info.IsDir() {
		slog.Warn("runtime environment already exists, skipping creation", logfields.Daemon(daemonName), logfields.Path(envPath))
		return true, nil
	}

	spec := p.EnvCreateCommand(envPath)
	if !spec.Verify() {
		slog.Error("environment creation command not found on PATH", logfields.Daemon(daemonName), slog.String("executable", spec.Executable))
		return false, nil
	}

	code, _, err := p.executor.ExecuteBlocking(ctx, spec, true, 0)
	if err != nil {
		return false, err
	}
	if code != 0 {
		slog.Error("failed to create runtime environment", logfields.Daemon(daemonName), slog.Int("exit_code", code))
		return false, nil
	}
	slog.Info("created runtime environment", logfields.Daemon(daemonName), logfields.Path(envPath))
	return true, nil
}

// InstallRequirements installs requirementsPath's dependencies, creating
// the environment first if createEnv is true and it does not yet exist.
// On success it returns the requirements file's non-empty lines, recorded
// by the caller as installed_requirements.
func (p *EnvironmentProvisioner) InstallRequirements(ctx context.Context, daemonName, projectFolder, requirementsPath string, createEnv bool) ([]string, error) {
	if requirementsPath == "" {
		slog.Warn("install requirements called with no requirements path set", logfields.Daemon(daemonName))
		return nil, nil
	}
	if _, err := os.Stat(requirementsPath); err != nil {
		slog.Warn("requirements file not found", logfields.Daemon(daemonName), logfields.Path(requirementsPath))
		return nil, nil
	}

	envPath := ""
	if createEnv {
		envPath = filepath.Join(projectFolder, venvRelativePath)
		if ok, err := p.CreateEnv(ctx, daemonName, projectFolder); err != nil {
			return nil, err
		} else if !ok {
			return nil, nil
		}
	}

	spec := p.DependencyInstallCommand(envPath, requirementsPath)
	code, _, err := p.executor.ExecuteBlocking(ctx, spec, true, 0)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		slog.Error("failed to install requirements", logfields.Daemon(daemonName), slog.Int("exit_code", code))
		return nil, nil
	}

	lines, err := readRequirementsFile(requirementsPath)
	if err != nil {
		return nil, err
	}
	slog.Info("installed requirements", logfields.Daemon(daemonName), slog.Int("count", len(lines)))
	return lines, nil
}

func readRequirementsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
