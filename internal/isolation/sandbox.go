package isolation

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/logfields"
	"github.com/sentineld/sentineld/internal/procstat"
)

// sandboxExePath is the well-known install location checked before falling
// back to a PATH lookup.
const sandboxExePath = `C:\Windows\System32\WindowsSandbox.exe`

// sandboxMountPoint is the fixed in-sandbox mount point the host project
// folder is bound to.
const sandboxMountPoint = `C:\sandbox`

const sandboxConfigTemplate = `<Configuration>
  <MappedFolders>
    <MappedFolder>
      <HostFolder>{{.HostFolder}}</HostFolder>
      <SandboxFolder>{{.SandboxFolder}}</SandboxFolder>
      <ReadOnly>false</ReadOnly>
    </MappedFolder>
  </MappedFolders>
  <LogonCommand>
    <Command>{{.Command}}</Command>
  </LogonCommand>
</Configuration>
`

var sandboxTmpl = template.Must(template.New("wsb").Parse(sandboxConfigTemplate))

type sandboxTemplateData struct {
	HostFolder    string
	SandboxFolder string
	Command       string
}

// SandboxProvider launches a daemon inside a Windows Sandbox instance,
// binding its project folder in and substituting the daemon's command
// into the sandbox's logon command.
type SandboxProvider struct {
	executor *command.Executor
}

func NewSandboxProvider(executor *command.Executor) *SandboxProvider {
	return &SandboxProvider{executor: executor}
}

func (s *SandboxProvider) Name() string { return "sandbox" }

// Available reports whether this host can run the sandboxed variant: the
// OS is Windows and the sandbox executable is reachable either at its
// well-known path or on PATH.
func (s *SandboxProvider) Available() bool {
	if runtime.GOOS != "windows" {
		return false
	}
	if info, err := os.Stat(sandboxExePath); err == nil && !info.IsDir() {
		return true
	}
	_, err := exec.LookPath("WindowsSandbox.exe")
	return err == nil
}

// renderSandboxConfig substitutes HOST_FOLDER, SANDBOX_FOLDER, and COMMAND
// into the sandbox configuration template.
func renderSandboxConfig(projectFolder string, spec command.Spec) (string, error) {
	data := sandboxTemplateData{
		HostFolder:    projectFolder,
		SandboxFolder: sandboxMountPoint,
		Command:       spec.String(),
	}
	var rendered strings.Builder
	if err := sandboxTmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func (s *SandboxProvider) Launch(spec command.Spec, projectFolder string) (*procstat.Handle, error) {
	configPath := filepath.Join(filepath.Dir(projectFolder), "config.wsb")

	rendered, err := renderSandboxConfig(projectFolder, spec)
	if err != nil {
		return nil, apperrors.IsolationFailed(projectFolder, err)
	}

	if err := os.WriteFile(configPath, []byte(rendered), 0o644); err != nil {
		return nil, apperrors.IsolationFailed(projectFolder, err)
	}

	launchSpec := command.New("cmd", "/C", "start", "WindowsSandbox", configPath)
	cmd, err := s.executor.SpawnDetached(launchSpec)
	if err != nil {
		return nil, apperrors.IsolationFailed(projectFolder, err)
	}

	handle := procstat.NewHandle(cmd.Process.Pid)
	if !handle.IsRunning() {
		return nil, apperrors.IsolationFailed(projectFolder, nil)
	}

	slog.Info("launched daemon in sandbox", logfields.Path(projectFolder), logfields.Path(configPath))
	return handle, nil
}
