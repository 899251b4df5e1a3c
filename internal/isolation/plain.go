package isolation

import (
	"github.com/sentineld/sentineld/internal/command"
	"github.com/sentineld/sentineld/internal/procstat"
)

// PlainProvider spawns the child directly, with no sandboxing. It is the
// universal fallback on platforms or hosts without sandbox support.
type PlainProvider struct {
	executor *command.Executor
}

func NewPlainProvider(executor *command.Executor) *PlainProvider {
	return &PlainProvider{executor: executor}
}

func (p *PlainProvider) Name() string { return "plain" }

func (p *PlainProvider) Launch(spec command.Spec, projectFolder string) (*procstat.Handle, error) {
	cmd, err := p.executor.SpawnDetached(spec)
	if err != nil {
		return nil, err
	}
	return procstat.NewHandle(cmd.Process.Pid), nil
}
