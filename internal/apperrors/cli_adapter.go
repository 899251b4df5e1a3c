package apperrors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// CLIAdapter maps a SupervisorError to a process exit code and a
// user-facing message for cmd/sentineld.
type CLIAdapter struct {
	verbose bool
	logger  *slog.Logger
}

func NewCLIAdapter(verbose bool, logger *slog.Logger) *CLIAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor maps categories to distinct exit codes so scripts driving
// sentineld can distinguish failure classes.
func (a *CLIAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	se, ok := As(err)
	if !ok {
		return 1
	}
	switch se.Category() {
	case CategoryValidation:
		return 2
	case CategoryConfig:
		return 7
	case CategoryAccessDenied:
		return 5
	case CategoryProvisioning, CategoryEnvironment, CategoryIsolation:
		return 8
	case CategoryRuntime, CategoryRestartBudget, CategoryTimeout:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

func (a *CLIAdapter) Format(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := As(err); ok {
		if a.verbose {
			return se.Error()
		}
		return se.Message()
	}
	return fmt.Sprintf("error: %v", err)
}

// HandleError logs, prints, and exits the process.
func (a *CLIAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if se, ok := As(err); ok {
		a.logger.LogAttrs(context.Background(), levelFor(se.Severity()), se.Message(),
			slog.String("category", string(se.Category())))
	} else {
		a.logger.Error(err.Error())
	}
	fmt.Fprintln(os.Stderr, a.Format(err))
	os.Exit(a.ExitCodeFor(err))
}
