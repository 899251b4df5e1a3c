package apperrors

// Builder provides a fluent API for constructing a SupervisorError.
type Builder struct {
	category Category
	severity Severity
	retry    RetryStrategy
	message  string
	cause    error
	context  Context
}

// New starts a builder for a fresh error in the given category.
func New(category Category, message string) *Builder {
	return &Builder{category: category, severity: SeverityError, retry: RetryNever, message: message, context: make(Context)}
}

// Wrap starts a builder that wraps an existing error.
func Wrap(err error, category Category, message string) *Builder {
	return &Builder{category: category, severity: SeverityError, retry: RetryNever, message: message, cause: err, context: make(Context)}
}

func (b *Builder) WithSeverity(s Severity) *Builder { b.severity = s; return b }
func (b *Builder) WithRetry(r RetryStrategy) *Builder { b.retry = r; return b }
func (b *Builder) WithContext(key string, value any) *Builder {
	b.context = b.context.Set(key, value)
	return b
}

func (b *Builder) Fatal() *Builder   { return b.WithSeverity(SeverityFatal) }
func (b *Builder) Warning() *Builder { return b.WithSeverity(SeverityWarning) }
func (b *Builder) Retryable() *Builder { return b.WithRetry(RetryBackoff) }

func (b *Builder) Build() *SupervisorError {
	return &SupervisorError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors, one per spec.md §7 error kind.

func ConfigMissing(path string) *SupervisorError {
	return New(CategoryConfig, "config file not found: "+path).Fatal().Build()
}

func ConfigEmpty(path string) *SupervisorError {
	return New(CategoryConfig, "config file is empty: "+path).Fatal().Build()
}

func ValidationFailed(message string) *SupervisorError {
	return New(CategoryValidation, message).Build()
}

func DaemonAlreadyRunning(name string) *SupervisorError {
	return New(CategoryAlreadyRunning, "daemon already running").WithContext("daemon", name).Build()
}

func DaemonNotRunning(name string) *SupervisorError {
	return New(CategoryNotRunning, "daemon is not running").WithContext("daemon", name).Build()
}

func DaemonNotFound(name string) *SupervisorError {
	return New(CategoryNotFound, "no such daemon").WithContext("daemon", name).Build()
}

func AccessDenied(reason string) *SupervisorError {
	return New(CategoryAccessDenied, reason).Build()
}

func Timeout(op string, cause error) *SupervisorError {
	return Wrap(cause, CategoryTimeout, op+" timed out").Build()
}

func RestartBudgetExhausted(name string, failed, max int) *SupervisorError {
	return New(CategoryRestartBudget, "restart budget exhausted").
		WithContext("daemon", name).
		WithContext("failed_starts", failed).
		WithContext("max_failed_starts", max).
		Fatal().Build()
}

func ProvisioningFailed(name string, cause error) *SupervisorError {
	return Wrap(cause, CategoryProvisioning, "failed to provision source").
		WithContext("daemon", name).Retryable().Build()
}

func EnvironmentFailed(name string, cause error) *SupervisorError {
	return Wrap(cause, CategoryEnvironment, "failed to prepare runtime environment").
		WithContext("daemon", name).Build()
}

func IsolationFailed(name string, cause error) *SupervisorError {
	return Wrap(cause, CategoryIsolation, "failed to launch in isolation").
		WithContext("daemon", name).Warning().Build()
}

func SpawnFailed(name string, cause error) *SupervisorError {
	return Wrap(cause, CategoryRuntime, "failed to spawn process").
		WithContext("daemon", name).Build()
}

func Internal(message string, cause error) *SupervisorError {
	return Wrap(cause, CategoryInternal, message).Fatal().Build()
}
