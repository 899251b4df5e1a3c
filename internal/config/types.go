// Package config loads and validates the daemon-fleet configuration document.
package config

// Fleet is the top-level configuration document, unmarshaled directly from
// YAML before defaults are applied.
type Fleet struct {
	DaemonsPath        string                 `yaml:"daemons-path"`
	DefaultArgs        string                 `yaml:"default-args"`
	DefaultVenv        bool                   `yaml:"default-venv"`
	DefaultAutoRestart bool                   `yaml:"default-auto-restart"`
	Daemons            map[string]DaemonEntry `yaml:"daemons"`
	Access             AccessConfig           `yaml:"access,omitempty"`
	HTTP               HTTPConfig             `yaml:"http,omitempty"`
	Events             EventsConfig           `yaml:"events,omitempty"`
	SourceRetry        RetryConfig            `yaml:"source-retry,omitempty"`
}

// RetryConfig configures the backoff applied to a transient source clone/
// fetch/pull failure.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial-delay,omitempty"`
	MaxDelay     string           `yaml:"max-delay,omitempty"`
	MaxRetries   int              `yaml:"max-retries,omitempty"`
}

// DaemonEntry is the raw per-daemon YAML shape.
type DaemonEntry struct {
	Dir          string `yaml:"dir"`
	Target       string `yaml:"target"`
	Arguments    string `yaml:"arguments"`
	Requirements string `yaml:"requirements"`
	AutoRestart  *bool  `yaml:"auto-restart"`
	Virtualenv   *bool  `yaml:"virtualenv"`
	SourceURL    string `yaml:"source-url,omitempty"`
	SourceAuth   *AuthConfig `yaml:"source-auth,omitempty"`
}

// AccessConfig configures the control API's AccessGuard and token store.
type AccessConfig struct {
	SQLitePath         string `yaml:"sqlite-path"`
	InvitationTTLHours int    `yaml:"invitation-ttl-hours"`
	RateLimitPerMinute int    `yaml:"rate-limit-per-minute"`
}

// HTTPConfig configures the control API listener.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen-addr"`
}

// EventsConfig optionally bridges daemon lifecycle events to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats-url,omitempty"`
}

const (
	// RequirementsIgnoreSentinel is the YAML value meaning "no requirements file".
	RequirementsIgnoreSentinel = "-"
	// RequirementsDefaultKeyword selects requirements.txt under the daemon's dir.
	RequirementsDefaultKeyword = "default"

	DefaultTarget             = "main.py"
	DefaultSQLitePath         = "sentineld.db"
	DefaultInvitationTTLHours = 24
	DefaultRateLimitPerMinute = 5
	DefaultListenAddr         = ":8080"
)

// DaemonConfig is the normalized, immutable-once-loaded configuration for a
// single daemon, derived from a DaemonEntry plus fleet-wide defaults.
type DaemonConfig struct {
	Name               string
	ProjectFolder      string
	MainFile           string
	MainFileArguments  []string
	RequirementsPath   *string // nil means no requirements are provisioned
	CreateEnv          bool
	KeepRunning        bool
	SourceURL          string      // empty means no remote source
	SourceAuth         *AuthConfig // nil means anonymous clone/fetch
}
