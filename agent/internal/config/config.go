package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/winsight/agent/internal/devices"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval   = 5 * time.Minute
	DefaultWindow     = 24 * time.Hour
	DefaultTopN       = 10
	DefaultBufferSize = 100
	DefaultLogLevel   = "info"
	DefaultAuthHeader = "x-api-key"
)

// Source types.
const (
	SourceArchive = "archive"
	SourceReplay  = "replay"
	SourceHTTP    = "http"
	SourceLogFile = "logfile"
)

// Config is the top-level agent configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ID names this host in reports. Defaults to the OS hostname.
	ID string `yaml:"id"`

	// Interval controls how often sources are collected in watch mode.
	Interval time.Duration `yaml:"interval"`

	// Window is the sliding window analysed on each pass.
	Window time.Duration `yaml:"window"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// TopN caps each report breakdown.
	TopN int `yaml:"top_n"`

	// Sources is the list of raw record feeds.
	Sources []Source `yaml:"sources"`

	// RulesFile is an optional JSON or YAML declarative rule document.
	RulesFile string `yaml:"rules_file"`

	// BDFOverrides pins PCI bus/device/function triples to labels.
	BDFOverrides []devices.BDFOverride `yaml:"bdf_overrides"`

	// Devices maps device ids to friendly names for the report breakdown.
	Devices map[string]string `yaml:"devices"`

	// EventPatterns are case-insensitive regexes counted over event content.
	EventPatterns []string `yaml:"event_patterns"`

	// FilePatterns are regexes matched line by line by logfile sources.
	FilePatterns []string `yaml:"file_patterns"`

	// Samples selects the events quoted verbatim in each report.
	Samples SamplesConfig `yaml:"samples"`

	Output OutputConfig `yaml:"output"`

	// Server configures report delivery. Shipping is off when Endpoint is empty.
	Server ServerConfig `yaml:"server"`
}

// Source describes one feed of raw event records.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is one of: archive | replay | http | logfile.
	Type string `yaml:"type"`

	// Path is a file, directory, or glob for archive, replay and logfile sources.
	Path string `yaml:"path"`

	// Glob filters file base names under a directory Path (logfile, archive).
	Glob string `yaml:"glob"`

	// Channel is the channel name used when a record does not carry one.
	Channel string `yaml:"channel"`

	// Endpoint is the URL polled by http sources.
	Endpoint string `yaml:"endpoint"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for an HTTP peer.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header that carries the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string { return env(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return env(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return env(a.PasswordEnv) }

// EffectiveHeader returns Header, or DefaultAuthHeader when unset.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAuthHeader
	}
	return a.Header
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SamplesConfig controls Report.Samples.
type SamplesConfig struct {
	// Count caps the list. Zero uses top_n; a negative value disables samples.
	Count int `yaml:"count"`
	// SortBy is one of: time | severity | provider | channel | event_id.
	SortBy string `yaml:"sort_by"`
	// Order is desc (default) or asc.
	Order string `yaml:"order"`
	// PerChannel and PerProvider cap samples per channel or provider. Zero is unlimited.
	PerChannel  int `yaml:"per_channel"`
	PerProvider int `yaml:"per_provider"`
}

// OutputConfig names the files written after each pass. Empty paths are skipped.
type OutputConfig struct {
	ReportPath  string `yaml:"report_path"`
	NDJSONPath  string `yaml:"ndjson_path"`
	MetricsPath string `yaml:"metrics_path"`
}

// ServerConfig configures delivery of reports to winsight-server.
type ServerConfig struct {
	// Endpoint is the server base URL, e.g. "http://winsight:8080".
	Endpoint string `yaml:"endpoint"`

	// Auth supports the same modes as source auth.
	Auth AuthConfig `yaml:"auth"`

	TLS TLSConfig `yaml:"tls"`

	// BufferSize is the maximum number of reports held in memory when the
	// server is unreachable.
	BufferSize int `yaml:"buffer_size"`
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values map to info.
func (a AgentConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Agent.ID == "" {
		cfg.Agent.ID, _ = os.Hostname()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Interval: DefaultInterval,
			Window:   DefaultWindow,
			LogLevel: DefaultLogLevel,
			TopN:     DefaultTopN,
			Server:   ServerConfig{BufferSize: DefaultBufferSize},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.Interval <= 0 {
		return fmt.Errorf("agent.interval must be positive")
	}
	if a.Window <= 0 {
		return fmt.Errorf("agent.window must be positive")
	}
	if a.TopN <= 0 {
		return fmt.Errorf("agent.top_n must be positive")
	}
	switch a.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level: unknown level %q", a.LogLevel)
	}
	switch a.Samples.SortBy {
	case "", "time", "severity", "provider", "channel", "event_id":
	default:
		return fmt.Errorf("agent.samples.sort_by: unknown key %q", a.Samples.SortBy)
	}
	switch a.Samples.Order {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("agent.samples.order: unknown order %q", a.Samples.Order)
	}
	if a.Samples.PerChannel < 0 || a.Samples.PerProvider < 0 {
		return fmt.Errorf("agent.samples: per-channel and per-provider limits must not be negative")
	}
	if a.Server.Endpoint != "" && a.Server.BufferSize <= 0 {
		return fmt.Errorf("agent.server.buffer_size must be positive")
	}
	if err := validateAuth(a.Server.Auth); err != nil {
		return fmt.Errorf("agent.server: %w", err)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case SourceArchive, SourceReplay, SourceLogFile:
			if src.Path == "" {
				return fmt.Errorf("sources[%d] %q: path is required", i, src.ID)
			}
		case SourceHTTP:
			if src.Endpoint == "" {
				return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		if err := validateAuth(src.Auth); err != nil {
			return fmt.Errorf("sources[%d] %q: %w", i, src.ID, err)
		}
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	switch a.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	}
	return fmt.Errorf("unknown auth mode %q", a.Mode)
}
