// Package config handles loading and validating mikopo configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for mikopo.
type Config struct {
	Workspace     string               `json:"workspace,omitempty" yaml:"workspace,omitempty"` // Workspace root. Default: ~/.mikopo/workspace. Override: MIKOPO_WORKSPACE env var.
	Tools         ToolsConfig          `json:"tools" yaml:"tools"`
	Fleet         FleetConfig          `json:"fleet" yaml:"fleet"`
	Gateway       GatewayConfig        `json:"gateway" yaml:"gateway"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ToolsConfig configures the credit tool server connection.
type ToolsConfig struct {
	Credit CreditToolConfig `json:"credit" yaml:"credit"`
}

// CreditToolConfig defines how the broker reaches the credit tool server.
// When Command is empty, the broker spawns its own executable with the
// "serve" subcommand.
type CreditToolConfig struct {
	Command            string            `json:"command,omitempty" yaml:"command,omitempty"` // Executable to launch over stdio.
	Args               []string          `json:"args,omitempty" yaml:"args,omitempty"`       // Command arguments.
	Env                map[string]string `json:"env,omitempty" yaml:"env,omitempty"`         // Subprocess env vars.
	CallTimeoutSeconds int               `json:"call_timeout_seconds" yaml:"call_timeout_seconds"`
}

// CallTimeout returns the per-call timeout with a default of 5s.
func (c *CreditToolConfig) CallTimeout() time.Duration {
	if c != nil && c.CallTimeoutSeconds > 0 {
		return time.Duration(c.CallTimeoutSeconds) * time.Second
	}
	return 5 * time.Second
}

// EnvSlice flattens the env map into "KEY=value" entries for exec.
func (c *CreditToolConfig) EnvSlice() []string {
	if c == nil || len(c.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// FleetConfig configures the agent worker fleet.
type FleetConfig struct {
	Workers               map[string]WorkerConfig `json:"workers,omitempty" yaml:"workers,omitempty"` // Per-role overrides, keyed by role name.
	StartupTimeoutSeconds int                     `json:"startup_timeout_seconds" yaml:"startup_timeout_seconds"`
	GracePeriodSeconds    int                     `json:"grace_period_seconds" yaml:"grace_period_seconds"`
}

// WorkerConfig overrides the launch settings of one fleet role.
type WorkerConfig struct {
	Command []string `json:"command,omitempty" yaml:"command,omitempty"` // Full command line. Empty = own executable with "agent" subcommand.
	Port    int      `json:"port,omitempty" yaml:"port,omitempty"`       // Listen port. 0 = role default.
}

// StartupTimeout returns the worker startup timeout with a default of 10s.
func (f *FleetConfig) StartupTimeout() time.Duration {
	if f != nil && f.StartupTimeoutSeconds > 0 {
		return time.Duration(f.StartupTimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

// GracePeriod returns the shutdown grace period with a default of 10s.
func (f *FleetConfig) GracePeriod() time.Duration {
	if f != nil && f.GracePeriodSeconds > 0 {
		return time.Duration(f.GracePeriodSeconds) * time.Second
	}
	return 10 * time.Second
}

// GatewayConfig configures the coordinator HTTP gateway.
type GatewayConfig struct {
	ListenAddr          string          `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080". Override: MIKOPO_GATEWAY_ADDR env var.
	EnableDocs          bool            `json:"enable_docs" yaml:"enable_docs"`
	MaxRequestSizeBytes int64           `json:"max_request_size_bytes" yaml:"max_request_size_bytes"`
	RateLimit           RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig throttles the assessment endpoint per client.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"` // 0 = unlimited
	BurstSize         int `json:"burst_size" yaml:"burst_size"`
}

// Addr returns the listen address with a default of ":8080".
func (g *GatewayConfig) Addr() string {
	if g != nil && g.ListenAddr != "" {
		return g.ListenAddr
	}
	return ":8080"
}

// ObservabilityConfig configures metrics, tracing, and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the exposition path with a default of "/metrics".
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "mikopo"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.mikopo/config.json).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/mikopo.json" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".mikopo", "config.json")
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{}
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	// Expand ~ in config path.
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads the config file when present and falls back to the
// built-in defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}
	if _, statErr := os.Stat(resolved); os.IsNotExist(statErr) {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return Load(path)
}

// applyEnvOverrides applies MIKOPO_* environment variables on top of the
// file-provided values.
func applyEnvOverrides(cfg *Config) {
	if envWS := os.Getenv("MIKOPO_WORKSPACE"); envWS != "" {
		cfg.Workspace = envWS
	}
	if envAddr := os.Getenv("MIKOPO_GATEWAY_ADDR"); envAddr != "" {
		cfg.Gateway.ListenAddr = envAddr
	}
	if envCmd := os.Getenv("MIKOPO_CREDIT_TOOL_COMMAND"); envCmd != "" {
		cfg.Tools.Credit.Command = envCmd
		cfg.Tools.Credit.Args = nil
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) validate() error {
	if c.Tools.Credit.CallTimeoutSeconds < 0 {
		return fmt.Errorf("tools.credit.call_timeout_seconds must not be negative")
	}
	if c.Fleet.StartupTimeoutSeconds < 0 {
		return fmt.Errorf("fleet.startup_timeout_seconds must not be negative")
	}
	if c.Fleet.GracePeriodSeconds < 0 {
		return fmt.Errorf("fleet.grace_period_seconds must not be negative")
	}
	if c.Gateway.MaxRequestSizeBytes < 0 {
		return fmt.Errorf("gateway.max_request_size_bytes must not be negative")
	}
	for role, w := range c.Fleet.Workers {
		if role == "" {
			return fmt.Errorf("fleet.workers contains an empty role name")
		}
		if w.Port < 0 || w.Port > 65535 {
			return fmt.Errorf("fleet.workers.%s.port %d is out of range", role, w.Port)
		}
	}
	return nil
}
