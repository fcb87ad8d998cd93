// Package config loads the supervisor's DaemonConfig and ambient
// settings from YAML (with JSON as a secondary accepted format, carried
// over from the teacher's loadConfig), plus a .env overlay for
// deployment-specific values (SPEC_FULL.md §10.2).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DaemonConfig is immutable after start (spec.md §3).
type DaemonConfig struct {
	NodePath      string   `yaml:"nodePath" json:"nodePath"`
	LogFilePath   string   `yaml:"logFilePath" json:"logFilePath"`
	TLSPath       string   `yaml:"tlsPath" json:"tlsPath"`
	NodeArgs      []string `yaml:"nodeArgs" json:"nodeArgs"`

	StartupTimeoutMs  int `yaml:"startupTimeoutMs" json:"startupTimeoutMs"`
	ShutdownTimeoutMs int `yaml:"shutdownTimeoutMs" json:"shutdownTimeoutMs"`
	KillTimeoutMs     int `yaml:"killTimeoutMs" json:"killTimeoutMs"`
	UpdateTimeoutMs   int `yaml:"updateTimeoutMs" json:"updateTimeoutMs"`

	StartupMaxRetries int `yaml:"startupMaxRetries" json:"startupMaxRetries"`

	// Network names the target Cardano network (mainnet, preprod,
	// preview, ...); it derives the persistence key (§6). The alive-probe's
	// expected executable name comes from NodePath's basename, not from
	// Network.
	Network string `yaml:"network" json:"network"`
}

func (c DaemonConfig) StartupTimeout() time.Duration  { return time.Duration(c.StartupTimeoutMs) * time.Millisecond }
func (c DaemonConfig) ShutdownTimeout() time.Duration { return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond }
func (c DaemonConfig) KillTimeout() time.Duration     { return time.Duration(c.KillTimeoutMs) * time.Millisecond }
func (c DaemonConfig) UpdateTimeout() time.Duration   { return time.Duration(c.UpdateTimeoutMs) * time.Millisecond }

// Validate checks the positivity/non-negativity constraints spec.md §3
// places on DaemonConfig's duration and retry fields.
func (c DaemonConfig) Validate() error {
	if c.NodePath == "" {
		return fmt.Errorf("config: nodePath is required")
	}
	if c.StartupTimeoutMs <= 0 || c.ShutdownTimeoutMs <= 0 || c.KillTimeoutMs <= 0 || c.UpdateTimeoutMs <= 0 {
		return fmt.Errorf("config: all timeouts must be positive")
	}
	if c.StartupMaxRetries < 0 {
		return fmt.Errorf("config: startupMaxRetries must be non-negative")
	}
	return nil
}

// Settings is the supervisor-process-level configuration wrapping a
// DaemonConfig: metrics/control surface bind address, the persistence
// DSN, and the supervisor's own log path.
type Settings struct {
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	MetricsAddr      string   `yaml:"metricsAddr" json:"metricsAddr"`
	PersistenceDSN   string   `yaml:"persistenceDsn" json:"persistenceDsn"`
	SupervisorLogDir string   `yaml:"supervisorLogDir" json:"supervisorLogDir"`
	EnvFiles         []string `yaml:"envFiles" json:"envFiles"`
}

// Load reads Settings from path (YAML by default, JSON if the extension
// says so — the teacher's dual-format loadConfig), then applies any
// .env overlays listed in EnvFiles via godotenv.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var s Settings
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	}

	for _, envFile := range s.EnvFiles {
		if envFile == "" {
			continue
		}
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	if network := os.Getenv("CARDANO_NETWORK"); network != "" {
		s.Daemon.Network = network
	}

	return &s, nil
}
