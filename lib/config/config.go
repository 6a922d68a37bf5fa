// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable consulted by Load.
const EnvConfig = "CATCHUP_CONFIG"

// ErrNoConfig is returned by Load when CATCHUP_CONFIG is unset.
var ErrNoConfig = errors.New("config: CATCHUP_CONFIG environment variable not set; " +
	"set it to the path of your catchup.yaml config file, or use --config flag")

// Config is the agent configuration.
type Config struct {
	Matrix MatrixConfig `yaml:"matrix"`

	// Rooms lists the room IDs to watch.
	Rooms []string `yaml:"rooms"`

	// IgnoreSenders lists user IDs whose messages never count as
	// message-kind events (typically the agent's own account and
	// other bots).
	IgnoreSenders []string `yaml:"ignore_senders"`

	Scan     ScanConfig      `yaml:"scan"`
	Sync     SyncConfig      `yaml:"sync"`
	Features []FeatureConfig `yaml:"features"`
	State    StateConfig     `yaml:"state"`
	Notify   NotifyConfig    `yaml:"notify"`
	API      APIConfig       `yaml:"api"`
	Log      LogConfig       `yaml:"log"`
}

// MatrixConfig configures the homeserver connection.
type MatrixConfig struct {
	HomeserverURL string `yaml:"homeserver_url"`

	// UserID is the agent's own Matrix ID. It is checked against
	// /whoami at startup.
	UserID string `yaml:"user_id"`

	// AccessTokenEnv names the environment variable holding the
	// access token.
	AccessTokenEnv string `yaml:"access_token_env"`

	// AppService enables user_id assertion, which is required to read
	// other users' fully-read markers.
	AppService bool `yaml:"appservice"`
}

// ScanConfig tunes timeline scans.
type ScanConfig struct {
	PageSize       int           `yaml:"page_size"`
	UnreadScanCap  int           `yaml:"unread_scan_cap"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LineTimeFormat is a Go time layout for transcript line prefixes.
	LineTimeFormat string `yaml:"line_time_format"`
}

// SyncConfig tunes the /sync long-poll loop.
type SyncConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// FeatureConfig declares one notification feature.
type FeatureConfig struct {
	Name        string        `yaml:"name"`
	MinDelta    int           `yaml:"min_delta"`
	MinInterval time.Duration `yaml:"min_interval"`

	// DeltaMode is "consecutive" (default) or "cumulative".
	DeltaMode string `yaml:"delta_mode"`

	// Message is a text/template producing Markdown. Empty uses the
	// notifier's default message.
	Message string `yaml:"message"`
}

// StateConfig selects where opt-in sets are persisted.
type StateConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend"`

	// Path is a directory for the file backend, a database file for
	// sqlite.
	Path string `yaml:"path"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	Matrix MatrixNotifyConfig `yaml:"matrix"`
	NATS   NATSNotifyConfig   `yaml:"nats"`

	// Concurrency bounds in-flight notifications.
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds a single notification delivery.
	Timeout time.Duration `yaml:"timeout"`
}

// MatrixNotifyConfig sends notices into a Matrix room.
type MatrixNotifyConfig struct {
	Enabled bool `yaml:"enabled"`

	// Room receives the notices. Empty sends each notice to the room
	// the firing came from.
	Room string `yaml:"room"`
}

// NATSNotifyConfig publishes firings to NATS.
type NATSNotifyConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
}

// Enabled reports whether a NATS URL is configured.
func (n NATSNotifyConfig) Enabled() bool { return n.URL != "" }

// APIConfig configures the query API listener.
type APIConfig struct {
	// Listen is a host:port. Empty disables the API.
	Listen string `yaml:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// Default returns a configuration with every optional value set.
func Default() *Config {
	return &Config{
		Matrix: MatrixConfig{
			AccessTokenEnv: "CATCHUP_ACCESS_TOKEN",
		},
		Scan: ScanConfig{
			PageSize:       100,
			UnreadScanCap:  500,
			RequestTimeout: 30 * time.Second,
			LineTimeFormat: "2006-01-02 15:04",
		},
		Sync: SyncConfig{
			Timeout:    30 * time.Second,
			MaxBackoff: 30 * time.Second,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "${XDG_STATE_HOME:-${HOME}/.local/state}/catchup",
		},
		Notify: NotifyConfig{
			NATS: NATSNotifyConfig{
				SubjectPrefix: "catchup.firing",
				Name:          "catchup",
			},
			Concurrency: 8,
			Timeout:     30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by CATCHUP_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults. The
// result is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	case ".json", ".jsonc":
		// Stripped JSON is valid YAML, so one decoder handles both and
		// durations like "30s" parse the same way.
		data = jsonc.ToJSON(data)
	default:
		return fmt.Errorf("config: %s: unsupported extension (want .yaml, .yml, .json or .jsonc)", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.State.Path = expandVars(c.State.Path)
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^{}]|\$\{[^}]*\})*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		// Defaults may themselves reference one level of variables.
		return varPattern.ReplaceAllStringFunc(parts[2], func(inner string) string {
			innerParts := varPattern.FindStringSubmatch(inner)
			if value := os.Getenv(innerParts[1]); value != "" {
				return value
			}
			return innerParts[2]
		})
	})
}

var featureNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Matrix.HomeserverURL == "" {
		errs = append(errs, errors.New("matrix.homeserver_url is required"))
	} else if parsed, err := url.Parse(c.Matrix.HomeserverURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("matrix.homeserver_url %q must be an http or https URL", c.Matrix.HomeserverURL))
	}
	if c.Matrix.UserID == "" {
		errs = append(errs, errors.New("matrix.user_id is required"))
	}
	if c.Matrix.AccessTokenEnv == "" {
		errs = append(errs, errors.New("matrix.access_token_env is required"))
	}

	if len(c.Rooms) == 0 {
		errs = append(errs, errors.New("rooms must list at least one room"))
	}
	seenRooms := make(map[string]bool, len(c.Rooms))
	for _, room := range c.Rooms {
		if seenRooms[room] {
			errs = append(errs, fmt.Errorf("rooms: %q listed twice", room))
		}
		seenRooms[room] = true
	}

	if c.Scan.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("scan.page_size must be positive, got %d", c.Scan.PageSize))
	}
	if c.Scan.UnreadScanCap <= 0 {
		errs = append(errs, fmt.Errorf("scan.unread_scan_cap must be positive, got %d", c.Scan.UnreadScanCap))
	}
	if c.Scan.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan.request_timeout must be positive, got %s", c.Scan.RequestTimeout))
	}
	if c.Sync.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must not be negative, got %s", c.Sync.Timeout))
	}
	if c.Sync.MaxBackoff <= 0 {
		errs = append(errs, fmt.Errorf("sync.max_backoff must be positive, got %s", c.Sync.MaxBackoff))
	}

	seenFeatures := make(map[string]bool, len(c.Features))
	for i, feature := range c.Features {
		if !featureNamePattern.MatchString(feature.Name) {
			errs = append(errs, fmt.Errorf("features[%d].name %q must be lowercase letters, digits, '-' or '_'", i, feature.Name))
		}
		if seenFeatures[feature.Name] {
			errs = append(errs, fmt.Errorf("features[%d]: %q declared twice", i, feature.Name))
		}
		seenFeatures[feature.Name] = true
		if feature.MinDelta <= 0 {
			errs = append(errs, fmt.Errorf("features[%d].min_delta must be positive", i))
		}
		if feature.MinInterval < 0 {
			errs = append(errs, fmt.Errorf("features[%d].min_interval must not be negative", i))
		}
		switch feature.DeltaMode {
		case "", "consecutive", "cumulative":
		default:
			errs = append(errs, fmt.Errorf("features[%d].delta_mode %q must be consecutive or cumulative", i, feature.DeltaMode))
		}
	}

	switch c.State.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("state.backend %q must be file or sqlite", c.State.Backend))
	}
	if c.State.Path == "" {
		errs = append(errs, errors.New("state.path is required"))
	}

	if c.Notify.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("notify.concurrency must be positive, got %d", c.Notify.Concurrency))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("notify.timeout must be positive, got %s", c.Notify.Timeout))
	}
	if c.Notify.NATS.Enabled() && c.Notify.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("notify.nats.subject_prefix is required when notify.nats.url is set"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AccessToken reads the Matrix access token from the environment.
func (c *Config) AccessToken() (string, error) {
	token := os.Getenv(c.Matrix.AccessTokenEnv)
	if token == "" {
		return "", fmt.Errorf("config: environment variable %s (matrix.access_token_env) is empty", c.Matrix.AccessTokenEnv)
	}
	return token, nil
}
