// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollama-relay.
//
// Sources, lowest precedence first:
//   - Built-in defaults
//   - ~/.ollama-relay/config.toml (or an explicit path)
//   - .env file loaded into the process environment
//   - RELAY_* environment variables
//
// Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jeranaias/ollama-relay/internal/util"
)

// EnvPrefix is the prefix for environment overrides (RELAY_PORT, ...).
const EnvPrefix = "RELAY"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollama-relay configuration.
type Config struct {
	// Relay server settings
	Server ServerConfig `toml:"server"`

	// Inference backend (Ollama) settings
	Backend BackendConfig `toml:"backend"`

	// Chat client settings
	Client ClientConfig `toml:"client"`
}

// ServerConfig holds relay server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// Origins allowed by CORS. "*" allows any origin.
	CORSOrigins []string `toml:"cors_origins"`

	// Requests per minute per client IP. 0 disables rate limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`

	// Run the backend connectivity probe once the listener is up.
	ProbeOnStart bool `toml:"probe_on_start"`

	// Proxies whose X-Forwarded-For is trusted for client IPs.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// BackendConfig holds inference backend settings.
type BackendConfig struct {
	URL          string        `toml:"url"`
	Model        string        `toml:"model"`
	ProbeTimeout time.Duration `toml:"probe_timeout"`
}

// ClientConfig holds chat client settings.
type ClientConfig struct {
	ServerURL     string `toml:"server_url"`
	HistoryWindow int    `toml:"history_window"`
	MaxMessages   int    `toml:"max_messages"`
	DBPath        string `toml:"db_path"`
	LogPath       string `toml:"log_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with all defaults applied.
func Default() *Config {
	dir, _ := ConfigDir()
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               3001,
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
		},
		Backend: BackendConfig{
			URL:          "http://localhost:11434",
			Model:        "llama3.2",
			ProbeTimeout: 30 * time.Second,
		},
		Client: ClientConfig{
			ServerURL:     "http://localhost:3001",
			HistoryWindow: 10,
			MaxMessages:   20,
			DBPath:        filepath.Join(dir, "history.db"),
			LogPath:       filepath.Join(dir, "client.log"),
		},
	}
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollama-relay configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollama-relay"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load builds the configuration from defaults, the TOML file at path and the
// environment. An empty path means the default location; a missing file at
// the default location is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ollama-relay configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port),
		})
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: "must not be negative",
		})
	}

	if err := validateHTTPURL(c.Backend.URL); err != nil {
		errs = append(errs, ValidationError{Field: "backend.url", Message: err.Error()})
	}
	if strings.TrimSpace(c.Backend.Model) == "" {
		errs = append(errs, ValidationError{Field: "backend.model", Message: "must not be empty"})
	}

	if err := validateHTTPURL(c.Client.ServerURL); err != nil {
		errs = append(errs, ValidationError{Field: "client.server_url", Message: err.Error()})
	}
	if c.Client.HistoryWindow < 0 {
		errs = append(errs, ValidationError{Field: "client.history_window", Message: "must not be negative"})
	}
	if c.Client.MaxMessages < 1 {
		errs = append(errs, ValidationError{
			Field:   "client.max_messages",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Client.MaxMessages),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}

// SetDefaults fills zero values left by a partial file or environment.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = d.Server.CORSOrigins
	}
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.Model == "" {
		c.Backend.Model = d.Backend.Model
	}
	if c.Backend.ProbeTimeout <= 0 {
		c.Backend.ProbeTimeout = d.Backend.ProbeTimeout
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = d.Client.ServerURL
	}
	c.Client.ServerURL = strings.TrimRight(c.Client.ServerURL, "/")
	if c.Client.MaxMessages == 0 {
		c.Client.MaxMessages = d.Client.MaxMessages
	}
	if c.Client.DBPath == "" {
		c.Client.DBPath = d.Client.DBPath
	}
	if c.Client.LogPath == "" {
		c.Client.LogPath = d.Client.LogPath
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides mirrors the settings that may come from the environment.
// Pointer fields stay nil when their variable is unset.
//
// Supported environment variables:
//   - RELAY_HOST, RELAY_PORT
//   - RELAY_CORS_ORIGINS (comma separated)
//   - RELAY_RATE_LIMIT
//   - RELAY_PROBE_ON_START
//   - RELAY_OLLAMA_URL, RELAY_MODEL
//   - RELAY_SERVER_URL, RELAY_HISTORY_WINDOW, RELAY_DB_PATH
type envOverrides struct {
	Host          *string
	Port          *int
	CORSOrigins   []string `split_words:"true"`
	RateLimit     *int     `split_words:"true"`
	ProbeOnStart  *bool    `split_words:"true"`
	OllamaURL     *string  `split_words:"true"`
	Model         *string
	ServerURL     *string `split_words:"true"`
	HistoryWindow *int    `split_words:"true"`
	DBPath        *string `split_words:"true"`
}

// ApplyEnvOverrides applies RELAY_* environment variables to the config.
func (c *Config) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("error reading configuration from environment: %w", err)
	}

	if env.Host != nil {
		c.Server.Host = *env.Host
	}
	if env.Port != nil {
		c.Server.Port = *env.Port
	}
	if len(env.CORSOrigins) > 0 {
		c.Server.CORSOrigins = env.CORSOrigins
	}
	if env.RateLimit != nil {
		c.Server.RateLimitPerMinute = *env.RateLimit
	}
	if env.ProbeOnStart != nil {
		c.Server.ProbeOnStart = *env.ProbeOnStart
	}
	if env.OllamaURL != nil {
		c.Backend.URL = *env.OllamaURL
	}
	if env.Model != nil {
		c.Backend.Model = *env.Model
	}
	if env.ServerURL != nil {
		c.Client.ServerURL = *env.ServerURL
	}
	if env.HistoryWindow != nil {
		c.Client.HistoryWindow = *env.HistoryWindow
	}
	if env.DBPath != nil {
		c.Client.DBPath = *env.DBPath
	}
	return nil
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	clone.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	return &clone
}
