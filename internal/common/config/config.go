package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig is returned when the configuration is missing, malformed or
// incomplete. The bot does not start without a valid configuration.
var ErrConfig = errors.New("configuration error")

// Store backends
const (
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

// Defaults applied to optional keys
const (
	DefaultConfigFile     = "config.json"
	DefaultSourceURL      = "https://papermc.io/downloads/paper"
	DefaultBuildsURL      = "https://api.papermc.io/v2/projects/paper/versions/{version}/builds"
	DefaultSelector       = "h2"
	DefaultVersionFile    = "version.txt"
	DefaultPollInterval   = 10 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultTimezone       = "Europe/Madrid"
	DefaultCommandPrefix  = "!"
	DefaultSQLitePath     = "paperbot.db"
)

// envPrefix is prepended to every environment override
const envPrefix = "PAPERBOT_"

// Config represents the bot configuration
type Config struct {
	Token          string      `json:"token" yaml:"token" toml:"token"`
	ChannelID      Snowflake   `json:"channel_id" yaml:"channel_id" toml:"channel_id"`
	SourceURL      string      `json:"source_url,omitempty" yaml:"source_url,omitempty" toml:"source_url,omitempty"`
	BuildsURL      string      `json:"builds_url,omitempty" yaml:"builds_url,omitempty" toml:"builds_url,omitempty"`
	Selector       string      `json:"selector,omitempty" yaml:"selector,omitempty" toml:"selector,omitempty"`
	XPath          string      `json:"xpath,omitempty" yaml:"xpath,omitempty" toml:"xpath,omitempty"`
	VersionFile    string      `json:"version_file,omitempty" yaml:"version_file,omitempty" toml:"version_file,omitempty"`
	PollInterval   Duration    `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty"`
	RequestTimeout Duration    `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty"`
	Timezone       string      `json:"timezone,omitempty" yaml:"timezone,omitempty" toml:"timezone,omitempty"`
	CommandPrefix  string      `json:"command_prefix,omitempty" yaml:"command_prefix,omitempty" toml:"command_prefix,omitempty"`
	UserAgent      string      `json:"user_agent,omitempty" yaml:"user_agent,omitempty" toml:"user_agent,omitempty"`
	WebhookURL     string      `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty" toml:"webhook_url,omitempty"`
	Store          StoreConfig `json:"store" yaml:"store" toml:"store"`
}

// StoreConfig selects where the last observed version is kept
type StoreConfig struct {
	Backend string   `json:"backend,omitempty" yaml:"backend,omitempty" toml:"backend,omitempty"` // "file", "s3" or "sqlite"
	Path    string   `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`          // SQLite database path
	Slot    string   `json:"slot,omitempty" yaml:"slot,omitempty" toml:"slot,omitempty"`          // SQLite slot name
	S3      S3Config `json:"s3" yaml:"s3" toml:"s3"`
}

// S3Config holds the settings of an S3 compatible bucket
type S3Config struct {
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty" toml:"key,omitempty"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" toml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" toml:"secret_key,omitempty"`
}

// ValidationError reports an invalid or missing field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConfigPaths returns the candidate config file paths in priority order
// 1. ./config.json (working directory)
// 2. $XDG_CONFIG_HOME/paperbot/config.{json,yaml,toml}
func ConfigPaths() ([]string, error) {
	paths := []string{DefaultConfigFile}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return paths, nil
		}
		xdgConfig = filepath.Join(home, ".config")
	}

	dir := filepath.Join(xdgConfig, "paperbot")
	return append(paths,
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.toml"),
	), nil
}

// FindConfigPath returns the first existing config file path.
// Returns config.json when none exists so the error names the expected file.
func FindConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return DefaultConfigFile, nil
}

// Load reads the configuration from path once. The format is chosen by
// extension (.json, .yaml/.yml, .toml). A .env file in the working
// directory is loaded first and PAPERBOT_* variables override file values.
// Every failure wraps ErrConfig.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format ("json", "yaml" or "toml")
// without applying defaults or validation.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config

	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case "toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	return &cfg, nil
}

// formatOf maps a file extension to a format name. Unknown extensions
// are read as JSON.
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

// loadDotEnv loads path into the environment if it exists. Variables
// already set are left untouched.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: loading %s: %v", ErrConfig, path, err)
	}
	return nil
}

// applyEnv overrides fields from PAPERBOT_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TOKEN":          &c.Token,
		"SOURCE_URL":     &c.SourceURL,
		"BUILDS_URL":     &c.BuildsURL,
		"SELECTOR":       &c.Selector,
		"XPATH":          &c.XPath,
		"VERSION_FILE":   &c.VersionFile,
		"TIMEZONE":       &c.Timezone,
		"COMMAND_PREFIX": &c.CommandPrefix,
		"USER_AGENT":     &c.UserAgent,
		"WEBHOOK_URL":    &c.WebhookURL,
		"STORE_BACKEND":  &c.Store.Backend,
		"SQLITE_PATH":    &c.Store.Path,
		"SQLITE_SLOT":    &c.Store.Slot,
		"S3_ENDPOINT":    &c.Store.S3.Endpoint,
		"S3_BUCKET":      &c.Store.S3.Bucket,
		"S3_REGION":      &c.Store.S3.Region,
		"S3_KEY":         &c.Store.S3.Key,
		"S3_ACCESS_KEY":  &c.Store.S3.AccessKey,
		"S3_SECRET_KEY":  &c.Store.S3.SecretKey,
	}
	for name, field := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*field = v
		}
	}

	if v, ok := lookup(envPrefix + "CHANNEL_ID"); ok {
		c.ChannelID = Snowflake(strings.TrimSpace(v))
	}

	durations := map[string]*Duration{
		"POLL_INTERVAL":   &c.PollInterval,
		"REQUEST_TIMEOUT": &c.RequestTimeout,
	}
	for name, field := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		if err := field.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%w: %s%s: %v", ErrConfig, envPrefix, name, err)
		}
	}
	return nil
}

// ApplyDefaults fills every optional key that is unset.
func (c *Config) ApplyDefaults() {
	if c.SourceURL == "" {
		c.SourceURL = DefaultSourceURL
	}
	if c.BuildsURL == "" {
		c.BuildsURL = DefaultBuildsURL
	}
	if c.Selector == "" && c.XPath == "" {
		c.Selector = DefaultSelector
	}
	if c.VersionFile == "" {
		c.VersionFile = DefaultVersionFile
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = DefaultCommandPrefix
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendFile
	}
	if c.Store.Backend == BackendSQLite && c.Store.Path == "" {
		c.Store.Path = DefaultSQLitePath
	}
}

// Validate checks required fields and value ranges. The returned error
// wraps both ErrConfig and a *ValidationError.
func (c *Config) Validate() error {
	invalid := func(field, reason string) error {
		return fmt.Errorf("%w: %w", ErrConfig, &ValidationError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(c.Token) == "" {
		return invalid("token", "is required")
	}
	if c.ChannelID == "" {
		return invalid("channel_id", "is required")
	}
	if !c.ChannelID.Valid() {
		return invalid("channel_id", fmt.Sprintf("%q is not a numeric id", string(c.ChannelID)))
	}
	if !strings.Contains(c.BuildsURL, "{version}") {
		return invalid("builds_url", "must contain a {version} placeholder")
	}
	if c.PollInterval.Duration() < time.Second {
		return invalid("poll_interval", "must be at least 1s")
	}
	if c.RequestTimeout.Duration() <= 0 {
		return invalid("request_timeout", "must be positive")
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return invalid("command_prefix", "must not be blank")
	}

	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return invalid("store.s3.bucket", "is required for the s3 backend")
		}
	default:
		return invalid("store.backend", fmt.Sprintf("unknown backend %q", c.Store.Backend))
	}

	return nil
}

// Snowflake is a Discord id. It decodes from a JSON/YAML/TOML number or
// string so both "channel_id": 123 and "channel_id": "123" work.
type Snowflake string

// String returns the id.
func (s Snowflake) String() string {
	return string(s)
}

// Valid reports whether the id is a non-empty decimal number.
func (s Snowflake) Valid() bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(string(s), 10, 64)
	return err == nil
}

// UnmarshalJSON accepts a number or a string. Numbers are kept digit for
// digit since ids exceed float64 precision.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Snowflake(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("channel id must be a number or a string: %w", err)
	}
	*s = Snowflake(num.String())
	return nil
}

// MarshalJSON writes the id as a string.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalYAML accepts any scalar.
func (s *Snowflake) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: channel id must be a scalar", value.Line)
	}
	*s = Snowflake(strings.TrimSpace(value.Value))
	return nil
}

// UnmarshalTOML accepts an integer or a string.
func (s *Snowflake) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case int64:
		*s = Snowflake(strconv.FormatInt(val, 10))
	case string:
		*s = Snowflake(strings.TrimSpace(val))
	default:
		return fmt.Errorf("channel id must be an integer or a string, got %T", v)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("10m").
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a duration string such as "10m" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML parses a duration scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
