package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genSnowflake generates Discord-like numeric ids
func genSnowflake() gopter.Gen {
	return gen.RegexMatch(`^[1-9][0-9]{16,17}$`)
}

// genToken generates bot tokens
func genToken() gopter.Gen {
	return gen.RegexMatch(`^[A-Za-z0-9]{10,24}\.[A-Za-z0-9_-]{6}$`)
}

// writeConfig writes content to name inside a temp dir and returns its path
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// clearEnv unsets every override for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TOKEN", "CHANNEL_ID", "SOURCE_URL", "BUILDS_URL", "SELECTOR", "XPATH",
		"VERSION_FILE", "TIMEZONE", "COMMAND_PREFIX", "USER_AGENT", "WEBHOOK_URL",
		"STORE_BACKEND", "SQLITE_PATH", "SQLITE_SLOT", "S3_ENDPOINT", "S3_BUCKET",
		"S3_REGION", "S3_KEY", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"POLL_INTERVAL", "REQUEST_TIMEOUT",
	} {
		t.Setenv(envPrefix+name, "")
		os.Unsetenv(envPrefix + name)
	}
}

// =============================================================================
// Property-Based Tests
// =============================================================================

// TestChannelIDFormats checks that a channel id decodes to the same value
// whether it is written as a number or a string, in every format.
func TestChannelIDFormats(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("channel id survives every format and spelling", prop.ForAll(
		func(token, id string) bool {
			documents := map[string]string{
				"json number": fmt.Sprintf(`{"token": %q, "channel_id": %s}`, token, id),
				"json string": fmt.Sprintf(`{"token": %q, "channel_id": %q}`, token, id),
				"yaml number": fmt.Sprintf("token: %q\nchannel_id: %s\n", token, id),
				"yaml string": fmt.Sprintf("token: %q\nchannel_id: \"%s\"\n", token, id),
				"toml number": fmt.Sprintf("token = %q\nchannel_id = %s\n", token, id),
				"toml string": fmt.Sprintf("token = %q\nchannel_id = %q\n", token, id),
			}
			formats := map[string]string{
				"json number": "json", "json string": "json",
				"yaml number": "yaml", "yaml string": "yaml",
				"toml number": "toml", "toml string": "toml",
			}

			for name, doc := range documents {
				cfg, err := Parse([]byte(doc), formats[name])
				if err != nil {
					t.Logf("%s: %v", name, err)
					return false
				}
				if cfg.Token != token || cfg.ChannelID.String() != id {
					t.Logf("%s: got token=%q id=%q", name, cfg.Token, cfg.ChannelID)
					return false
				}
			}
			return true
		},
		genToken(),
		genSnowflake(),
	))

	properties.TestingRun(t)
}

// =============================================================================
// Unit Tests
// =============================================================================

func TestLoadMinimalJSONAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.json", `{"token": "abc.def", "channel_id": 1234567890123456789}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ChannelID != "1234567890123456789" {
		t.Errorf("ChannelID = %q", cfg.ChannelID)
	}
	checks := map[string][2]string{
		"source_url":     {cfg.SourceURL, DefaultSourceURL},
		"builds_url":     {cfg.BuildsURL, DefaultBuildsURL},
		"selector":       {cfg.Selector, DefaultSelector},
		"version_file":   {cfg.VersionFile, DefaultVersionFile},
		"timezone":       {cfg.Timezone, DefaultTimezone},
		"command_prefix": {cfg.CommandPrefix, DefaultCommandPrefix},
		"store.backend":  {cfg.Store.Backend, BackendFile},
	}
	for field, pair := range checks {
		if pair[0] != pair[1] {
			t.Errorf("%s = %q, want %q", field, pair[0], pair[1])
		}
	}
	if cfg.PollInterval.Duration() != 10*time.Minute {
		t.Errorf("poll_interval = %v", cfg.PollInterval.Duration())
	}
	if cfg.RequestTimeout.Duration() != 30*time.Second {
		t.Errorf("request_timeout = %v", cfg.RequestTimeout.Duration())
	}
}

func TestLoadYAMLWithStore(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
token: abc.def
channel_id: "42"
poll_interval: 5m
request_timeout: 10s
xpath: //main/h2
store:
  backend: s3
  s3:
    endpoint: minio.local:9000
    bucket: paperbot
    access_key: key
    secret_key: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PollInterval.Duration() != 5*time.Minute || cfg.RequestTimeout.Duration() != 10*time.Second {
		t.Errorf("durations = %v, %v", cfg.PollInterval.Duration(), cfg.RequestTimeout.Duration())
	}
	if cfg.Selector != "" || cfg.XPath != "//main/h2" {
		t.Errorf("expected xpath without default selector, got selector=%q xpath=%q", cfg.Selector, cfg.XPath)
	}
	if cfg.Store.Backend != BackendS3 || cfg.Store.S3.Bucket != "paperbot" || cfg.Store.S3.SecretKey != "secret" {
		t.Errorf("unexpected store %+v", cfg.Store)
	}
}

func TestLoadTOMLWithSQLite(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.toml", `
token = "abc.def"
channel_id = 42
timezone = "UTC"

[store]
backend = "sqlite"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.Path != DefaultSQLitePath {
		t.Errorf("unexpected store %+v", cfg.Store)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantField string
	}{
		{"malformed json", "config.json", `{"token": "abc"`, ""},
		{"trailing garbage after json", "config.json", `{"token": "t", "channel_id": 1} this is not json`, ""},
		{"two json documents", "config.json", `{"token": "t", "channel_id": 1}{"token": "u"}`, ""},
		{"malformed yaml", "config.yaml", "token: [unterminated", ""},
		{"malformed toml", "config.toml", "token = ", ""},
		{"missing token", "config.json", `{"channel_id": 42}`, "token"},
		{"missing channel", "config.json", `{"token": "abc"}`, "channel_id"},
		{"non numeric channel", "config.json", `{"token": "abc", "channel_id": "general"}`, "channel_id"},
		{"channel as object", "config.json", `{"token": "abc", "channel_id": {"id": 1}}`, ""},
		{"bad duration", "config.json", `{"token": "abc", "channel_id": 1, "poll_interval": "soon"}`, ""},
		{"interval too short", "config.json", `{"token": "abc", "channel_id": 1, "poll_interval": "10ms"}`, "poll_interval"},
		{"builds url without placeholder", "config.json", `{"token": "abc", "channel_id": 1, "builds_url": "https://example.com"}`, "builds_url"},
		{"unknown backend", "config.json", `{"token": "abc", "channel_id": 1, "store": {"backend": "redis"}}`, "store.backend"},
		{"s3 without bucket", "config.json", `{"token": "abc", "channel_id": 1, "store": {"backend": "s3"}}`, "store.s3.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if tt.wantField == "" {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAPERBOT_TOKEN", "from-env")
	t.Setenv("PAPERBOT_CHANNEL_ID", " 777 ")
	t.Setenv("PAPERBOT_POLL_INTERVAL", "2m")
	t.Setenv("PAPERBOT_VERSION_FILE", "/var/lib/paperbot/version.txt")

	cfg, err := Load(writeConfig(t, "config.json", `{"token": "from-file", "channel_id": 1}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Token != "from-env" || cfg.ChannelID != "777" {
		t.Errorf("token=%q channel=%q", cfg.Token, cfg.ChannelID)
	}
	if cfg.PollInterval.Duration() != 2*time.Minute {
		t.Errorf("poll_interval = %v", cfg.PollInterval.Duration())
	}
	if cfg.VersionFile != "/var/lib/paperbot/version.txt" {
		t.Errorf("version_file = %q", cfg.VersionFile)
	}

	t.Setenv("PAPERBOT_REQUEST_TIMEOUT", "forever")
	if _, err := Load(writeConfig(t, "config.json", `{"token": "x", "channel_id": 1}`)); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for bad env duration, got %v", err)
	}
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(".env", []byte("PAPERBOT_TOKEN=dotenv-token\nPAPERBOT_WEBHOOK_URL=https://discord.com/api/webhooks/1/x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("PAPERBOT_TOKEN")
		os.Unsetenv("PAPERBOT_WEBHOOK_URL")
	})

	if err := os.WriteFile("config.json", []byte(`{"channel_id": 5}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("config.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Token != "dotenv-token" {
		t.Errorf("token = %q", cfg.Token)
	}
	if cfg.WebhookURL != "https://discord.com/api/webhooks/1/x" {
		t.Errorf("webhook_url = %q", cfg.WebhookURL)
	}
}

func TestFindConfigPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	path, err := FindConfigPath()
	if err != nil || path != DefaultConfigFile {
		t.Errorf("FindConfigPath = %q, %v; want %q", path, err, DefaultConfigFile)
	}

	xdgYAML := filepath.Join(dir, "xdg", "paperbot", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(xdgYAML), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdgYAML, []byte("token: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if path, _ := FindConfigPath(); path != xdgYAML {
		t.Errorf("expected XDG yaml, got %q", path)
	}

	if err := os.WriteFile(DefaultConfigFile, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if path, _ := FindConfigPath(); path != DefaultConfigFile {
		t.Errorf("expected working directory config to win, got %q", path)
	}
}

func TestSnowflakeValid(t *testing.T) {
	for id, want := range map[Snowflake]bool{
		"1234567890123456789": true,
		"0":                   true,
		"":                    false,
		"-5":                  false,
		"12a":                 false,
	} {
		if got := id.Valid(); got != want {
			t.Errorf("%q.Valid() = %v, want %v", id, got, want)
		}
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1h30m")); err != nil {
		t.Fatal(err)
	}
	if d.Duration() != 90*time.Minute {
		t.Errorf("got %v", d.Duration())
	}
	text, _ := d.MarshalText()
	if string(text) != "1h30m0s" {
		t.Errorf("MarshalText = %q", text)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			t.Fatal(err)
		}
	})
}
