package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/truncate"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8192, cfg.RequestLimit)
	assert.Equal(t, 8192-256, cfg.Budget().BatchLimit())
	assert.True(t, cfg.IncludeCommits)
	assert.False(t, cfg.IncludeFullFiles)
	assert.True(t, cfg.FailOnViolation)
	assert.Equal(t, 5*time.Minute, cfg.Timeout.Std())

	policy, err := cfg.OversizePolicy()
	require.NoError(t, err)
	assert.Equal(t, batch.Isolate, policy)

	strategy, err := cfg.TruncateStrategy()
	require.NoError(t, err)
	assert.Equal(t, truncate.FromEnd, strategy)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, ".policybot.yml", `
policies: [secrets, pii]
request_limit: 4096
oversize: truncate
truncate: middle
include_full_files: true
paths:
  exclude: ["*.lock", "vendor/"]
timeout: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"secrets", "pii"}, cfg.Policies)
	assert.Equal(t, 4096, cfg.RequestLimit)
	assert.Equal(t, 256, cfg.Overhead, "unset fields keep defaults")
	assert.Equal(t, "truncate", cfg.Oversize)
	assert.Equal(t, "middle", cfg.Truncate)
	assert.True(t, cfg.IncludeFullFiles)
	assert.True(t, cfg.IncludeCommits)
	assert.Equal(t, []string{"*.lock", "vendor/"}, cfg.Paths.Exclude)
	assert.False(t, cfg.Paths.Filter().Allows("vendor/a.go"))
	assert.Equal(t, 90*time.Second, cfg.Timeout.Std())
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "policybot.toml", `
policies = ["secrets"]
concurrency = 4
comment = false

[paths]
include = ["*.go"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"secrets"}, cfg.Policies)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.False(t, cfg.Comment)
	assert.Equal(t, []string{"*.go"}, cfg.Paths.Include)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "policybot.json", `{"oversize": "skip", "timeout": "1m"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "skip", cfg.Oversize)
	assert.Equal(t, "[cut]", cfg.TruncateMarker)
	assert.Equal(t, time.Minute, cfg.Timeout.Std())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown yaml key", file: "c.yml", content: "max_tokens: 5\n"},
		{name: "unknown toml key", file: "c.toml", content: "max_tokens = 5\n"},
		{name: "unknown json key", file: "c.json", content: `{"max_tokens": 5}`},
		{name: "bad duration", file: "c.yml", content: "timeout: soon\n"},
		{name: "invalid value", file: "c.yml", content: "oversize: split\n"},
		{name: "overhead consumes request", file: "c.yml", content: "request_limit: 100\noverhead: 100\n"},
		{name: "unsupported format", file: "c.ini", content: "x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POLICYBOT_POLICIES", "secrets, pii,")
	t.Setenv("POLICYBOT_REQUEST_LIMIT", "2048")
	t.Setenv("POLICYBOT_OVERSIZE", "skip")
	t.Setenv("POLICYBOT_TRUNCATE_MARKER", "[cut]")
	t.Setenv("POLICYBOT_INCLUDE_COMMITS", "false")
	t.Setenv("POLICYBOT_RATE_LIMIT", "0.5")
	t.Setenv("POLICYBOT_TIMEOUT", "30s")
	t.Setenv("POLICYBOT_CLEAR_ON_PASS", "true")

	cfg := Default()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, []string{"secrets", "pii"}, cfg.Policies)
	assert.Equal(t, 2048, cfg.RequestLimit)
	assert.Equal(t, "skip", cfg.Oversize)
	assert.False(t, cfg.IncludeCommits)
	assert.Equal(t, 0.5, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Std())
	assert.True(t, cfg.ClearOnPass)
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("POLICYBOT_CONCURRENCY", "many")
	t.Setenv("POLICYBOT_COMMENT", "perhaps")

	cfg := Default()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "POLICYBOT_CONCURRENCY")
	assert.Contains(t, err.Error(), "POLICYBOT_COMMENT")
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero request limit", mutate: func(c *Config) { c.RequestLimit = 0 }},
		{name: "negative overhead", mutate: func(c *Config) { c.Overhead = -1 }},
		{name: "negative fragment overhead", mutate: func(c *Config) { c.FragmentOverhead = -1 }},
		{name: "unknown truncate", mutate: func(c *Config) { c.Truncate = "sideways" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }},
		{name: "too many retries", mutate: func(c *Config) { c.MaxRetries = MaxRetriesLimit + 1 }},
		{name: "malformed include", mutate: func(c *Config) { c.Paths.Include = []string{"src/[a"} }},
		{name: "malformed exclude", mutate: func(c *Config) { c.Paths.Exclude = []string{"vendor/", "[!"} }},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = Duration(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestPaths_Filter_Recursive(t *testing.T) {
	cfg := Default()
	err := Decode("config.yml", []byte("paths:\n  include: [\"src/**/*.go\"]\n  exclude: [\"src/gen/**\"]\n"), &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	f := cfg.Paths.Filter()
	assert.True(t, f.Allows("src/a/b/c.go"))
	assert.True(t, f.Allows("src/c.go"))
	assert.False(t, f.Allows("src/gen/x/y.go"))
	assert.False(t, f.Allows("docs/c.go"))
}

func TestWithHelpers(t *testing.T) {
	base := Default()
	policies := []string{"a", "b"}

	got := base.WithPolicies(policies...).WithOversize(batch.Truncate)
	policies[0] = "changed"

	assert.Equal(t, []string{"a", "b"}, got.Policies)
	assert.Equal(t, "truncate", got.Oversize)
	assert.Nil(t, base.Policies)
	assert.Equal(t, "isolate", base.Oversize)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"request_limit"`)
	assert.Contains(t, s, `"oversize"`)
	assert.Contains(t, s, `"truncate"`)
	assert.Contains(t, s, `"paths"`)
	assert.Contains(t, s, `"policybot configuration"`)
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 150*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "POLICYBOT_TEST_ENV_FILE=from-file\n")
	t.Setenv("POLICYBOT_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("POLICYBOT_TEST_ENV_FILE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("POLICYBOT_TEST_ENV_FILE"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
