// Package config defines the bot's repository configuration.
//
// Configuration comes from, in increasing precedence: Default(), a YAML or
// TOML file in the repository (".policybot.yml" by default), and
// POLICYBOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/fragment"
	"github.com/whitecircle/policybot/tokens"
	"github.com/whitecircle/policybot/truncate"
)

// ErrInvalid indicates a configuration value failed validation.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is the repository-relative config file looked up by default.
const DefaultPath = ".policybot.yml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POLICYBOT_"

// MaxRetriesLimit bounds max_retries.
const MaxRetriesLimit = 10

// Paths filters which changed files are evaluated.
type Paths struct {
	// Include limits evaluation to matching paths. Empty means all.
	Include []string `json:"include,omitempty" yaml:"include" toml:"include" jsonschema:"description=Glob patterns of paths to evaluate"`

	// Exclude drops matching paths. Takes precedence over Include.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude" toml:"exclude" jsonschema:"description=Glob patterns of paths to skip; a trailing / matches a directory"`
}

// Filter converts Paths into a fragment.PathFilter.
func (p Paths) Filter() fragment.PathFilter {
	return fragment.PathFilter{Include: p.Include, Exclude: p.Exclude}
}

// Config holds everything that shapes a policy check.
type Config struct {
	// --- Policies ---

	// Policies names the policies the service evaluates. Empty uses the
	// account's default policy set.
	Policies []string `json:"policies,omitempty" yaml:"policies" toml:"policies" jsonschema:"description=Policy names to evaluate"`

	// --- Request sizing ---

	// RequestLimit is the service's per-request token limit.
	RequestLimit int `json:"request_limit" yaml:"request_limit" toml:"request_limit" jsonschema:"minimum=1,default=8192"`

	// Overhead is reserved per request for the envelope.
	Overhead int `json:"overhead" yaml:"overhead" toml:"overhead" jsonschema:"minimum=0,default=256"`

	// FragmentOverhead is reserved per fragment for its header.
	FragmentOverhead int `json:"fragment_overhead" yaml:"fragment_overhead" toml:"fragment_overhead" jsonschema:"minimum=0,default=16"`

	// CharsPerToken tunes the estimating tokenizer.
	CharsPerToken float64 `json:"chars_per_token" yaml:"chars_per_token" toml:"chars_per_token" jsonschema:"default=4"`

	// --- Oversized fragments ---

	// Oversize is applied to fragments larger than a whole batch:
	// "isolate", "truncate" or "skip".
	Oversize string `json:"oversize" yaml:"oversize" toml:"oversize" jsonschema:"enum=isolate,enum=truncate,enum=skip,default=isolate"`

	// Truncate is the strategy used by the truncate policy:
	// "end", "middle" or "start".
	Truncate string `json:"truncate" yaml:"truncate" toml:"truncate" jsonschema:"enum=end,enum=middle,enum=start,default=end"`

	// TruncateMarker replaces the text cut from a fragment. Empty uses the
	// built-in marker.
	TruncateMarker string `json:"truncate_marker,omitempty" yaml:"truncate_marker" toml:"truncate_marker"`

	// --- Sources ---

	IncludeCommits   bool  `json:"include_commits" yaml:"include_commits" toml:"include_commits" jsonschema:"default=true"`
	IncludeFullFiles bool  `json:"include_full_files" yaml:"include_full_files" toml:"include_full_files"`
	Paths            Paths `json:"paths" yaml:"paths" toml:"paths"`

	// --- Dispatch ---

	// Concurrency bounds in-flight evaluation requests. 1 is sequential.
	Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency" jsonschema:"minimum=1,default=2"`

	// RateLimit is the sustained request rate per second.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit" jsonschema:"default=5"`

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int `json:"max_retries" yaml:"max_retries" toml:"max_retries" jsonschema:"minimum=0,maximum=10,default=3"`

	// Timeout bounds a whole run. 0 means no limit.
	Timeout Duration `json:"timeout" yaml:"timeout" toml:"timeout" jsonschema:"default=5m"`

	// --- Reporting ---

	// FailOnViolation makes a violation fail the job.
	FailOnViolation bool `json:"fail_on_violation" yaml:"fail_on_violation" toml:"fail_on_violation" jsonschema:"default=true"`

	// Comment posts or updates a PR comment when a violation is found.
	Comment bool `json:"comment" yaml:"comment" toml:"comment" jsonschema:"default=true"`

	// ClearOnPass deletes the bot's earlier comment once a run passes.
	ClearOnPass bool `json:"clear_on_pass" yaml:"clear_on_pass" toml:"clear_on_pass"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		RequestLimit:     tokens.DefaultRequestLimit,
		Overhead:         tokens.DefaultOverhead,
		FragmentOverhead: tokens.DefaultPerFragment,
		CharsPerToken:    tokens.DefaultCharsPerToken,
		Oversize:         string(batch.DefaultOversizePolicy),
		Truncate:         truncate.FromEnd.String(),
		IncludeCommits:   true,
		Concurrency:      2,
		RateLimit:        5,
		MaxRetries:       3,
		Timeout:          Duration(5 * time.Minute),
		FailOnViolation:  true,
		Comment:          true,
	}
}

// Budget returns the request budget described by the config.
func (c Config) Budget() tokens.RequestBudget {
	return tokens.RequestBudget{
		RequestLimit: c.RequestLimit,
		Overhead:     c.Overhead,
		PerFragment:  c.FragmentOverhead,
	}
}

// OversizePolicy parses Oversize.
func (c Config) OversizePolicy() (batch.OversizePolicy, error) {
	return batch.ParseOversizePolicy(c.Oversize)
}

// TruncateStrategy parses Truncate.
func (c Config) TruncateStrategy() (truncate.Strategy, error) {
	return truncate.ParseStrategy(c.Truncate)
}

// LoadFromEnv applies POLICYBOT_* environment overrides. Malformed numeric
// or boolean values are reported rather than ignored.
//
// Supported variables:
//   - POLICYBOT_POLICIES: comma-separated policy names
//   - POLICYBOT_REQUEST_LIMIT, POLICYBOT_OVERHEAD, POLICYBOT_FRAGMENT_OVERHEAD
//   - POLICYBOT_OVERSIZE, POLICYBOT_TRUNCATE, POLICYBOT_TRUNCATE_MARKER
//   - POLICYBOT_INCLUDE_COMMITS, POLICYBOT_INCLUDE_FULL_FILES
//   - POLICYBOT_CONCURRENCY, POLICYBOT_RATE_LIMIT, POLICYBOT_MAX_RETRIES
//   - POLICYBOT_TIMEOUT (e.g. "5m")
//   - POLICYBOT_FAIL_ON_VIOLATION, POLICYBOT_COMMENT, POLICYBOT_CLEAR_ON_PASS
func (c *Config) LoadFromEnv() error {
	var errs []error
	get := func(name string) (string, bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	intVar := func(name string, dst *int) {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolVar := func(name string, dst *bool) {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := get("POLICIES"); ok {
		c.Policies = splitList(v)
	}
	intVar("REQUEST_LIMIT", &c.RequestLimit)
	intVar("OVERHEAD", &c.Overhead)
	intVar("FRAGMENT_OVERHEAD", &c.FragmentOverhead)
	if v, ok := get("OVERSIZE"); ok {
		c.Oversize = v
	}
	if v, ok := get("TRUNCATE"); ok {
		c.Truncate = v
	}
	if v, ok := get("TRUNCATE_MARKER"); ok {
		c.TruncateMarker = v
	}
	boolVar("INCLUDE_COMMITS", &c.IncludeCommits)
	boolVar("INCLUDE_FULL_FILES", &c.IncludeFullFiles)
	intVar("CONCURRENCY", &c.Concurrency)
	if v, ok := get("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err))
		} else {
			c.RateLimit = f
		}
	}
	intVar("MAX_RETRIES", &c.MaxRetries)
	if v, ok := get("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Timeout = Duration(d)
		}
	}
	boolVar("FAIL_ON_VIOLATION", &c.FailOnViolation)
	boolVar("COMMENT", &c.Comment)
	boolVar("CLEAR_ON_PASS", &c.ClearOnPass)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RequestLimit <= 0 {
		return fmt.Errorf("%w: request_limit must be > 0, got %d", ErrInvalid, c.RequestLimit)
	}
	if c.Overhead < 0 {
		return fmt.Errorf("%w: overhead must be >= 0, got %d", ErrInvalid, c.Overhead)
	}
	if c.FragmentOverhead < 0 {
		return fmt.Errorf("%w: fragment_overhead must be >= 0, got %d", ErrInvalid, c.FragmentOverhead)
	}
	if limit := c.Budget().BatchLimit(); limit <= 0 {
		return fmt.Errorf("%w: overhead %d leaves no room in request_limit %d", ErrInvalid, c.Overhead, c.RequestLimit)
	}
	if _, err := c.OversizePolicy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.TruncateStrategy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalid, c.Concurrency)
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("%w: max_retries must be between 0 and %d, got %d", ErrInvalid, MaxRetriesLimit, c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %v", ErrInvalid, c.Timeout)
	}
	if err := c.Paths.Filter().Validate(); err != nil {
		return fmt.Errorf("%w: paths: %w", ErrInvalid, err)
	}
	return nil
}

// WithPolicies returns a copy of the config with the given policies.
func (c Config) WithPolicies(policies ...string) Config {
	c.Policies = append([]string(nil), policies...)
	return c
}

// WithOversize returns a copy of the config with the given oversize policy.
func (c Config) WithOversize(policy batch.OversizePolicy) Config {
	c.Oversize = string(policy)
	return c
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
