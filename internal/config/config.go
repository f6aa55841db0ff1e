// Package config loads the formd server configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/formstore-dev/formstore/pkg/form"
)

const (
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "formstore.yaml"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the formd server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ReadTimeout bounds how long a session may idle without a client
	// message.
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds a single frame write.
	WriteTimeout Duration `yaml:"write_timeout"`

	// MaxMessageBytes caps inbound WebSocket message size.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// Forms declares named form schemas clients can select with the
	// "schema" op.
	Forms map[string]FormConfig `yaml:"forms"`
}

// FormConfig declares the validation rules of one named form.
type FormConfig struct {
	Fields map[string]FieldRules `yaml:"fields"`
}

// FieldRules is the declarative rule list for one field. Zero values mean
// the rule is not applied.
type FieldRules struct {
	Required   bool     `yaml:"required"`
	MinLength  int      `yaml:"min_length"`
	MaxLength  int      `yaml:"max_length"`
	Pattern    string   `yaml:"pattern"`
	Email      bool     `yaml:"email"`
	URL        bool     `yaml:"url"`
	Alpha      bool     `yaml:"alpha"`
	Min        *float64 `yaml:"min"`
	Max        *float64 `yaml:"max"`
	MatchField string   `yaml:"match_field"`

	// Message overrides the default message of every rule on this field.
	Message string `yaml:"message"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:            DefaultAddr,
		LogLevel:        "info",
		ReadTimeout:     Duration(60 * time.Second),
		WriteTimeout:    Duration(10 * time.Second),
		MaxMessageBytes: 1 << 20,
		Forms:           make(map[string]FormConfig),
	}
}

// Load reads the configuration from path. A missing file is not an error;
// the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("config: max_message_bytes must not be negative")
	}
	for name, fc := range c.Forms {
		for field, rules := range fc.Fields {
			if rules.Pattern != "" {
				if err := checkPattern(rules.Pattern); err != nil {
					return fmt.Errorf("config: form %s field %s: %w", name, field, err)
				}
			}
		}
	}
	return nil
}

// RuleSets builds a validator per declared form.
func (c *Config) RuleSets() map[string]form.Validator {
	out := make(map[string]form.Validator, len(c.Forms))
	for name, fc := range c.Forms {
		rs := make(form.RuleSet, len(fc.Fields))
		for field, rules := range fc.Fields {
			rs[field] = rules.build()
		}
		out[name] = rs
	}
	return out
}

// checkPattern rejects patterns that would panic form.Pattern at build
// time.
func checkPattern(p string) error {
	if _, err := regexp.Compile(p); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

func (r FieldRules) build() []form.Rule {
	var rules []form.Rule
	if r.Required {
		rules = append(rules, form.Required(r.Message))
	}
	if r.MinLength > 0 {
		rules = append(rules, form.MinLength(r.MinLength, r.Message))
	}
	if r.MaxLength > 0 {
		rules = append(rules, form.MaxLength(r.MaxLength, r.Message))
	}
	if r.Pattern != "" {
		rules = append(rules, form.Pattern(r.Pattern, r.Message))
	}
	if r.Email {
		rules = append(rules, form.Email(r.Message))
	}
	if r.URL {
		rules = append(rules, form.URL(r.Message))
	}
	if r.Alpha {
		rules = append(rules, form.Alpha(r.Message))
	}
	if r.Min != nil {
		rules = append(rules, form.Min(*r.Min, r.Message))
	}
	if r.Max != nil {
		rules = append(rules, form.Max(*r.Max, r.Message))
	}
	if r.MatchField != "" {
		rules = append(rules, form.MatchField(r.MatchField, r.Message))
	}
	return rules
}
