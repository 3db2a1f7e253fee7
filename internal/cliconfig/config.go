package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harbormail/mailferry/internal/gmail"
)

// Config holds CLI configuration for mailferry.
type Config struct {
	APIBase  string
	BatchURL string

	TokenFile   string
	AccessToken string

	Query     string
	LabelName string
	Format    string

	PageSize    int
	MaxPages    int
	MaxAttempts int

	BaseDelay   time.Duration
	WaitCap     time.Duration
	HTTPTimeout time.Duration
	Interval    time.Duration
	Retention   time.Duration

	RatePerSec float64
	RateBurst  int

	StateDir string
	DBPath   string
	RedisURL string

	MetricsAddr string

	LogLevel  string
	LogFormat string

	Once   bool
	DryRun bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		APIBase:     gmail.DefaultAPIBase,
		BatchURL:    gmail.DefaultBatchURL,
		Format:      "full",
		PageSize:    100,
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		WaitCap:     10 * time.Second,
		HTTPTimeout: 30 * time.Second,
		Interval:    5 * time.Minute,
		RatePerSec:  5,
		RateBurst:   10,
		LogLevel:    "info",
		LogFormat:   "console",
		AccessToken: os.Getenv("MAILFERRY_ACCESS_TOKEN"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
// Token resolution happens separately in LoadTokenInfo.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		c.APIBase = gmail.DefaultAPIBase
	}
	// Ensure no trailing slash
	if len(c.APIBase) > 0 && c.APIBase[len(c.APIBase)-1] == '/' {
		c.APIBase = c.APIBase[:len(c.APIBase)-1]
	}
	if c.BatchURL == "" {
		c.BatchURL = gmail.DefaultBatchURL
	}

	if c.PageSize <= 0 || c.PageSize > 500 {
		return fmt.Errorf("page-size must be between 1 and 500")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max-attempts must not be negative")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}

	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".mailferry")
		} else {
			c.StateDir = "."
		}
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.StateDir, "messages.db")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntAllowZero sets an int from a pointer if not nil and flag not changed.
// Unlike setInt, zero is a meaningful value here.
func (s *configSetter) setIntAllowZero(flag string, value *int, dst *int) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
