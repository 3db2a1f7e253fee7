package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	APIBase     string  `toml:"api_base"`
	BatchURL    string  `toml:"batch_url"`
	TokenFile   string  `toml:"token_file"`
	AccessToken string  `toml:"access_token"`
	Query       string  `toml:"query"`
	LabelName   string  `toml:"label"`
	Format      string  `toml:"format"`
	PageSize    int     `toml:"page_size"`
	MaxPages    int     `toml:"max_pages"`
	MaxAttempts *int    `toml:"max_attempts"`
	BaseDelay   string  `toml:"base_delay"`
	WaitCap     string  `toml:"wait_cap"`
	HTTPTimeout string  `toml:"http_timeout"`
	Interval    string  `toml:"interval"`
	Retention   string  `toml:"retention"`
	RatePerSec  float64 `toml:"rate_per_sec"`
	RateBurst   int     `toml:"rate_burst"`
	StateDir    string  `toml:"state_dir"`
	DBPath      string  `toml:"db_path"`
	RedisURL    string  `toml:"redis_url"`
	MetricsAddr string  `toml:"metrics_addr"`
	LogLevel    string  `toml:"log_level"`
	LogFormat   string  `toml:"log_format"`
	Once        *bool   `toml:"once"`
	DryRun      *bool   `toml:"dry_run"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.mailferry/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".mailferry", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-base", fc.APIBase, &cfg.APIBase)
	s.setString("batch-url", fc.BatchURL, &cfg.BatchURL)
	s.setString("token-file", fc.TokenFile, &cfg.TokenFile)
	s.setString("access-token", fc.AccessToken, &cfg.AccessToken)
	s.setString("query", fc.Query, &cfg.Query)
	s.setString("label", fc.LabelName, &cfg.LabelName)
	s.setString("format", fc.Format, &cfg.Format)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("db", fc.DBPath, &cfg.DBPath)
	s.setString("redis-url", fc.RedisURL, &cfg.RedisURL)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	if err := s.setDuration("base-delay", fc.BaseDelay, &cfg.BaseDelay); err != nil {
		return err
	}
	if err := s.setDuration("wait-cap", fc.WaitCap, &cfg.WaitCap); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("retention", fc.Retention, &cfg.Retention); err != nil {
		return err
	}

	s.setFloat("rate", fc.RatePerSec, &cfg.RatePerSec)

	s.setInt("page-size", fc.PageSize, &cfg.PageSize)
	s.setInt("max-pages", fc.MaxPages, &cfg.MaxPages)
	s.setInt("rate-burst", fc.RateBurst, &cfg.RateBurst)
	s.setIntAllowZero("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)

	s.setBool("once", fc.Once, &cfg.Once)
	s.setBool("dry-run", fc.DryRun, &cfg.DryRun)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
