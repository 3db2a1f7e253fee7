package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (MAILFERRY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-base", os.Getenv("MAILFERRY_API_BASE"), &cfg.APIBase)
	s.setString("batch-url", os.Getenv("MAILFERRY_BATCH_URL"), &cfg.BatchURL)
	s.setString("token-file", os.Getenv("MAILFERRY_TOKEN_FILE"), &cfg.TokenFile)
	s.setString("access-token", os.Getenv("MAILFERRY_ACCESS_TOKEN"), &cfg.AccessToken)
	s.setString("query", os.Getenv("MAILFERRY_QUERY"), &cfg.Query)
	s.setString("label", os.Getenv("MAILFERRY_LABEL"), &cfg.LabelName)
	s.setString("format", os.Getenv("MAILFERRY_FORMAT"), &cfg.Format)
	s.setString("state-dir", os.Getenv("MAILFERRY_STATE_DIR"), &cfg.StateDir)
	s.setString("db", os.Getenv("MAILFERRY_DB_PATH"), &cfg.DBPath)
	s.setString("redis-url", os.Getenv("MAILFERRY_REDIS_URL"), &cfg.RedisURL)
	s.setString("metrics-addr", os.Getenv("MAILFERRY_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("MAILFERRY_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("MAILFERRY_LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("base-delay", os.Getenv("MAILFERRY_BASE_DELAY"), &cfg.BaseDelay); err != nil {
		return err
	}
	if err := s.setDuration("wait-cap", os.Getenv("MAILFERRY_WAIT_CAP"), &cfg.WaitCap); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("MAILFERRY_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("interval", os.Getenv("MAILFERRY_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("retention", os.Getenv("MAILFERRY_RETENTION"), &cfg.Retention); err != nil {
		return err
	}

	if err := s.setFloatFromString("rate", os.Getenv("MAILFERRY_RATE_PER_SEC"), &cfg.RatePerSec); err != nil {
		return err
	}

	if err := s.setIntFromString("page-size", os.Getenv("MAILFERRY_PAGE_SIZE"), &cfg.PageSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-pages", os.Getenv("MAILFERRY_MAX_PAGES"), &cfg.MaxPages); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", os.Getenv("MAILFERRY_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("rate-burst", os.Getenv("MAILFERRY_RATE_BURST"), &cfg.RateBurst); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("MAILFERRY_ONCE"), &cfg.Once)
	s.setBoolFromString("dry-run", os.Getenv("MAILFERRY_DRY_RUN"), &cfg.DryRun)

	return nil
}
