package cliconfig

import (
	"testing"
	"time"

	"github.com/harbormail/mailferry/internal/gmail"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.APIBase != gmail.DefaultAPIBase {
		t.Errorf("APIBase = %v, want %v", cfg.APIBase, gmail.DefaultAPIBase)
	}
	if cfg.BatchURL != gmail.DefaultBatchURL {
		t.Errorf("BatchURL = %v, want %v", cfg.BatchURL, gmail.DefaultBatchURL)
	}
	if cfg.PageSize != 100 {
		t.Errorf("PageSize = %v, want 100", cfg.PageSize)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %v, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 100*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 100ms", cfg.BaseDelay)
	}
	if cfg.WaitCap != 10*time.Second {
		t.Errorf("WaitCap = %v, want 10s", cfg.WaitCap)
	}
	if cfg.Interval != 5*time.Minute {
		t.Errorf("Interval = %v, want 5m", cfg.Interval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		wantAPIBase string
	}{
		{
			name: "valid minimal config",
			config: Config{
				APIBase:  "https://api.test/mail",
				PageSize: 100,
				Interval: time.Minute,
			},
			wantErr: false,
		},
		{
			name: "api base defaults when omitted",
			config: Config{
				PageSize: 100,
				Interval: time.Minute,
			},
			wantErr:     false,
			wantAPIBase: gmail.DefaultAPIBase,
		},
		{
			name: "api base trailing slash trimmed",
			config: Config{
				APIBase:  "https://api.test/mail/",
				PageSize: 100,
				Interval: time.Minute,
			},
			wantErr:     false,
			wantAPIBase: "https://api.test/mail",
		},
		{
			name: "zero page size rejected",
			config: Config{
				PageSize: 0,
				Interval: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "oversized page rejected",
			config: Config{
				PageSize: 501,
				Interval: time.Minute,
			},
			wantErr: true,
		},
		{
			name: "zero max attempts allowed",
			config: Config{
				PageSize:    100,
				MaxAttempts: 0,
				Interval:    time.Minute,
			},
			wantErr: false,
		},
		{
			name: "negative max attempts rejected",
			config: Config{
				PageSize:    100,
				MaxAttempts: -1,
				Interval:    time.Minute,
			},
			wantErr: true,
		},
		{
			name: "missing interval rejected",
			config: Config{
				PageSize: 100,
			},
			wantErr: true,
		},
		{
			name: "negative retention rejected",
			config: Config{
				PageSize:  100,
				Interval:  time.Minute,
				Retention: -time.Hour,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.wantAPIBase != "" && tt.config.APIBase != tt.wantAPIBase {
				t.Errorf("APIBase = %v, want %v", tt.config.APIBase, tt.wantAPIBase)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	// DBPath derives from StateDir
	c1 := Config{
		PageSize: 100,
		Interval: time.Minute,
		StateDir: "/var/lib/mailferry",
	}
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c1.DBPath != "/var/lib/mailferry/messages.db" {
		t.Errorf("DBPath = %v, want /var/lib/mailferry/messages.db", c1.DBPath)
	}

	// DBPath respects explicit override
	c2 := Config{
		PageSize: 100,
		Interval: time.Minute,
		StateDir: "/var/lib/mailferry",
		DBPath:   "/custom/mail.db",
	}
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.DBPath != "/custom/mail.db" {
		t.Errorf("DBPath = %v, want /custom/mail.db", c2.DBPath)
	}

	// StateDir gets a default when omitted
	c3 := Config{
		PageSize: 100,
		Interval: time.Minute,
	}
	if err := c3.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c3.StateDir == "" {
		t.Error("StateDir should be derived when omitted")
	}
	if c3.BatchURL != gmail.DefaultBatchURL {
		t.Errorf("BatchURL = %v, want %v", c3.BatchURL, gmail.DefaultBatchURL)
	}
}
