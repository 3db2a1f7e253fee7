package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/harbormail/mailferry"
	logAdapter "github.com/harbormail/mailferry/internal/adapters/log"
	"github.com/harbormail/mailferry/internal/cliconfig"
	"github.com/harbormail/mailferry/internal/health"
)

const helpBanner = `
 __  __     _     ___  _      _____  _____  ____   ____  __   __
|  \/  |   / \   |_ _|| |    |  ___|| ____||  _ \ |  _ \ \ \ / /
| |\/| |  / _ \   | | | |    | |_   |  _|  | |_) || |_) | \ V /
| |  | | / ___ \  | | | |___ |  _|  | |___ |  _ < |  _ <   | |
|_|  |_|/_/   \_\|___||_____||_|    |_____||_| \_\|_| \_\  |_|
`

const helpDescription = `
Mirror a Gmail-style mailbox into local storage.

Highlights:
  - Fetches messages in batches over the multipart batch endpoint.
  - Retries transient API and transport failures with capped backoff.
  - Persists the listing cursor so an interrupted pass resumes where it stopped.
  - Labels processed messages so the next pass skips them; configure via file, env, or flags.

Docs: https://github.com/harbormail/mailferry
Contact: support@harbormail.dev
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  mailferry --access-token $TOKEN --query "label:inbox -label:ferried" --label ferried
  mailferry --config $HOME/.mailferry/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "mailferry",
		Short:   "Mirror a Gmail-style mailbox into local storage",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			// Load config file first (default $HOME/.mailferry/config.toml),
			// then environment, with flags winning over both.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Apply environment variables (MAILFERRY_*)
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			// Validate and set derived defaults
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Resolve the token source from the state dir if needed
			if err := cliconfig.LoadTokenInfo(&cfg); err != nil {
				return err
			}

			log := cliconfig.NewLogger(cfg)

			// Log configuration (masking the token)
			logCfg := cfg
			if len(logCfg.AccessToken) > 0 {
				logCfg.AccessToken = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			adapter := logAdapter.NewZerologAdapterWithLogger(log)

			if cfg.MetricsAddr != "" {
				srv := health.NewServer(cfg.MetricsAddr, getVersion(), adapter)
				go func() {
					if err := srv.Start(); err != nil {
						log.Error().Err(err).Msg("health server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(shutdownCtx)
				}()
			}

			ferry, err := mailferry.New(cfg, mailferry.WithLogger(adapter))
			if err != nil {
				return fmt.Errorf("create mailferry: %w", err)
			}
			defer ferry.Close()

			// Setup signal handling for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := ferry.Start(ctx); err != nil {
				return fmt.Errorf("start mailferry: %w", err)
			}

			// Wait for a signal or for the sync to finish on its own
			// (once mode or crash).
			select {
			case <-sigCh:
				log.Info().Msg("received signal, stopping...")
				if err := ferry.Stop(); err != nil && !errors.Is(err, mailferry.ErrNotRunning) {
					return fmt.Errorf("stop mailferry: %w", err)
				}
			case <-ferry.Done():
				if err := ferry.Err(); err != nil {
					return fmt.Errorf("mailferry crashed: %w", err)
				}
			}
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.mailferry/config.toml)")
	root.Flags().StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "bearer token for API authentication")
	root.Flags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "file holding the bearer token, reloaded when it changes")

	root.Flags().StringVar(&cfg.APIBase, "api-base", cfg.APIBase, fmt.Sprintf("base API URL (defaults to %s; override only for testing)", cfg.APIBase))
	if err := root.Flags().MarkHidden("api-base"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to hide api-base flag:", err)
	}
	root.Flags().StringVar(&cfg.BatchURL, "batch-url", cfg.BatchURL, fmt.Sprintf("batch endpoint URL (defaults to %s; override only for testing)", cfg.BatchURL))
	if err := root.Flags().MarkHidden("batch-url"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to hide batch-url flag:", err)
	}

	root.Flags().StringVar(&cfg.Query, "query", cfg.Query, "search query selecting messages to mirror")
	root.Flags().StringVar(&cfg.LabelName, "label", cfg.LabelName, "label applied to mirrored messages")
	root.Flags().StringVar(&cfg.Format, "format", cfg.Format, "message payload format (minimal, full, raw, metadata)")

	root.Flags().IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "message ids per listing page (max 500)")
	root.Flags().IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "page budget per pass (0 = unlimited)")
	root.Flags().DurationVar(&cfg.Interval, "interval", cfg.Interval, "delay between sync passes")
	root.Flags().DurationVar(&cfg.Retention, "retention", cfg.Retention, "prune stored messages older than this (0 = keep forever)")

	root.Flags().IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "retry budget per request (0 = no retries)")
	root.Flags().DurationVar(&cfg.BaseDelay, "base-delay", cfg.BaseDelay, "base backoff delay between retries")
	root.Flags().DurationVar(&cfg.WaitCap, "wait-cap", cfg.WaitCap, "backoff delay ceiling")
	root.Flags().Float64Var(&cfg.RatePerSec, "rate", cfg.RatePerSec, "outbound requests per second (0 = unlimited)")
	root.Flags().IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "rate limiter burst size")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")

	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the cursor, token, and database (defaults to $HOME/.mailferry)")
	root.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (defaults to <state-dir>/messages.db)")
	root.Flags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis URL for cursor and label state (optional)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for health and metrics endpoints (empty = disabled)")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console or json)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "run one sync pass and exit")
	root.Flags().BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "list without fetching, storing, or labeling")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mailferry:", err)
		os.Exit(1)
	}
}
