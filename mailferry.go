// Package mailferry mirrors a Gmail-style mailbox into local storage.
//
// It lists message ids matching a query, fetches the messages in batches
// over the multipart batch endpoint, stores them in sqlite, and labels
// the processed messages so the next pass skips them. Transient API and
// transport failures retry with capped exponential backoff; the listing
// cursor survives restarts so an interrupted pass resumes where it
// stopped.
//
// Basic usage:
//
//	cfg := mailferry.DefaultConfig()
//	cfg.AccessToken = os.Getenv("MAILFERRY_ACCESS_TOKEN")
//	cfg.Query = "label:inbox -label:ferried"
//	cfg.LabelName = "ferried"
//
//	if err := mailferry.Run(ctx, cfg); err != nil {
//		log.Fatal(err)
//	}
//
// For finer control, create a Ferry and drive it yourself:
//
//	ferry, err := mailferry.New(cfg, mailferry.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ferry.Close()
//
//	if err := ferry.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	<-ferry.Done()
package mailferry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	fsAdapter "github.com/harbormail/mailferry/internal/adapters/fs"
	httpAdapter "github.com/harbormail/mailferry/internal/adapters/http"
	logAdapter "github.com/harbormail/mailferry/internal/adapters/log"
	"github.com/harbormail/mailferry/internal/adapters/mem"
	redisAdapter "github.com/harbormail/mailferry/internal/adapters/redis"
	"github.com/harbormail/mailferry/internal/adapters/sqlite"
	"github.com/harbormail/mailferry/internal/app"
	"github.com/harbormail/mailferry/internal/cliconfig"
	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/gmail"
	"github.com/harbormail/mailferry/internal/ports"
	"github.com/harbormail/mailferry/internal/rate"
)

// Version is reported in the User-Agent header of every API request.
const Version = "0.3.0"

// Config holds the configuration for a Ferry.
//
// Use DefaultConfig to obtain a Config with working defaults. At minimum,
// set AccessToken or TokenFile, and usually Query and LabelName, before
// calling New or Run.
type Config = cliconfig.Config

// DefaultConfig returns a Config with working default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// LoadTokenInfo resolves the token source from conventional locations
// when the config names none. Call it after Config.Validate.
func LoadTokenInfo(cfg *Config) error {
	return cliconfig.LoadTokenInfo(cfg)
}

// State is the lifecycle state of a Ferry.
type State = app.State

// Lifecycle states reported by Ferry.Status.
const (
	StateStopped  = app.StateStopped
	StateStarting = app.StateStarting
	StateRunning  = app.StateRunning
	StateStopping = app.StateStopping
	StateCrashed  = app.StateCrashed
)

// Lifecycle errors returned by Start and Stop.
var (
	ErrAlreadyRunning = domain.ErrAlreadyRunning
	ErrNotRunning     = domain.ErrNotRunning
)

// StaticToken is a TokenSource serving a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty access token")
	}
	return string(t), nil
}

// Ferry syncs a mailbox into local storage. Create one with New, begin
// syncing with Start, and release its resources with Close. A Ferry is
// single use: once closed it cannot be started again.
type Ferry struct {
	config    Config
	logger    ports.Logger
	lifecycle *app.Lifecycle
	syncer    *app.Syncer

	// watcher is non-nil when the token comes from a watched file.
	watcher *fsAdapter.TokenFileSource

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
	runErr  error

	closeOnce sync.Once
	closers   []func() error
}

// New assembles a Ferry from the config. Dependencies not overridden via
// options are built from the config: an HTTP transport with bearer auth
// and rate limiting, a sqlite message store, and file or redis backed
// cursor and label state.
func New(cfg Config, opts ...Option) (*Ferry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logAdapter.NewNoopLogger()
	}

	f := &Ferry{
		config:    cfg,
		logger:    logger,
		lifecycle: app.NewLifecycle(logger),
		done:      make(chan struct{}),
	}

	// Any constructor failure after this point must release what was
	// already opened.
	fail := func(err error) (*Ferry, error) {
		f.closeResources()
		return nil, err
	}

	tokens := o.tokens
	if tokens == nil && o.transport == nil {
		switch {
		case cfg.AccessToken != "":
			tokens = StaticToken(cfg.AccessToken)
		case cfg.TokenFile != "":
			src, err := fsAdapter.NewTokenFileSource(cfg.TokenFile, logger)
			if err != nil {
				return nil, fmt.Errorf("load token file: %w", err)
			}
			f.watcher = src
			f.closers = append(f.closers, src.Close)
			tokens = src
		default:
			return nil, fmt.Errorf("access-token is required (or token-file)")
		}
	}

	transport := o.transport
	if transport == nil {
		var limiter rate.Limiter
		if cfg.RatePerSec > 0 {
			bucket := rate.NewTokenBucket(cfg.RateBurst, cfg.RatePerSec)
			f.closers = append(f.closers, func() error {
				bucket.Stop()
				return nil
			})
			limiter = bucket
		}

		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.HTTPTimeout}
		}

		transport = httpAdapter.NewTransport(httpAdapter.Config{
			Timeout:   cfg.HTTPTimeout,
			UserAgent: "mailferry/" + Version,
			Limiter:   limiter,
		}, client, tokens, logger)
	}

	cursors := o.cursors
	labels := o.labels
	if cursors == nil || labels == nil {
		if cfg.RedisURL != "" {
			rc, err := redisAdapter.NewClient(redisAdapter.Config{URL: cfg.RedisURL})
			if err != nil {
				return fail(fmt.Errorf("connect redis: %w", err))
			}
			f.closers = append(f.closers, rc.Close)
			if cursors == nil {
				cursors = rc
			}
			if labels == nil {
				labels = rc
			}
		} else {
			if cursors == nil {
				cursors = fsAdapter.NewCursorFileStore(cfg.StateDir)
			}
			if labels == nil {
				labels = mem.NewLabelCache()
			}
		}
	}

	client := gmail.New(gmail.Config{
		APIBase:     cfg.APIBase,
		BatchURL:    cfg.BatchURL,
		Format:      cfg.Format,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		WaitCap:     cfg.WaitCap,
	}, transport, cursors, logger)

	resolver := gmail.NewLabelResolver(client, labels, logger)

	sink := o.sink
	if sink == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
			return fail(fmt.Errorf("create state directory: %w", err))
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fail(fmt.Errorf("open message store: %w", err))
		}
		f.closers = append(f.closers, store.Close)
		sink = store
	}

	f.syncer = app.NewSyncer(app.Config{
		Query:     cfg.Query,
		LabelName: cfg.LabelName,
		PageSize:  cfg.PageSize,
		Interval:  cfg.Interval,
		Once:      cfg.Once,
		DryRun:    cfg.DryRun,
		Retention: cfg.Retention,
		MaxPages:  cfg.MaxPages,
	}, client, resolver, cursors, sink, logger)

	return f, nil
}

// Start begins syncing in the background. The context bounds the whole
// run: cancelling it stops the sync loop. Start returns once the ferry
// is launched; watch Done to learn when it finishes.
func (f *Ferry) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("mailferry: closed")
	}
	if f.started {
		return domain.ErrAlreadyRunning
	}
	if !f.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStarting, "start requested"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.lifecycle.SetCancel(cancel)

	if f.watcher != nil {
		if err := f.watcher.Watch(); err != nil {
			cancel()
			_ = f.lifecycle.TransitionTo(app.StateCrashed, "token watch failed")
			return fmt.Errorf("watch token file: %w", err)
		}
	}

	f.started = true
	f.lifecycle.AddWorker()
	go f.run(runCtx)

	return nil
}

// run drives the syncer and settles the final lifecycle state.
func (f *Ferry) run(ctx context.Context) {
	defer f.lifecycle.WorkerDone()
	defer close(f.done)

	if err := f.lifecycle.TransitionTo(app.StateRunning, "syncer started"); err != nil {
		f.logger.Error("failed to enter running state", ports.Err(err))
		return
	}

	err := f.syncer.Run(ctx)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		f.setRunErr(err)
		f.logger.Error("sync loop failed", ports.Err(err))
		_ = f.lifecycle.TransitionTo(app.StateCrashed, err.Error())
	case f.lifecycle.State() == app.StateRunning:
		// Clean finish (once mode). When Stop drives the shutdown the
		// state is already Stopping and Stop owns the transitions.
		_ = f.lifecycle.TransitionTo(app.StateStopping, "sync complete")
		_ = f.lifecycle.TransitionTo(app.StateStopped, "sync complete")
	}
}

// Stop cancels the sync loop and waits for it to drain, up to the
// shutdown timeout. It does not release resources; call Close for that.
func (f *Ferry) Stop() error {
	f.mu.Lock()
	if !f.lifecycle.CanStop() {
		f.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := f.lifecycle.TransitionTo(app.StateStopping, "stop requested"); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	if err := f.lifecycle.WaitWithTimeout(app.ShutdownTimeout); err != nil {
		_ = f.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}

	_ = f.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return nil
}

// Close releases the ferry's resources: the token file watcher, the rate
// limiter, the message store, and the redis connection when one is open.
// A running ferry is stopped first. Close is idempotent.
func (f *Ferry) Close() error {
	if err := f.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		f.closeResources()
		return err
	}

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	return f.closeResources()
}

func (f *Ferry) closeResources() error {
	var err error
	f.closeOnce.Do(func() {
		for _, c := range f.closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// SyncOnce runs a single synchronous sync pass. It must not be called
// while the ferry is running.
func (f *Ferry) SyncOnce(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fmt.Errorf("mailferry: closed")
	}
	if s := f.lifecycle.State(); s != app.StateStopped && s != app.StateCrashed {
		f.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	f.mu.Unlock()

	return f.syncer.SyncOnce(ctx)
}

// Status returns the current lifecycle state.
func (f *Ferry) Status() State {
	return f.lifecycle.State()
}

// Done returns a channel closed when a started ferry finishes, whether
// by completing a once pass, being stopped, or crashing.
func (f *Ferry) Done() <-chan struct{} {
	return f.done
}

// Err returns the error that crashed the ferry, or nil.
func (f *Ferry) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runErr
}

func (f *Ferry) setRunErr(err error) {
	f.mu.Lock()
	f.runErr = err
	f.mu.Unlock()
}

// Run assembles a Ferry, starts it, and blocks until the context ends or
// the sync finishes on its own. Resources are released before Run
// returns. A crash surfaces as the error that caused it.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	f, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := f.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
			return err
		}
		return nil
	case <-f.Done():
		return f.Err()
	}
}
