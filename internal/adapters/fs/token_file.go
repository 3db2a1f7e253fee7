package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/harbormail/mailferry/internal/ports"
)

// TokenFileSource implements ports.TokenSource by reading a bearer token
// from a file. An external refresher owns the OAuth dance and rewrites the
// file; Watch keeps the in-memory copy current.
type TokenFileSource struct {
	path   string
	logger ports.Logger

	mu    sync.RWMutex
	token string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewTokenFileSource loads the initial token from path.
func NewTokenFileSource(path string, logger ports.Logger) (*TokenFileSource, error) {
	s := &TokenFileSource{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the most recently loaded token.
func (s *TokenFileSource) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", fmt.Errorf("token file %s is empty", s.path)
	}
	return s.token, nil
}

func (s *TokenFileSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	token, err := ParseToken(data)
	if err != nil {
		return fmt.Errorf("parse token file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// ParseToken extracts a bearer token from a token file payload. Plain text
// files hold the token itself; JSON files are OAuth token envelopes as
// written by the usual refresher tools.
func ParseToken(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, "{") {
		return text, nil
	}
	var doc struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	if doc.AccessToken != "" {
		return doc.AccessToken, nil
	}
	if doc.Token != "" {
		return doc.Token, nil
	}
	return "", fmt.Errorf("no access_token field")
}

// Watch reloads the token when the file changes. The parent directory is
// watched rather than the file itself, so refreshers that replace the file
// via rename keep triggering events.
func (s *TokenFileSource) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch token directory: %w", err)
	}
	s.watcher = watcher

	go s.loop()
	return nil
}

func (s *TokenFileSource) loop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				// A rename-based refresh can fire before the new file
				// lands; the following create event retries.
				s.logger.Warn("token reload failed", ports.Err(err))
				continue
			}
			s.logger.Info("access token reloaded", ports.String("path", s.path))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("token watcher error", ports.Err(err))
		}
	}
}

// Close stops the watcher goroutine.
func (s *TokenFileSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
