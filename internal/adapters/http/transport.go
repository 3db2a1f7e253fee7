// Package http implements ports.Transport over a plain HTTP client. The
// adapter owns the ambient concerns of every exchange: bearer auth from
// the token source, the per-request deadline, optional request pacing,
// and mapping connection failures onto transport error codes.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
	"github.com/harbormail/mailferry/internal/rate"
)

// Config holds the settings for a Transport.
type Config struct {
	// Timeout bounds each exchange including body read. Zero disables
	// the per-request deadline.
	Timeout time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string

	// Limiter paces requests when set. The transport waits for a slot
	// before every attempt, so retries are paced like first sends.
	Limiter rate.Limiter
}

// Transport sends ports.Request values over real HTTP.
type Transport struct {
	cfg    Config
	client ports.HTTPClient
	tokens ports.TokenSource
	logger ports.Logger
}

// NewTransport creates a transport over the given client. A nil token
// source sends unauthenticated requests.
func NewTransport(cfg Config, client ports.HTTPClient, tokens ports.TokenSource, logger ports.Logger) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{
		cfg:    cfg,
		client: client,
		tokens: tokens,
		logger: logger,
	}
}

// Send performs one exchange and returns the fully read response.
// Connection failures come back as *domain.TransportError; HTTP error
// statuses are not errors at this layer.
func (t *Transport) Send(ctx context.Context, req ports.Request) (ports.Response, error) {
	if t.cfg.Limiter != nil {
		if err := t.cfg.Limiter.Wait(ctx); err != nil {
			return ports.Response{}, fmt.Errorf("await request slot: %w", err)
		}
	}

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return ports.Response{}, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if t.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	if t.tokens != nil {
		token, err := t.tokens.Token()
		if err != nil {
			return ports.Response{}, fmt.Errorf("load access token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		code := transportCode(err)
		t.logger.Debug("exchange failed",
			ports.Err(err),
			ports.Int("transport_code", code),
			ports.String("method", req.Method))
		return ports.Response{}, &domain.TransportError{
			Code: code,
			Op:   req.Method + " " + httpReq.URL.Path,
			Err:  err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.Response{}, &domain.TransportError{
			Code: transportCode(err),
			Op:   "read response body",
			Err:  err,
		}
	}

	t.logger.Debug("exchange complete",
		ports.String("method", req.Method),
		ports.Int("status", resp.StatusCode),
		ports.Int("body_bytes", len(respBody)),
		ports.Duration("elapsed", time.Since(start)))

	return ports.Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   respBody,
	}, nil
}

// transportCode maps a connection failure onto the failure numbering the
// classifier understands. Cancellation is not a network fault and maps to
// zero, which classifies fatal.
func transportCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 0
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.TransportResolve
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return domain.TransportTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return domain.TransportTLS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TransportTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.TransportTimeout
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.TransportEmptyReply
	}

	return domain.TransportConnect
}
