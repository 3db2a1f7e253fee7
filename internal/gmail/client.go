// Package gmail is a hand-built client for Gmail-compatible mailbox APIs.
// It lists message ids page by page, bulk-fetches full documents through
// the multipart batch endpoint, applies labels, and classifies failures
// for the retry schedule. Everything below the wire format goes through
// the ports interfaces, so the package never dials the network itself.
package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harbormail/mailferry/internal/batch"
	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/metrics"
	"github.com/harbormail/mailferry/internal/ports"
	"github.com/harbormail/mailferry/internal/retry"
)

// Default endpoints of the public Gmail API.
const (
	DefaultAPIBase  = "https://www.googleapis.com/gmail"
	DefaultBatchURL = "https://www.googleapis.com/batch/gmail/v1"
)

// maxBatchSize is the hard upper bound of sub-requests per batch call.
// The service rejects larger batches outright.
const maxBatchSize = 100

// usersMePrefix roots every call at the authenticated mailbox.
const usersMePrefix = "/v1/users/me"

// Config holds the settings for a Client.
type Config struct {
	// APIBase is the service root including the service path segment,
	// e.g. "https://www.googleapis.com/gmail".
	APIBase string

	// BatchURL is the fixed batch endpoint. It is not derived from
	// APIBase because the service hosts batching on a separate path.
	BatchURL string

	// Format selects the message payload shape for fetches ("full",
	// "metadata", "minimal", "raw"). Empty leaves the service default.
	Format string

	// MaxAttempts bounds retries per logical request. Zero disables
	// retries entirely; negative values fall back to the default.
	MaxAttempts int

	// BaseDelay and WaitCap shape the backoff schedule.
	BaseDelay time.Duration
	WaitCap   time.Duration
}

func (c *Config) setDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.BatchURL == "" {
		c.BatchURL = DefaultBatchURL
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = retry.DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = retry.DefaultBaseDelay
	}
	if c.WaitCap <= 0 {
		c.WaitCap = retry.DefaultWaitCap
	}
}

// Client drives the mailbox API over an injected transport. It is the only
// writer of the cursor store: every listed page persists its continuation
// token before the page is handed back.
type Client struct {
	cfg         Config
	servicePath string
	transport   ports.Transport
	cursors     ports.CursorStore
	logger      ports.Logger

	// Boundary generates a fresh multipart boundary per batch call.
	// Tests pin it for deterministic bodies.
	Boundary func() string

	// Sleep overrides the backoff sleeper on every policy the client
	// creates. Tests use it to run the schedule without waiting.
	Sleep func(time.Duration)
}

// New builds a Client. Zero-value config fields fall back to the public
// service endpoints and the default retry schedule.
func New(cfg Config, transport ports.Transport, cursors ports.CursorStore, logger ports.Logger) *Client {
	cfg.setDefaults()

	servicePath := ""
	if u, err := url.Parse(cfg.APIBase); err == nil {
		servicePath = u.Path
	}

	return &Client{
		cfg:         cfg,
		servicePath: servicePath,
		transport:   transport,
		cursors:     cursors,
		logger:      logger,
		Boundary:    func() string { return "batch_" + uuid.NewString() },
	}
}

// url joins the service root, the fixed users/me segment, and the call path.
func (c *Client) url(path string, vals url.Values) string {
	u := c.cfg.APIBase + usersMePrefix + path
	if len(vals) > 0 {
		u += "?" + vals.Encode()
	}
	return u
}

// subRequestPath builds the path-only request line for one message fetch,
// rooted at the service path segment of APIBase.
func (c *Client) subRequestPath(id domain.MessageID) string {
	p := c.servicePath + usersMePrefix + "/messages/" + string(id)
	if c.cfg.Format != "" {
		p += "?format=" + c.cfg.Format
	}
	return p
}

// ListMessages fetches one page of the mailbox listing and persists the
// continuation cursor before returning the page.
func (c *Client) ListMessages(ctx context.Context, q ListQuery) (domain.MessageIDPage, error) {
	resp, err := c.SendWithRetry(ctx, func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: c.url("/messages", q.values())}
	})
	if err != nil {
		return domain.MessageIDPage{}, err
	}

	var lr listResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil {
		return domain.MessageIDPage{}, &domain.APIError{Kind: domain.KindFatal, Message: "decode list response", Err: err}
	}

	page := domain.MessageIDPage{
		Refs:          lr.Messages,
		NextPageToken: lr.NextPageToken,
		SizeEstimate:  lr.ResultSizeEstimate,
	}

	if page.NextPageToken != "" {
		if err := c.cursors.SetCursor(ctx, page.NextPageToken); err != nil {
			return domain.MessageIDPage{}, fmt.Errorf("persist cursor: %w", err)
		}
		c.logger.Debug("cursor persisted", ports.Int("page_size", len(page.Refs)))
	}
	return page, nil
}

// BatchFetch retrieves full message documents for the given ids, preserving
// input order. Ids go to the batch endpoint in chunks of at most
// maxBatchSize; any failed chunk aborts the whole fetch and partial results
// are discarded.
func (c *Client) BatchFetch(ctx context.Context, ids []domain.MessageID) ([]domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	msgs := make([]domain.Message, 0, len(ids))
	for start := 0; start < len(ids); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := c.fetchChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, chunk...)
	}

	metrics.MessagesFetchedTotal.Add(float64(len(msgs)))
	return msgs, nil
}

func (c *Client) fetchChunk(ctx context.Context, ids []domain.MessageID) ([]domain.Message, error) {
	boundary := c.Boundary()
	specs := make([]batch.RequestSpec, len(ids))
	for i, id := range ids {
		specs[i] = batch.RequestSpec{Method: http.MethodGet, Path: c.subRequestPath(id)}
	}
	body := batch.Encode(specs, boundary)

	header := http.Header{}
	header.Set("Content-Type", batch.ContentType(boundary))

	resp, err := c.SendWithRetry(ctx, func() ports.Request {
		return ports.Request{Method: http.MethodPost, URL: c.cfg.BatchURL, Header: header, Body: body}
	})
	if err != nil {
		return nil, err
	}
	metrics.BatchChunksTotal.Inc()

	docs, err := batch.Decode(resp.Body)
	if err != nil {
		return nil, &domain.APIError{Kind: domain.KindFatal, Message: "decode batch response", Err: err}
	}

	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		var md messageDoc
		if err := json.Unmarshal(doc, &md); err != nil {
			return nil, &domain.APIError{Kind: domain.KindFatal, Message: "decode message document", Err: err}
		}
		msgs = append(msgs, md.toMessage(doc))
	}
	return msgs, nil
}

// BatchModify adds labels to every given message in a single call.
func (c *Client) BatchModify(ctx context.Context, ids []domain.MessageID, addLabelIDs []domain.LabelID) error {
	if len(ids) == 0 {
		return &domain.APIError{Kind: domain.KindConfiguration, Message: "batch modify needs at least one message id", Err: domain.ErrEmptyIDSet}
	}
	if len(addLabelIDs) == 0 {
		return &domain.APIError{Kind: domain.KindConfiguration, Message: "batch modify needs a resolved label id", Err: domain.ErrLabelNotResolved}
	}

	payload, err := json.Marshal(modifyRequest{IDs: ids, AddLabelIDs: addLabelIDs})
	if err != nil {
		return fmt.Errorf("encode modify request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	_, err = c.SendWithRetry(ctx, func() ports.Request {
		return ports.Request{Method: http.MethodPost, URL: c.url("/messages/batchModify", nil), Header: header, Body: payload}
	})
	return err
}

// ListLabels fetches the full label listing of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]domain.Label, error) {
	resp, err := c.SendWithRetry(ctx, func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: c.url("/labels", nil)}
	})
	if err != nil {
		return nil, err
	}

	var lr labelsResponse
	if err := json.Unmarshal(resp.Body, &lr); err != nil {
		return nil, &domain.APIError{Kind: domain.KindFatal, Message: "decode labels response", Err: err}
	}
	return lr.Labels, nil
}

// SendWithRetry drives one logical request through the retry schedule.
//
// A single policy covers the whole operation. Each pass waits out the
// backoff (a no-op before the first failure), performs the request, and
// classifies any failure. A transient failure with budget left earns one
// immediate repeat before the next scheduled wait; fatal and configuration
// failures return at once. Every failure advances the attempt count, and
// the error handed back carries the final count.
func (c *Client) SendWithRetry(ctx context.Context, build func() ports.Request) (ports.Response, error) {
	pol := retry.NewWithSchedule(c.cfg.MaxAttempts, c.cfg.BaseDelay, c.cfg.WaitCap)
	if c.Sleep != nil {
		pol.Sleep = c.Sleep
	}

	for {
		pol.Backoff()

		resp, err := c.send(ctx, build())
		if err == nil {
			metrics.RequestsTotal.WithLabelValues("success").Inc()
			return resp, nil
		}

		pol.Advance()
		if domain.KindOf(err) != domain.KindTransient {
			metrics.RequestsTotal.WithLabelValues("failure").Inc()
			return ports.Response{}, domain.WithAttempts(err, pol.Attempt())
		}
		c.logger.Warn("request failed, retrying",
			ports.Err(err),
			ports.Int("attempt", pol.Attempt()),
			ports.Int("max_attempts", pol.MaxAttempts()))

		if pol.Retryable() {
			// One immediate repeat before falling back to the schedule.
			metrics.RequestRetriesTotal.Inc()
			resp, err = c.send(ctx, build())
			if err == nil {
				metrics.RequestsTotal.WithLabelValues("success").Inc()
				return resp, nil
			}

			pol.Advance()
			if domain.KindOf(err) != domain.KindTransient {
				metrics.RequestsTotal.WithLabelValues("failure").Inc()
				return ports.Response{}, domain.WithAttempts(err, pol.Attempt())
			}
			c.logger.Warn("immediate retry failed",
				ports.Err(err),
				ports.Int("attempt", pol.Attempt()),
				ports.Int("max_attempts", pol.MaxAttempts()))
		}

		if !pol.Retryable() {
			metrics.RequestsTotal.WithLabelValues("failure").Inc()
			return ports.Response{}, domain.WithAttempts(err, pol.Attempt())
		}
		metrics.RequestRetriesTotal.Inc()
	}
}

// send performs one exchange and maps non-2xx responses and connection
// failures onto classified errors.
func (c *Client) send(ctx context.Context, req ports.Request) (ports.Response, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		var terr *domain.TransportError
		if errors.As(err, &terr) {
			return ports.Response{}, &domain.APIError{
				Kind:    ClassifyTransport(terr.Code),
				Code:    strconv.Itoa(terr.Code),
				Message: "transport failure during " + terr.Op,
				Err:     err,
			}
		}
		return ports.Response{}, &domain.APIError{Kind: domain.KindFatal, Message: "transport failure", Err: err}
	}

	if resp.Status/100 == 2 {
		return resp, nil
	}

	reason, msg := parseErrorBody(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.Status)
	}
	return ports.Response{}, &domain.APIError{
		Kind:    classifyResponse(resp.Status, reason),
		Code:    reason,
		Status:  resp.Status,
		Message: msg,
	}
}
