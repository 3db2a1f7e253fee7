package mailferry

import (
	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
)

// Injectable dependency interfaces, re-exported from the internal ports
// package so embedders never import internal paths.
type (
	// Logger is the structured logging interface.
	Logger = ports.Logger

	// LogField is a structured log field.
	LogField = ports.Field

	// HTTPClient is the interface for making HTTP requests.
	// *http.Client satisfies this interface.
	HTTPClient = ports.HTTPClient

	// Transport performs one HTTP exchange with the mail service.
	Transport = ports.Transport

	// TokenSource supplies the bearer token attached to every request.
	TokenSource = ports.TokenSource

	// CursorStore persists the listing cursor between runs.
	CursorStore = ports.CursorStore

	// LabelCache caches label name to id mappings.
	LabelCache = ports.LabelCache

	// MessageSink stores fetched messages durably.
	MessageSink = ports.MessageSink
)

// Types that cross the injectable interfaces.
type (
	// Request is one HTTP request handed to a Transport.
	Request = ports.Request

	// Response is the HTTP response a Transport returns.
	Response = ports.Response

	// Message is one fetched mail message.
	Message = domain.Message

	// MessageID identifies a message.
	MessageID = domain.MessageID

	// LabelID identifies a label.
	LabelID = domain.LabelID
)

// Option configures optional behavior of a Ferry.
type Option func(*options)

// options holds the optional dependencies for a Ferry instance.
type options struct {
	logger     ports.Logger
	httpClient ports.HTTPClient
	transport  ports.Transport
	tokens     ports.TokenSource
	cursors    ports.CursorStore
	labels     ports.LabelCache
	sink       ports.MessageSink
}

func defaultOptions() options {
	return options{}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for API communication.
// If not provided, a default client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTransport replaces the whole HTTP transport. The built-in rate
// limiter and token source are bypassed; the transport owns
// authentication and pacing.
func WithTransport(transport Transport) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithTokenSource sets a custom token source.
// If not provided, the configured access token or token file is used.
func WithTokenSource(tokens TokenSource) Option {
	return func(o *options) {
		o.tokens = tokens
	}
}

// WithCursorStore replaces the cursor persistence backend.
// If not provided, the cursor lives in a file under the state directory,
// or in redis when a redis URL is configured.
func WithCursorStore(cursors CursorStore) Option {
	return func(o *options) {
		o.cursors = cursors
	}
}

// WithLabelCache replaces the label cache backend.
// If not provided, labels are cached in memory, or in redis when a redis
// URL is configured.
func WithLabelCache(labels LabelCache) Option {
	return func(o *options) {
		o.labels = labels
	}
}

// WithMessageSink replaces the local message store.
// If not provided, messages land in a sqlite database at the configured
// database path.
func WithMessageSink(sink MessageSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}
