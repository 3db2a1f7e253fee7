package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent error conditions in the mailferry domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrEmptyIDSet is returned when a batch operation is called with no message ids.
	ErrEmptyIDSet = errors.New("mailferry: empty message id set")

	// ErrLabelNotResolved is returned when a configured label name has no id.
	ErrLabelNotResolved = errors.New("mailferry: label not resolved")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("mailferry: invalid configuration")

	// ErrAlreadyRunning is returned when Start is called on a running ferry.
	ErrAlreadyRunning = errors.New("mailferry: already running")

	// ErrNotRunning is returned when Stop is called on a stopped ferry.
	ErrNotRunning = errors.New("mailferry: not running")

	// ErrShutdownTimeout is returned when graceful shutdown exceeds its deadline.
	ErrShutdownTimeout = errors.New("mailferry: shutdown timed out")
)

// ErrorKind classifies a failure for retry decisions.
type ErrorKind int

const (
	// KindFatal marks failures that must not be retried.
	KindFatal ErrorKind = iota

	// KindTransient marks failures worth retrying with backoff.
	KindTransient

	// KindConfiguration marks caller mistakes: empty id sets, unresolved
	// labels, invalid settings. Never retried.
	KindConfiguration
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConfiguration:
		return "configuration"
	default:
		return "fatal"
	}
}

// Low-level transport failure codes. The numbering follows libcurl so that
// diagnostics line up with the upstream service tooling.
const (
	TransportResolve    = 6  // DNS resolution failure
	TransportConnect    = 7  // connection failed or refused
	TransportTimeout    = 28 // operation timed out
	TransportTLS        = 35 // TLS handshake failure
	TransportEmptyReply = 52 // server closed the connection without a response
)

// TransportError is a connection-level failure raised before any HTTP status
// exists: DNS, dial, timeout, TLS, or an empty reply.
type TransportError struct {
	Code int
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mailferry: transport failure %d during %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("mailferry: transport failure %d during %s", e.Code, e.Op)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a classified failure talking to the mail service. It carries
// everything a caller needs to decide on retry and to report: the kind, the
// named service or transport code, the HTTP status when one was received, and
// how many retry attempts were recorded before giving up.
type APIError struct {
	Kind     ErrorKind
	Code     string
	Status   int
	Attempts int
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("mailferry: ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("request failed")
	}
	b.WriteString(" (")
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		fmt.Fprintf(&b, ", code %s", e.Code)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ", http %d", e.Status)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, ", attempts %d", e.Attempts)
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error { return e.Err }

// KindOf returns the classification of err. APIError kinds pass through;
// anything unclassified is fatal.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindFatal
}

// WithAttempts annotates err with the number of retry attempts recorded
// before the retry loop gave up. Non-APIError values are wrapped as fatal.
func WithAttempts(err error, attempts int) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Attempts = attempts
		return err
	}
	return &APIError{Kind: KindFatal, Attempts: attempts, Err: err}
}
