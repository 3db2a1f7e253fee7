package gmail

import (
	"net/http"

	"github.com/harbormail/mailferry/internal/domain"
)

// Named rate-limit reasons carried in the service error envelope.
const (
	reasonRateLimitExceeded     = "rateLimitExceeded"
	reasonUserRateLimitExceeded = "userRateLimitExceeded"
	reasonDailyLimitExceeded    = "dailyLimitExceeded"
)

// transientStatuses lists the HTTP statuses always worth retrying. 502 is
// deliberately absent: the service returns it for misrouted calls, not for
// load shedding.
var transientStatuses = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusServiceUnavailable:  {},
	http.StatusTooManyRequests:     {},
}

// transientReasons lists the named error codes that signal rate limiting.
var transientReasons = map[string]struct{}{
	reasonRateLimitExceeded:     {},
	reasonUserRateLimitExceeded: {},
	reasonDailyLimitExceeded:    {},
}

// transientTransport lists the connection-level failure codes worth
// retrying.
var transientTransport = map[int]struct{}{
	domain.TransportResolve:    {},
	domain.TransportConnect:    {},
	domain.TransportTimeout:    {},
	domain.TransportTLS:        {},
	domain.TransportEmptyReply: {},
}

// ClassifyStatus maps an HTTP status to a retry kind. Statuses outside the
// transient table are fatal, including other 5xx values.
func ClassifyStatus(status int) domain.ErrorKind {
	if _, ok := transientStatuses[status]; ok {
		return domain.KindTransient
	}
	return domain.KindFatal
}

// ClassifyReason maps a named service error code to a retry kind.
func ClassifyReason(reason string) domain.ErrorKind {
	if _, ok := transientReasons[reason]; ok {
		return domain.KindTransient
	}
	return domain.KindFatal
}

// ClassifyTransport maps a connection-level failure code to a retry kind.
func ClassifyTransport(code int) domain.ErrorKind {
	if _, ok := transientTransport[code]; ok {
		return domain.KindTransient
	}
	return domain.KindFatal
}

// classifyResponse combines the status and reason tables. A response is
// transient when either table says so, which lets a rate-limited 403 retry
// while an unknown 403 stays fatal.
func classifyResponse(status int, reason string) domain.ErrorKind {
	if ClassifyStatus(status) == domain.KindTransient {
		return domain.KindTransient
	}
	if reason != "" && ClassifyReason(reason) == domain.KindTransient {
		return domain.KindTransient
	}
	return domain.KindFatal
}
