package ports

import (
	"context"
	"net/http"
)

// Request describes a single HTTP exchange with the mail service.
// Body is a plain byte slice so the same request can be sent again on retry.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the outcome of a completed exchange. Body is fully read and
// the connection released before the response is handed back.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport performs one HTTP exchange with the mail service.
// Implementations translate connection-level failures into
// domain.TransportError codes and never retry on their own; retry policy
// belongs to the caller.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}
