package transport

import (
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPClient defines the minimal interface required to execute HTTP
// requests. Users may inject any custom implementation (e.g., mocks or wrappers).
type HTTPClient interface {
	// Do executes an HTTP request. The implementation must respect the context.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is a lightweight representation of an HTTP request.
type Request struct {
	Method  string
	FullURL string
	Headers http.Header
	Body    io.Reader
	// Timeout bounds the whole exchange, body included. Zero means the
	// context alone decides.
	Timeout time.Duration
}

// Response is the fully-buffered result of an HTTP request.
type Response struct {
	Body       []byte
	StatusCode int
	Headers    http.Header
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
