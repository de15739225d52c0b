package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IvanTurko/depthstream-go/transport"
)

// RequestBuilder assembles a transport.Request step by step.
type RequestBuilder struct {
	method  string
	target  string
	query   url.Values
	header  http.Header
	timeout time.Duration
}

// NewRequestBuilder starts a request for target. An empty method means GET.
func NewRequestBuilder(method, target string) *RequestBuilder {
	if method == "" {
		method = http.MethodGet
	}
	return &RequestBuilder{
		method: method,
		target: target,
		query:  url.Values{},
		header: http.Header{},
	}
}

// Header adds a header value. Repeated keys accumulate.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.header.Add(key, value)
	return b
}

// Headers merges every value of h into the request headers.
func (b *RequestBuilder) Headers(h http.Header) *RequestBuilder {
	for key, values := range h {
		for _, v := range values {
			b.header.Add(key, v)
		}
	}
	return b
}

// Query adds a query parameter.
func (b *RequestBuilder) Query(key, value string) *RequestBuilder {
	b.query.Add(key, value)
	return b
}

// Timeout bounds the whole exchange. Zero leaves it to the caller's context.
func (b *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	b.timeout = d
	return b
}

// Build returns the request. Query parameters are appended with '&' when
// the target already carries a query string.
func (b *RequestBuilder) Build() *transport.Request {
	fullURL := b.target
	if len(b.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + b.query.Encode()
	}
	return &transport.Request{
		Method:  b.method,
		FullURL: fullURL,
		Headers: b.header,
		Timeout: b.timeout,
	}
}
