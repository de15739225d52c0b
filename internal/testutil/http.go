package testutil

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IvanTurko/depthstream-go/transport"
)

// ExtractQuery parses the query string of fullURL.
func ExtractQuery(t testing.TB, fullURL string) url.Values {
	t.Helper()
	parsed, err := url.Parse(fullURL)
	require.NoError(t, err)
	return parsed.Query()
}

// FakeHTTPClient records every request and answers through DoFunc.
type FakeHTTPClient struct {
	DoFunc func(ctx context.Context, req *transport.Request) (*transport.Response, error)

	mu       sync.Mutex
	requests []*transport.Request
}

// Respond returns a client that always answers with status and body.
func Respond(status int, body string) *FakeHTTPClient {
	return &FakeHTTPClient{
		DoFunc: func(context.Context, *transport.Request) (*transport.Response, error) {
			return &transport.Response{StatusCode: status, Body: []byte(body)}, nil
		},
	}
}

func (f *FakeHTTPClient) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.DoFunc(ctx, req)
}

// Requests returns the requests seen so far.
func (f *FakeHTTPClient) Requests() []*transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*transport.Request(nil), f.requests...)
}

var _ transport.HTTPClient = (*FakeHTTPClient)(nil)
