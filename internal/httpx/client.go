package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/IvanTurko/depthstream-go/transport"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient adapts a standard http client to transport.HTTPClient.
type DefaultHTTPClient struct {
	client httpDoer
}

func NewDefaultHTTPClient() *DefaultHTTPClient {
	return NewHTTPClient(nil)
}

// NewHTTPClient wraps c. A nil c means http.DefaultClient.
func NewHTTPClient(c *http.Client) *DefaultHTTPClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &DefaultHTTPClient{client: c}
}

func (d *DefaultHTTPClient) Do(ctx context.Context, r *transport.Request) (*transport.Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.FullURL, r.Body)
	if err != nil {
		return nil, err
	}

	for k, vs := range r.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &transport.Response{
		Body:       body,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
	}, nil
}

var _ transport.HTTPClient = (*DefaultHTTPClient)(nil)
