package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/IvanTurko/depthstream-go/internal/httpx"
	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/transport"
)

const subsys = "rest"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// GetService fetches a URL and returns its body as text.
type GetService struct {
	client  transport.HTTPClient
	url     string
	header  http.Header
	timeout time.Duration
}

// TextResponse is the result of a successful GetService call.
type TextResponse struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// NewGetService creates a new GetService.
func NewGetService() *GetService {
	return &GetService{
		client: httpx.NewDefaultHTTPClient(),
		header: make(http.Header),
	}
}

// WithClient sets the HTTP client for the service.
func (s *GetService) WithClient(client transport.HTTPClient) *GetService {
	s.client = client
	return s
}

// URL sets the address to fetch.
func (s *GetService) URL(u string) *GetService {
	s.url = u
	return s
}

// Header adds a request header.
func (s *GetService) Header(key, value string) *GetService {
	s.header.Add(key, value)
	return s
}

// Timeout bounds the request. Zero leaves it to ctx.
func (s *GetService) Timeout(d time.Duration) *GetService {
	s.timeout = d
	return s
}

// Validate validates the service parameters.
func (s *GetService) Validate() error {
	op := "GetService.Validate"
	if s.url == "" {
		return sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessage("url is required")
	}
	u, err := url.Parse(s.url)
	if err != nil {
		return sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("invalid url %q", s.url).
			WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessagef("url %q must use http or https", s.url)
	}
	if s.timeout < 0 {
		return sdkerr.New(subsys, op, sdkerr.ErrValidation).
			WithMessage("timeout must not be negative")
	}
	return nil
}

// Do executes the request.
//
// Errors:
//   - sdkerr.ErrValidation: the parameters are invalid, nothing was sent.
//   - sdkerr.ErrRequestFailed: the request could not be completed (includes timeouts).
//   - sdkerr.ErrAPIError: the server answered with a non-2xx status.
func (s *GetService) Do(ctx context.Context) (*TextResponse, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	req := httpx.NewRequestBuilder(http.MethodGet, s.url).
		Headers(s.header).
		Timeout(s.timeout).
		Build()

	op := "GetService.Do"
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrRequestFailed).
			WithMessagef("GET %s", s.url).
			WithCause(err)
	}

	if !resp.IsSuccess() {
		return nil, sdkerr.New(subsys, op, sdkerr.ErrAPIError).
			WithMessagef("GET %s: status %d: %s", s.url, resp.StatusCode, truncate(resp.Body))
	}

	return &TextResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Headers,
		Body:       string(resp.Body),
	}, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
