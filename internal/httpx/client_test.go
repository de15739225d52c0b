package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanTurko/depthstream-go/transport"
)

func Test_DefaultHTTPClient_Do(t *testing.T) {
	expectedBody := []byte(`{"ok": true}`)
	expectedStatus := 200
	expectedHeader := http.Header{"Content-Type": []string{"application/json"}}
	expectedURL := "https://fake.com/test"

	client := &fakeHttpDoer{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, http.MethodGet, req.Method)
			assert.Equal(t, expectedURL, req.URL.String())
			assert.Equal(t, "123", req.Header.Get("X-Test"))

			_, hasDeadline := req.Context().Deadline()
			assert.False(t, hasDeadline)

			return &http.Response{
				StatusCode: expectedStatus,
				Header:     expectedHeader,
				Body:       io.NopCloser(bytes.NewReader(expectedBody)),
			}, nil
		},
	}

	executor := DefaultHTTPClient{client: client}

	req := &transport.Request{
		Method:  http.MethodGet,
		FullURL: expectedURL,
		Headers: http.Header{"X-Test": []string{"123"}},
	}

	resp, err := executor.Do(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, expectedBody, resp.Body)
	assert.Equal(t, expectedStatus, resp.StatusCode)
	assert.Equal(t, expectedHeader, resp.Headers)
	assert.True(t, resp.IsSuccess())
}

func Test_DefaultHTTPClient_Do_Timeout(t *testing.T) {
	t.Run("deadline is applied", func(t *testing.T) {
		client := &fakeHttpDoer{
			DoFunc: func(req *http.Request) (*http.Response, error) {
				deadline, ok := req.Context().Deadline()
				assert.True(t, ok)
				assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
				return &http.Response{StatusCode: 204, Body: io.NopCloser(bytes.NewReader(nil))}, nil
			},
		}

		_, err := (&DefaultHTTPClient{client: client}).Do(context.Background(),
			&transport.Request{Method: http.MethodGet, FullURL: "https://fake.com", Timeout: time.Minute})
		assert.NoError(t, err)
	})

	t.Run("slow server", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewDefaultHTTPClient().Do(context.Background(),
			&transport.Request{Method: http.MethodGet, FullURL: srv.URL, Timeout: 50 * time.Millisecond})

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func Test_DefaultHTTPClient_Do_Error(t *testing.T) {
	boom := errors.New("boom")
	client := &fakeHttpDoer{
		DoFunc: func(*http.Request) (*http.Response, error) { return nil, boom },
	}

	resp, err := (&DefaultHTTPClient{client: client}).Do(context.Background(),
		&transport.Request{Method: http.MethodGet, FullURL: "https://fake.com"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}

func TestRequestBuilder_Build(t *testing.T) {
	t.Run("defaults to GET", func(t *testing.T) {
		req := NewRequestBuilder("", "https://fake.com/ping").Build()
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "https://fake.com/ping", req.FullURL)
		assert.Empty(t, req.Headers)
		assert.Zero(t, req.Timeout)
	})

	t.Run("query headers and timeout", func(t *testing.T) {
		req := NewRequestBuilder(http.MethodGet, "https://fake.com/depth").
			Query("symbol", "ETHBTC").
			Header("Accept", "text/plain").
			Headers(http.Header{"X-Trace": {"a", "b"}}).
			Timeout(time.Second).
			Build()
		assert.Equal(t, "https://fake.com/depth?symbol=ETHBTC", req.FullURL)
		assert.Equal(t, "text/plain", req.Headers.Get("Accept"))
		assert.Equal(t, []string{"a", "b"}, req.Headers.Values("X-Trace"))
		assert.Equal(t, time.Second, req.Timeout)
	})

	t.Run("target with query", func(t *testing.T) {
		req := NewRequestBuilder(http.MethodGet, "https://fake.com/depth?symbol=ETHBTC").
			Query("limit", "5").
			Build()
		assert.Equal(t, "https://fake.com/depth?symbol=ETHBTC&limit=5", req.FullURL)
	})
}

type fakeHttpDoer struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (f *fakeHttpDoer) Do(req *http.Request) (*http.Response, error) {
	return f.DoFunc(req)
}

var _ httpDoer = (*fakeHttpDoer)(nil)
