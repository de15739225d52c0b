package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/IvanTurko/depthstream-go/depth"
	"github.com/IvanTurko/depthstream-go/internal/config"
	"github.com/IvanTurko/depthstream-go/sdkerr"
	"github.com/IvanTurko/depthstream-go/ws"
)

func update(stream string, id int) []byte {
	return []byte(fmt.Sprintf(
		`{"stream":%q,"data":{"lastUpdateId":%d,"bids":[["0.0523","1.2"],["0.0522","3"]],"asks":[["0.0525","0.8"]]}}`,
		stream, id))
}

func testConfig(t *testing.T, srv *httptest.Server) *config.Config {
	t.Helper()
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	cfg.Stream.BaseURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Reconnect.BaseMs = 1
	cfg.Reconnect.MaxMs = 5
	cfg.Reconnect.Jitter = 0
	require.NoError(t, cfg.Validate())
	return cfg
}

func newServer(t *testing.T, handle func(n int64, c *websocket.Conn)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var conns atomic.Int64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		assert.Equal(t, "ethbtc@depth5@100ms/bnbeth@depth5@100ms", r.URL.Query().Get("streams"))

		c, err := upgrader.Upgrade(w, r, http.Header{"X-Server": {"test"}})
		if err != nil {
			return
		}
		defer c.Close()
		handle(conns.Add(1), c)
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func closeNormally(c *websocket.Conn) {
	_ = c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_, _, _ = c.ReadMessage()
}

func TestWatcher_SingleSession(t *testing.T) {
	srv, _ := newServer(t, func(_ int64, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, update("ethbtc@depth5@100ms", 1))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"stream":"ethbtc@depth5@100ms"}`))
		_ = c.WriteMessage(websocket.TextMessage, update("bnbeth@depth5@100ms", 2))
		closeNormally(c)
	})

	cfg := testConfig(t, srv)
	cfg.Reconnect.Enabled = false

	var out bytes.Buffer
	w, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &out)
	require.NoError(t, err)
	defer w.close()

	require.NoError(t, w.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "HTTP status code: 101\n")
	assert.Contains(t, text, `- X-Server: "test"`)
	assert.Contains(t, text, "ethbtc@depth5@100ms (0): size: 1.2, bid: 0.0523, ask: 0.0525, size: 0.8\n")
	assert.Contains(t, text, "bnbeth@depth5@100ms (0): size: 1.2, bid: 0.0523, ask: 0.0525, size: 0.8\n")
	assert.NotContains(t, text, "(1):", "one ask bounds the pairs")
	assert.Equal(t, 2, w.delivered)
}

func TestWatcher_ReconnectsAfterFailure(t *testing.T) {
	srv, conns := newServer(t, func(n int64, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, update("ethbtc@depth5@100ms", int(n)))
		if n == 1 {
			_ = c.UnderlyingConn().Close()
			return
		}
		closeNormally(c)
	})

	cfg := testConfig(t, srv)
	var out bytes.Buffer
	w, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &out)
	require.NoError(t, err)
	w.limit = 2

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.run(ctx))
	assert.Equal(t, int64(2), conns.Load())
	assert.Equal(t, 2, strings.Count(out.String(), "HTTP status code: 101"))
	assert.Equal(t, 0, w.backoff.Attempt(), "reset after the successful reconnect")
}

func TestWatcher_GivesUp(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv)
	cfg.Reconnect.MaxAttempts = 2

	w, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{})
	require.NoError(t, err)

	err = w.run(context.Background())
	assert.ErrorIs(t, err, sdkerr.ErrConnect)
	assert.ErrorIs(t, err, ws.ErrHandshakeRejected)
	assert.ErrorContains(t, err, "giving up after 2 attempts")
	assert.Equal(t, int64(3), hits.Load())
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	srv, _ := newServer(t, func(_ int64, c *websocket.Conn) {
		_, _, _ = c.ReadMessage()
	})

	cfg := testConfig(t, srv)
	w, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, w.run(ctx))
}

func TestWatcher_RedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	srv, _ := newServer(t, func(_ int64, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, update("ethbtc@depth5@100ms", 7))
		closeNormally(c)
	})

	cfg := testConfig(t, srv)
	cfg.Reconnect.Enabled = false
	cfg.Sink.Type = config.SinkRedis
	cfg.Sink.Redis.Addr = mr.Addr()

	w, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{})
	require.NoError(t, err)
	defer w.close()

	require.NoError(t, w.run(context.Background()))

	raw, err := mr.Get("depth:ethbtc@depth5@100ms")
	require.NoError(t, err)
	env, err := depth.DecodePayload([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), env.Data.LastUpdateID)
}

func TestNewWatcher_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	srv, _ := newServer(t, func(int64, *websocket.Conn) {})
	cfg := testConfig(t, srv)
	cfg.Sink.Type = config.SinkRedis
	cfg.Sink.Redis.Addr = addr

	_, err := newWatcher(context.Background(), cfg, zaptest.NewLogger(t), &bytes.Buffer{})
	assert.ErrorIs(t, err, sdkerr.ErrPublish)
}

func TestPrintHandshake(t *testing.T) {
	var out bytes.Buffer
	printHandshake(&out, &ws.Handshake{
		StatusCode: 101,
		Header:     http.Header{"Upgrade": {"websocket"}, "Connection": {"Upgrade"}},
	})

	assert.Equal(t, "Connected to stream.\n"+
		"HTTP status code: 101\n"+
		"Response headers:\n"+
		"- Connection: \"Upgrade\"\n"+
		"- Upgrade: \"websocket\"\n", out.String())
}
